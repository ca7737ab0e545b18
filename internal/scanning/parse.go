package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ocrMessage accepts the OCR.space error fields, which are either a string or a list of strings
type ocrMessage string

func (m *ocrMessage) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = ocrMessage(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unmarshaling error message: %w", err)
	}
	*m = ocrMessage(strings.Join(list, "; "))
	return nil
}

// ocrSpaceResponse is the subset of the OCR.space /parse/image response we read
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText   string     `json:"ParsedText"`
		ErrorMessage ocrMessage `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int        `json:"OCRExitCode"`
	IsErroredOnProcessing bool       `json:"IsErroredOnProcessing"`
	ErrorMessage          ocrMessage `json:"ErrorMessage"`
}

// parseOCRSpaceResponse extracts the recognised text of the first page
func parseOCRSpaceResponse(body []byte) (string, error) {
	var resp ocrSpaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if resp.IsErroredOnProcessing {
		msg := string(resp.ErrorMessage)
		if msg == "" {
			msg = "Unknown OCR error"
		}
		return "", fmt.Errorf("OCR error: %s", msg)
	}

	if len(resp.ParsedResults) == 0 {
		return "", ErrNoText
	}

	text := resp.ParsedResults[0].ParsedText
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultOCRSpaceURL is the public OCR.space endpoint
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// OCRSpace implements the Scanner interface using the OCR.space API
type OCRSpace struct {
	apiKey   string
	endpoint string
	language string
	engine   int
	client   *http.Client
}

// NewOCRSpace creates a new OCR.space Scanner instance.
// Engine 2 reads handwriting noticeably better than engine 1.
func NewOCRSpace(apiKey, endpoint, language string, engine int) (*OCRSpace, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ocr.space api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultOCRSpaceURL
	}
	if language == "" {
		language = "eng"
	}
	if engine == 0 {
		engine = 2
	}

	return &OCRSpace{
		apiKey:   apiKey,
		endpoint: endpoint,
		language: language,
		engine:   engine,
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
	}, nil
}

// ExtractText uploads the image as a base64 data URI and returns the parsed text
func (o *OCRSpace) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	finalImageData, mimeType, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(finalImageData))

	form := url.Values{}
	form.Set("base64Image", dataURI)
	form.Set("apikey", o.apiKey)
	form.Set("language", o.language)
	form.Set("isOverlayRequired", "false")
	form.Set("detectOrientation", "true")
	form.Set("scale", "true")
	form.Set("OCREngine", strconv.Itoa(o.engine))
	form.Set("filetype", imageExtension(mimeType))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	slog.Info("Sending OCR request", "mime_type", mimeType, "size", len(finalImageData), "engine", o.engine)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ocr.space API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr.space API error (status %d): %s", resp.StatusCode, string(body))
	}

	text, err := parseOCRSpaceResponse(body)
	if err != nil {
		return "", err
	}

	slog.Info("OCR succeeded", "text_length", len(text))
	return text, nil
}

// Close is a no-op for the HTTP client
func (o *OCRSpace) Close() error {
	return nil
}

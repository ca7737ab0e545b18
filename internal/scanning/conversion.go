package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the LLM backends so they behave like a plain OCR engine
const transcriptionPrompt = `You are an OCR engine. The image is a photo of a handwritten sales ledger page.

Transcribe ALL text exactly as written, line by line, top to bottom.

Rules:
- Keep one ledger line per output line, in the original order
- Keep numbers exactly as written; do not add thousands separators or currency symbols
- Keep the date header exactly as written (e.g. "Senin 14-7-2025")
- Do not translate, summarise, correct spelling or add commentary
- Do not use markdown or code blocks
- Return plain text only`

// pdfToImage renders the first page of a scanned PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	return encodePNG(img)
}

// heicToImage decodes an iPhone HEIC/HEIF photo to PNG
func heicToImage(imageData []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// sniffImageType detects the image type from magic bytes.
// Telegram photos are JPEG, so unknown data defaults to image/jpeg.
func sniffImageType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xFF\xD8\xFF")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case isHEICFormat(data):
		return "image/heic"
	}
	return "image/jpeg"
}

// prepareImageData returns image bytes every backend can read together with their MIME type.
// PDF and HEIC input is rendered to PNG; JPEG, PNG and GIF pass through unchanged.
func prepareImageData(imageData []byte, contentType string) ([]byte, string, error) {
	if len(imageData) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	sniffed := sniffImageType(imageData)

	switch {
	case mimeType == "application/pdf" || sniffed == "application/pdf":
		data, err := pdfToImage(imageData)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		return data, "image/png", nil
	case isHEICMimeType(mimeType) || sniffed == "image/heic":
		data, err := heicToImage(imageData)
		if err != nil {
			return nil, "", fmt.Errorf("converting HEIC to image: %w", err)
		}
		return data, "image/png", nil
	}

	return imageData, sniffed, nil
}

// imageExtension returns the short file type name used by OCR APIs, e.g. "PNG"
func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	}
	return "JPG"
}

// cleanModelText strips markdown fences LLM backends add despite instructions
func cleanModelText(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		} else {
			text = strings.TrimLeft(text, "`")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

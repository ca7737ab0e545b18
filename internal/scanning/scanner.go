package scanning

import (
	"context"
	"errors"
)

// ErrNoText is returned when the OCR backend recognised no text in the image
var ErrNoText = errors.New("no text detected in image")

// Scanner defines the interface for recovering text from a ledger photo
type Scanner interface {
	// ExtractText runs OCR on an image and returns the raw recognised text
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/ledger-bot/internal/scanning"
)

var (
	// ErrRecognition wraps every OCR backend failure
	ErrRecognition = errors.New("recognizing text")

	// ErrAlreadySynced is returned when resyncing a batch that is already in the sheet
	ErrAlreadySynced = errors.New("batch already synced to sheet")
)

// sheetPendingMessage marks a journaled batch whose sheet append has not run yet
const sheetPendingMessage = "sheet sync pending"

var (
	filenameCharsPattern = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Upload is a ledger photo handed to the service
type Upload struct {
	Filename    string
	Data        []byte
	ContentType string
	ChatID      int64
}

// Service runs the photo -> OCR -> extraction -> sheet pipeline
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	sheet       Sheet
	extractor   *Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
	httpClient  *http.Client
}

// NewService creates a new Service. sheet may be nil when no spreadsheet is configured.
func NewService(db DB, scanner scanning.Scanner, storage Storage, sheet Sheet, extractor *Extractor) *Service {
	return NewServiceWithDeps(db, scanner, storage, sheet, extractor, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, sheet Sheet, extractor *Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	if extractor == nil {
		extractor = NewExtractorWithDeps(DefaultNoiseMarkers, DefaultCurrency, timeSrc)
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		sheet:       sheet,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameCharsPattern.ReplaceAllString(base, "")
	base = strings.TrimSpace(whitespacePattern.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "ledger"
	}
	if ext == "" {
		ext = ".jpg"
	}

	return base + ext
}

// ProcessPhoto archives a ledger photo, recognises its text and extracts transactions.
// A batch without transactions is returned as-is (with RawText) and is not persisted.
// Sheet failures are recorded on the batch rather than returned.
func (s *Service) ProcessPhoto(ctx context.Context, upload Upload) (*Batch, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename)), upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving photo: %w", err)
	}

	text, err := s.scanner.ExtractText(ctx, upload.Data, upload.ContentType)
	if err != nil {
		slog.Error("Failed to recognise ledger text",
			"filename", upload.Filename,
			"content_type", upload.ContentType,
			"file_size", len(upload.Data),
			"error", err,
		)
		s.removePhoto(savedName)
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	page := s.extractor.Extract(text)

	batch := &Batch{
		ID:           id,
		ChatID:       upload.ChatID,
		Date:         page.Date,
		Transactions: page.Transactions,
		RawText:      text,
		PhotoFile:    savedName,
		ContentType:  upload.ContentType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if len(batch.Transactions) == 0 {
		slog.Warn("No transactions detected", "batch_id", id, "text_length", len(text))
		s.removePhoto(savedName)
		batch.PhotoFile = ""
		return batch, nil
	}

	// Journal before the sheet append so every synced row has a batch to resync from
	batch.SheetMessage = sheetPendingMessage
	if err := s.db.SaveBatch(batch); err != nil {
		s.removePhoto(savedName)
		return nil, fmt.Errorf("saving batch: %w", err)
	}

	s.syncSheet(ctx, batch)
	batch.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBatch(batch); err != nil {
		// Rows may already be in the sheet, so the batch is still returned
		slog.Error("Failed to record sheet sync state",
			"batch_id", id,
			"sheet_synced", batch.SheetSynced,
			"error", err,
		)
	}

	slog.Info("Processed ledger photo",
		"batch_id", id,
		"date", batch.Date,
		"transactions", len(batch.Transactions),
		"sheet_synced", batch.SheetSynced,
	)
	return batch, nil
}

// syncSheet appends the batch to the sheet and records the outcome on the batch
func (s *Service) syncSheet(ctx context.Context, batch *Batch) {
	if s.sheet == nil {
		batch.SheetSynced = false
		batch.SheetMessage = ErrSheetNotConfigured.Error()
		return
	}

	added, err := s.sheet.AppendTransactions(ctx, batch.Transactions)
	if err != nil {
		slog.Warn("Failed to append transactions to sheet", "batch_id", batch.ID, "error", err)
		batch.SheetSynced = false
		batch.SheetMessage = err.Error()
		return
	}

	batch.SheetSynced = true
	batch.SheetMessage = fmt.Sprintf("Added %d transactions", added)
}

func (s *Service) removePhoto(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete photo", "filename", name, "error", err)
	}
}

// GetBatch retrieves a batch by ID
func (s *Service) GetBatch(id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns all batches, newest first
func (s *Service) ListBatches() ([]*Batch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// GetBatchPhoto retrieves the archived photo of a batch
func (s *Service) GetBatchPhoto(id string) ([]byte, string, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting batch: %w", err)
	}

	data, err := s.storage.Get(batch.PhotoFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting batch photo: %w", err)
	}

	return data, batch.ContentType, nil
}

// ResyncBatch retries the sheet append for a batch whose earlier append failed
func (s *Service) ResyncBatch(ctx context.Context, id string) (*Batch, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	if batch.SheetSynced {
		return nil, fmt.Errorf("batch %s: %w", id, ErrAlreadySynced)
	}
	if s.sheet == nil {
		return nil, ErrSheetNotConfigured
	}

	s.syncSheet(ctx, batch)
	batch.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBatch(batch); err != nil {
		return nil, fmt.Errorf("saving batch: %w", err)
	}
	return batch, nil
}

// SheetStatus reports whether the configured sheet is reachable
func (s *Service) SheetStatus(ctx context.Context) error {
	if s.sheet == nil {
		return ErrSheetNotConfigured
	}
	return s.sheet.Ping(ctx)
}

// RecognizeURL downloads an image and runs OCR on it; used to smoke test the OCR backend
func (s *Service) RecognizeURL(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	text, err := s.scanner.ExtractText(ctx, data, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	return text, nil
}

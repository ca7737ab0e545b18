package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zombor/ledger-bot/internal/ledger"
	"github.com/zombor/ledger-bot/internal/scanning"
)

const (
	// DefaultSummaryLimit is how many items a summary lists before "... dan N item lainnya"
	DefaultSummaryLimit = 5

	// DefaultTestImageURL is the sample image /test runs through OCR
	DefaultTestImageURL = "https://dl.a9t9.com/ocr/solarcell.jpg"

	photoTimeout = 3 * time.Minute
	testTimeout  = 60 * time.Second
)

// Messenger defines the chat operations the bot needs
type Messenger interface {
	// Reply sends text as a reply and returns the new message ID
	Reply(chatID int64, replyTo int, text string) (int, error)
	// Edit replaces the text of a sent message
	Edit(chatID int64, messageID int, text string, markdown bool) error
	// DownloadFile fetches a file sent by the user
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Processor defines the ledger operations the bot needs
type Processor interface {
	ProcessPhoto(ctx context.Context, upload ledger.Upload) (*ledger.Batch, error)
	SheetStatus(ctx context.Context) error
	RecognizeURL(ctx context.Context, imageURL string) (string, error)
}

// Config holds what the bot reports and how it summarises
type Config struct {
	ScannerName  string
	OCRKey       string // Shown masked by /status
	OCRReady     bool
	TestImageURL string
	SummaryLimit int
}

// Message is the part of a Telegram message the bot acts on
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
	Command   string
	FileID    string
	FileName  string
	MimeType  string
}

// MessageFromUpdate converts a Telegram update; ok is false for updates without a message
func MessageFromUpdate(update tgbotapi.Update) (Message, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return Message{}, false
	}

	msg := Message{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.IsCommand() {
		msg.Command = strings.ToLower(m.Command())
	}

	switch {
	case len(m.Photo) > 0:
		largest := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height >= largest.Width*largest.Height {
				largest = p
			}
		}
		msg.FileID = largest.FileID
		msg.FileName = "photo.jpg"
		msg.MimeType = "image/jpeg"
	case m.Document != nil && isLedgerDocument(m.Document.MimeType):
		// Photos sent "as file" keep full resolution and arrive as documents
		msg.FileID = m.Document.FileID
		msg.FileName = m.Document.FileName
		msg.MimeType = m.Document.MimeType
	}

	return msg, true
}

func isLedgerDocument(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

// Bot answers Telegram messages
type Bot struct {
	messenger Messenger
	processor Processor
	config    Config
	now       func() time.Time
}

// New creates a new Bot
func New(messenger Messenger, processor Processor, config Config) *Bot {
	return NewWithClock(messenger, processor, config, time.Now)
}

// NewWithClock creates a new Bot with a custom clock for testing
func NewWithClock(messenger Messenger, processor Processor, config Config, now func() time.Time) *Bot {
	if config.SummaryLimit <= 0 {
		config.SummaryLimit = DefaultSummaryLimit
	}
	if config.TestImageURL == "" {
		config.TestImageURL = DefaultTestImageURL
	}
	return &Bot{
		messenger: messenger,
		processor: processor,
		config:    config,
		now:       now,
	}
}

// Run handles updates one at a time until ctx is cancelled or the channel closes
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := MessageFromUpdate(update)
			if !ok {
				continue
			}
			b.Handle(ctx, msg)
		}
	}
}

// Handle dispatches one message. It never panics; failures become replies.
func (b *Bot) Handle(ctx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic handling message", "chat_id", msg.ChatID, "panic", r)
			b.reply(msg, formatProcessingError(fmt.Errorf("%v", r)))
		}
	}()

	switch {
	case msg.Command == "start":
		b.reply(msg, welcomeText)
	case msg.Command == "help":
		b.reply(msg, helpText)
	case msg.Command == "status":
		b.handleStatus(ctx, msg)
	case msg.Command == "test":
		b.handleTest(ctx, msg)
	case msg.FileID != "":
		b.handlePhoto(ctx, msg)
	default:
		b.reply(msg, usageText)
	}
}

func (b *Bot) reply(msg Message, text string) int {
	id, err := b.messenger.Reply(msg.ChatID, msg.MessageID, text)
	if err != nil {
		slog.Error("Failed to send reply", "chat_id", msg.ChatID, "error", err)
		return 0
	}
	return id
}

// edit updates a placeholder, falling back to plain text when Markdown is rejected
func (b *Bot) edit(msg Message, messageID int, text string, markdown bool) {
	err := b.messenger.Edit(msg.ChatID, messageID, text, markdown)
	if err != nil && markdown {
		slog.Warn("Markdown edit rejected, retrying as plain text", "chat_id", msg.ChatID, "error", err)
		err = b.messenger.Edit(msg.ChatID, messageID, text, false)
	}
	if err != nil {
		slog.Error("Failed to edit message", "chat_id", msg.ChatID, "message_id", messageID, "error", err)
	}
}

func (b *Bot) handleStatus(ctx context.Context, msg Message) {
	sheetErr := b.processor.SheetStatus(ctx)
	if sheetErr != nil {
		slog.Warn("Sheet not reachable", "error", sheetErr)
	}
	b.reply(msg, formatStatus(b.config, sheetErr, b.now().Format("2006-01-02 15:04")))
}

func (b *Bot) handleTest(ctx context.Context, msg Message) {
	placeholder := b.reply(msg, testingText)
	if placeholder == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	text, err := b.processor.RecognizeURL(ctx, b.config.TestImageURL)
	switch {
	case errors.Is(err, scanning.ErrNoText):
		b.edit(msg, placeholder, "❌ OCR Test: No text extracted", false)
	case err != nil:
		b.edit(msg, placeholder, fmt.Sprintf("❌ OCR Test Failed: %v", err), false)
	default:
		b.edit(msg, placeholder, fmt.Sprintf("✅ OCR Test Success!\n\nSample text: %s", truncate(text, testPreviewLength)), false)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg Message) {
	placeholder := b.reply(msg, processingText)
	if placeholder == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, photoTimeout)
	defer cancel()

	slog.Info("Processing photo", "chat_id", msg.ChatID, "mime_type", msg.MimeType)

	data, err := b.messenger.DownloadFile(ctx, msg.FileID)
	if err != nil {
		slog.Error("Failed to download photo", "chat_id", msg.ChatID, "error", err)
		b.edit(msg, placeholder, formatRecognitionFailure("Failed to download image from Telegram"), false)
		return
	}

	batch, err := b.processor.ProcessPhoto(ctx, ledger.Upload{
		Filename:    msg.FileName,
		Data:        data,
		ContentType: msg.MimeType,
		ChatID:      msg.ChatID,
	})
	switch {
	case errors.Is(err, ledger.ErrRecognition):
		b.edit(msg, placeholder, formatRecognitionFailure(err.Error()), false)
		return
	case err != nil:
		slog.Error("Failed to process photo", "chat_id", msg.ChatID, "error", err)
		b.edit(msg, placeholder, formatProcessingError(err), false)
		return
	}

	if len(batch.Transactions) == 0 {
		b.edit(msg, placeholder, formatNoTransactions(batch.RawText), false)
		return
	}

	b.edit(msg, placeholder, formatSummary(batch, b.config.SummaryLimit), true)
}

package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxPhotoSize caps downloads; Telegram bots can only fetch files up to 20MB anyway
const maxPhotoSize = 20 << 20

// Telegram implements the Messenger interface on the Telegram Bot API
type Telegram struct {
	api    *tgbotapi.BotAPI
	client *http.Client
}

// NewTelegram authenticates the bot token and returns a Telegram client
func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &Telegram{
		api:    api,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Username returns the bot's username
func (t *Telegram) Username() string {
	return t.api.Self.UserName
}

// Updates starts long polling and returns the update channel
func (t *Telegram) Updates(timeoutSeconds int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSeconds
	return t.api.GetUpdatesChan(u)
}

// Stop stops long polling and closes the update channel
func (t *Telegram) Stop() {
	t.api.StopReceivingUpdates()
}

// Reply sends text as a reply to a message and returns the new message ID
func (t *Telegram) Reply(chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a previously sent message
func (t *Telegram) Edit(chatID int64, messageID int, text string, markdown bool) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}

	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// DownloadFile fetches a file the user sent to the bot
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("getting file url: %w", err)
	}
	return download(ctx, t.client, fileURL)
}

// download GETs a Telegram file URL. The URL embeds the bot token, keep it out of errors.
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: invalid file url")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if len(data) > maxPhotoSize {
		return nil, fmt.Errorf("file is larger than %d bytes", maxPhotoSize)
	}
	return data, nil
}

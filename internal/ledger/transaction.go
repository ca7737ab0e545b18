package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency tag written next to every amount
const DefaultCurrency = "Rp"

// Transaction is one line of a handwritten sales ledger
type Transaction struct {
	Date        string          `json:"date"`
	Quantity    string          `json:"quantity"` // Count plus piece marker as written, e.g. "2pcs"
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

// Ledger is the result of extracting one OCR text
type Ledger struct {
	Date         string        `json:"date"`
	Transactions []Transaction `json:"transactions"`
}

// GrandTotal sums the total amount of every transaction
func (l *Ledger) GrandTotal() decimal.Decimal {
	return GrandTotal(l.Transactions)
}

// GrandTotal sums the total amount of the given transactions
func GrandTotal(transactions []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		total = total.Add(t.TotalAmount)
	}
	return total
}

// Batch is a processed ledger photo as kept in the local journal
type Batch struct {
	ID           string        `json:"id"`
	ChatID       int64         `json:"chat_id,omitempty"` // Telegram chat the photo came from, zero for HTTP uploads
	Date         string        `json:"date"`
	Transactions []Transaction `json:"transactions"`
	RawText      string        `json:"raw_text"`
	PhotoFile    string        `json:"photo_file"`
	ContentType  string        `json:"content_type"`
	SheetSynced  bool          `json:"sheet_synced"`
	SheetMessage string        `json:"sheet_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Total sums the batch transactions
func (b *Batch) Total() decimal.Decimal {
	return GrandTotal(b.Transactions)
}

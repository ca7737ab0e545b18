package ledger

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// minLineLength is the shortest trimmed line (in characters) considered for extraction
	minLineLength = 5

	// fallbackDateLayout formats the processing date when the page carries no date
	fallbackDateLayout = "02-01-2006"
)

// DefaultNoiseMarkers are letterhead keywords that appear on every ledger page
var DefaultNoiseMarkers = []string{"tanty"}

var (
	// datePattern matches D-M-Y or D/M/Y with a 2 to 4 digit year, e.g. "14-7-2025"
	datePattern = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)

	// strictPattern matches "<qty>p[c|s|cs] <description> <unit price> <total>"
	strictPattern = regexp.MustCompile(`(?i)^(\d+\s*p(?:cs|c|s)?)\s+([^0-9]+?)\s+(\d+(?:\.\d+)?)\s+(\d+(?:\.\d+)?)\s*$`)

	// quantityPrefixPattern only requires the leading quantity token
	quantityPrefixPattern = regexp.MustCompile(`(?i)^(\d+\s*p(?:cs|c|s)?)\s+(.+)$`)

	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// lineMatch holds the fields recovered from a single ledger line
type lineMatch struct {
	quantity    string
	description string
	unitPrice   decimal.Decimal
	totalAmount decimal.Decimal
}

// valid reports whether both amounts are strictly positive
func (m lineMatch) valid() bool {
	return m.unitPrice.IsPositive() && m.totalAmount.IsPositive()
}

// matcher tries to recover a transaction from one line
type matcher func(line string) (lineMatch, bool)

// matchers are tried in order, the first hit wins
var matchers = []matcher{matchStrict, matchSalvage}

// matchLine runs the matchers in order and returns the first valid match
func matchLine(line string) (lineMatch, bool) {
	for _, match := range matchers {
		if m, ok := match(line); ok {
			return m, true
		}
	}
	return lineMatch{}, false
}

// matchStrict handles lines where OCR kept all four fields cleanly separated
func matchStrict(line string) (lineMatch, bool) {
	groups := strictPattern.FindStringSubmatch(line)
	if groups == nil {
		return lineMatch{}, false
	}

	unitPrice, err := decimal.NewFromString(groups[3])
	if err != nil {
		return lineMatch{}, false
	}
	totalAmount, err := decimal.NewFromString(groups[4])
	if err != nil {
		return lineMatch{}, false
	}

	m := lineMatch{
		quantity:    strings.TrimSpace(groups[1]),
		description: strings.TrimSpace(groups[2]),
		unitPrice:   unitPrice,
		totalAmount: totalAmount,
	}
	return m, m.valid()
}

// matchSalvage recovers lines where stray characters broke the strict layout.
// The last two numbers anywhere on the line are taken as unit price and total.
func matchSalvage(line string) (lineMatch, bool) {
	groups := quantityPrefixPattern.FindStringSubmatch(line)
	if groups == nil {
		return lineMatch{}, false
	}

	numbers := numberPattern.FindAllString(line, -1)
	if len(numbers) < 2 {
		return lineMatch{}, false
	}

	unitPrice, err := decimal.NewFromString(numbers[len(numbers)-2])
	if err != nil {
		return lineMatch{}, false
	}
	totalAmount, err := decimal.NewFromString(numbers[len(numbers)-1])
	if err != nil {
		return lineMatch{}, false
	}

	m := lineMatch{
		quantity:    strings.TrimSpace(groups[1]),
		description: strings.TrimSpace(numberPattern.ReplaceAllString(groups[2], "")),
		unitPrice:   unitPrice,
		totalAmount: totalAmount,
	}
	return m, m.valid()
}

// plainSpace maps every Unicode space (NBSP, vertical tab, em space, ...) to ' '
func plainSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

// NormalizeLines splits OCR text into trimmed, non-empty lines in document order.
// Unicode whitespace inside a line becomes a plain space.
func NormalizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Map(plainSpace, line))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Extractor turns raw OCR text of a ledger page into transactions.
// It holds only configuration and is safe for concurrent use.
type Extractor struct {
	noiseMarkers []string
	currency     string
	timeSource   TimeSource
}

// NewExtractor creates an Extractor with the default noise markers, currency and clock
func NewExtractor() *Extractor {
	return NewExtractorWithDeps(DefaultNoiseMarkers, DefaultCurrency, &defaultTimeSource{})
}

// NewExtractorWithDeps creates an Extractor with custom configuration
func NewExtractorWithDeps(noiseMarkers []string, currency string, timeSrc TimeSource) *Extractor {
	markers := make([]string, 0, len(noiseMarkers))
	for _, marker := range noiseMarkers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" {
			markers = append(markers, marker)
		}
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if timeSrc == nil {
		timeSrc = &defaultTimeSource{}
	}

	return &Extractor{
		noiseMarkers: markers,
		currency:     currency,
		timeSource:   timeSrc,
	}
}

// Currency returns the currency tag stamped on extracted transactions
func (e *Extractor) Currency() string {
	return e.currency
}

// ResolveDate returns the first date-like substring verbatim, or today as DD-MM-YYYY
func (e *Extractor) ResolveDate(ocrText string) string {
	if date := datePattern.FindString(ocrText); date != "" {
		return date
	}
	return e.timeSource.Now().Format(fallbackDateLayout)
}

// accept filters out short lines and letterhead lines
func (e *Extractor) accept(line string) bool {
	if utf8.RuneCountInString(line) < minLineLength {
		return false
	}
	lower := strings.ToLower(line)
	for _, marker := range e.noiseMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Extract parses every accepted line of the OCR text. Lines that match neither
// tier are dropped; an empty result means no transactions were detected.
func (e *Extractor) Extract(ocrText string) *Ledger {
	date := e.ResolveDate(ocrText)
	lines := NormalizeLines(ocrText)

	transactions := make([]Transaction, 0)
	for i, line := range lines {
		if !e.accept(line) {
			slog.Debug("Skipping ledger line", "line", i+1, "text", line)
			continue
		}

		m, ok := matchLine(line)
		if !ok {
			slog.Debug("No transaction on ledger line", "line", i+1, "text", line)
			continue
		}

		transactions = append(transactions, Transaction{
			Date:        date,
			Quantity:    m.quantity,
			Description: m.description,
			UnitPrice:   m.unitPrice,
			TotalAmount: m.totalAmount,
			Currency:    e.currency,
		})
	}

	slog.Debug("Extracted ledger", "date", date, "lines", len(lines), "transactions", len(transactions))

	return &Ledger{
		Date:         date,
		Transactions: transactions,
	}
}

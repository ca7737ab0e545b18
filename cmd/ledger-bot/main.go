package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/ledger-bot/internal/bot"
	"github.com/zombor/ledger-bot/internal/ledger"
	"github.com/zombor/ledger-bot/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("ledger-bot")
	var (
		botToken     = fs.StringLong("bot-token", "", "Telegram bot token")
		scannerType  = fs.StringLong("scanner", "ocrspace", "Scanner type: 'ocrspace', 'gemini' or 'ollama'")
		ocrKey       = fs.StringLong("ocr-key", "", "OCR.space API key")
		ocrURL       = fs.StringLong("ocr-url", scanning.DefaultOCRSpaceURL, "OCR.space parse endpoint")
		ocrEngine    = fs.IntLong("ocr-engine", 2, "OCR.space engine (1, 2 or 3)")
		ocrLanguage  = fs.StringLong("ocr-language", "eng", "OCR.space language code")
		ocrTestURL   = fs.StringLong("ocr-test-url", bot.DefaultTestImageURL, "Sample image used by /test")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "qwen2-vl:7b", "Ollama vision model name")
		sheetID      = fs.StringLong("sheet-id", "", "Google spreadsheet ID (optional)")
		googleCreds  = fs.StringLong("google-credentials", "", "Service account credentials, JSON or file path")
		dbPath       = fs.StringLong("db", "ledger-bot.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./ledgers", "Photo storage directory path")
		port         = fs.IntLong("port", 8080, "HTTP server port (0 disables the API)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		noiseMarkers = fs.StringLong("noise-marker", strings.Join(ledger.DefaultNoiseMarkers, ","), "Comma separated letterhead keywords whose lines are ignored")
		currency     = fs.StringLong("currency", ledger.DefaultCurrency, "Currency tag written with every transaction")
		summaryLimit = fs.IntLong("summary-limit", bot.DefaultSummaryLimit, "Transactions listed in the chat summary")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LEDGER_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := ledger.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var (
		scanner  scanning.Scanner
		shownKey string
	)
	switch *scannerType {
	case "ocrspace":
		shownKey = *ocrKey
		slog.Info("Initializing OCR.space scanner...", "url", *ocrURL, "engine", *ocrEngine)
		scanner, err = scanning.NewOCRSpace(*ocrKey, *ocrURL, *ocrLanguage, *ocrEngine)
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		shownKey = apiKey
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "ocrspace, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := ledger.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Google Sheets is optional; batches are kept locally and can be resynced later
	var sheet ledger.Sheet
	if *sheetID != "" && *googleCreds != "" {
		slog.Info("Connecting to Google Sheets...", "sheet_id", *sheetID)
		googleSheet, err := ledger.NewGoogleSheet(ctx, *sheetID, ledger.GoogleCredentialsOption(*googleCreds))
		if err != nil {
			slog.Warn("Google Sheets unavailable, continuing without it", "error", err)
		} else {
			sheet = googleSheet
		}
	} else {
		slog.Warn("Google Sheets not configured, transactions will only be stored locally")
	}

	extractor := ledger.NewExtractorWithDeps(strings.Split(*noiseMarkers, ","), *currency, nil)
	ledgerService := ledger.NewService(db, scanner, store, sheet, extractor)

	telegram, err := bot.NewTelegram(*botToken)
	if err != nil {
		slog.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("Authorized on Telegram", "username", telegram.Username())

	ledgerBot := bot.New(telegram, ledgerService, bot.Config{
		ScannerName:  *scannerType,
		OCRKey:       shownKey,
		OCRReady:     shownKey != "" || *scannerType == "ollama",
		TestImageURL: *ocrTestURL,
		SummaryLimit: *summaryLimit,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		updates := telegram.Updates(30)
		go func() {
			<-ctx.Done()
			telegram.Stop()
		}()
		slog.Info("Bot is running")
		return ledgerBot.Run(ctx, updates)
	})

	if *port > 0 {
		server := ledger.NewServer(ledgerService, ledger.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		})
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
		g.Go(func() error {
			return server.Run(ctx, fmt.Sprintf(":%d", *port))
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Shutting down with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/tnishida/keihi-scan/internal/app"
	"github.com/tnishida/keihi-scan/internal/ledger"
	"github.com/tnishida/keihi-scan/internal/scanning"
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

	// Credentials usually live in a .env next to the binary; absence is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("keihi-scan")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		workbookPath = fs.StringLong("workbook", "", "Expense report workbook path (default: 立替経費精算書_YYYYMM.xlsx)")
		templatePath = fs.StringLong("template", "templates/立替経費精算書.xlsx", "Pristine workbook template path")
		historyPath  = fs.StringLong("history", "keihi-scan.db", "Commit history database path")
		spoolPath    = fs.StringLong("spool", "./uploads", "Upload spool directory path")
		scannerType  = fs.StringLong("scanner", "openai", "Scanner type: 'openai', 'gemini' or 'ollama'")
		openaiKey    = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel  = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		runCheck     = fs.BoolLong("check", "Run setup diagnostics and exit")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KEIHI_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// The working file is per-month, created from the template on first use
	if *workbookPath == "" {
		*workbookPath = fmt.Sprintf("立替経費精算書_%s.xlsx", time.Now().Format("200601"))
	}

	if *runCheck {
		os.Exit(runDiagnostics(*templatePath, *workbookPath, *historyPath, *scannerType, *openaiKey, *geminiKey))
	}

	created, err := ledger.EnsureWorkbook(*templatePath, *workbookPath)
	if err != nil {
		slog.Error("Failed to prepare workbook", "error", err)
		os.Exit(1)
	}
	if created {
		slog.Info("Created new workbook from template", "path", *workbookPath)
	}

	slog.Info("Initializing history database...")
	history, err := app.NewBoltHistory(*historyPath)
	if err != nil {
		slog.Error("Failed to initialize history database", "error", err)
		os.Exit(1)
	}
	defer history.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI scanner...", "model", *openaiModel)
		scanner, err = scanning.NewOpenAI(apiKey, *openaiModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "openai, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing upload spool...")
	spool, err := app.NewLocalStorage(*spoolPath)
	if err != nil {
		slog.Error("Failed to initialize upload spool", "error", err)
		os.Exit(1)
	}

	service := app.NewService(*workbookPath, scanner, spool, history)

	basicAuth := app.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := app.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "workbook", *workbookPath)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

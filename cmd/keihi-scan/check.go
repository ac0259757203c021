package main

import (
	"fmt"
	"os"

	"github.com/tnishida/keihi-scan/internal/app"
	"github.com/tnishida/keihi-scan/internal/ledger"
)

// runDiagnostics verifies the local setup without starting the server:
// template present, API key available for the selected scanner, the working
// workbook (when it exists) openable with a free detail row, and the history
// database writable.
func runDiagnostics(templatePath, workbookPath, historyPath, scannerType, openaiKey, geminiKey string) int {
	failed := 0
	report := func(label string, err error) {
		if err != nil {
			fmt.Printf("✗ %s: %v\n", label, err)
			failed++
			return
		}
		fmt.Printf("✓ %s\n", label)
	}

	report("template exists", func() error {
		if _, err := os.Stat(templatePath); err != nil {
			return fmt.Errorf("not found: %s", templatePath)
		}
		return nil
	}())

	report("API key configured", func() error {
		switch scannerType {
		case "openai":
			if openaiKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
				return fmt.Errorf("OPENAI_API_KEY is not set")
			}
		case "gemini":
			if geminiKey == "" && os.Getenv("GEMINI_API_KEY") == "" {
				return fmt.Errorf("GEMINI_API_KEY is not set")
			}
		case "ollama":
			// local, no key
		default:
			return fmt.Errorf("unknown scanner type %q", scannerType)
		}
		return nil
	}())

	report("workbook openable", func() error {
		if _, err := os.Stat(workbookPath); err != nil {
			// Not created yet; it will be copied from the template on start
			return nil
		}
		table, err := ledger.Open(workbookPath)
		if err != nil {
			return err
		}
		defer table.Close()

		entries := table.ListEntries()
		if _, ok := table.FindNextEmptyRow(); !ok {
			fmt.Printf("  note: all %d detail rows are occupied\n", ledger.Capacity)
		} else {
			fmt.Printf("  %d entries, %d rows free\n", len(entries), ledger.Capacity-len(entries))
		}
		return nil
	}())

	report("history database writable", func() error {
		history, err := app.NewBoltHistory(historyPath)
		if err != nil {
			return err
		}
		return history.Close()
	}())

	if failed > 0 {
		fmt.Printf("\n%d check(s) failed\n", failed)
		return 1
	}
	fmt.Println("\nall checks passed")
	return 0
}

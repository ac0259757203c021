package ledger

import (
	"fmt"
	"os"
)

// EnsureWorkbook copies the pristine template to workPath when no working
// file exists yet, so each month starts from the blank expense report.
// Returns whether a new file was created.
func EnsureWorkbook(templatePath, workPath string) (bool, error) {
	if _, err := os.Stat(workPath); err == nil {
		return false, nil
	}

	data, err := os.ReadFile(templatePath)
	if err != nil {
		return false, fmt.Errorf("reading template: %w", err)
	}
	if err := os.WriteFile(workPath, data, 0644); err != nil {
		return false, fmt.Errorf("creating workbook: %w", err)
	}
	return true, nil
}

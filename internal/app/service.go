// Package app wires the receipt flow together: upload → scan → user
// confirmation → bounded workbook append, plus the HTTP surface for it.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tnishida/keihi-scan/internal/expense"
	"github.com/tnishida/keihi-scan/internal/ledger"
	"github.com/tnishida/keihi-scan/internal/scanning"
)

// IDGenerator generates unique IDs for commits
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles the receipt-to-ledger flow. The workbook is opened,
// mutated, saved and closed within one call; nothing holds it across
// requests.
type Service struct {
	workbookPath string
	scanner      scanning.Scanner
	spool        Storage
	history      History
	idGenerator  IDGenerator
	timeSource   TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(workbookPath string, scanner scanning.Scanner, spool Storage, history History) *Service {
	return &Service{
		workbookPath: workbookPath,
		scanner:      scanner,
		spool:        spool,
		history:      history,
		idGenerator:  &defaultIDGenerator{},
		timeSource:   &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(workbookPath string, scanner scanning.Scanner, spool Storage, history History, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		workbookPath: workbookPath,
		scanner:      scanner,
		spool:        spool,
		history:      history,
		idGenerator:  idGen,
		timeSource:   timeSrc,
	}
}

// sanitizeFilename cleans up a filename, keeping the extension intact for
// the pre-flight allow-list check.
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ExtractReceipt spools the uploaded bytes, validates them, and runs one
// inference attempt. The returned record is pending: it is shown to the user
// for confirmation and nothing is written to the workbook here. The spooled
// file is removed on every exit path.
func (s *Service) ExtractReceipt(filename string, data []byte, contentType string) (*expense.Record, error) {
	id := s.idGenerator.Generate()

	spooled, err := s.spool.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("spooling upload: %w", err)
	}
	defer func() {
		if err := s.spool.Delete(spooled); err != nil {
			slog.Warn("Failed to delete spooled upload", "filename", spooled, "error", err)
		}
	}()

	if err := scanning.CheckImage(data, filename); err != nil {
		return nil, err
	}

	record, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, err
	}

	return record, nil
}

// CommitEntry validates the user-confirmed record strictly, appends it to
// the next empty detail row, saves the workbook and logs the commit.
// Returns the row used and the new running total.
func (s *Service) CommitEntry(rec expense.Record, sourceFile string) (int, float64, error) {
	if err := expense.Validate(rec.Date, rec.Payee, rec.Content, rec.Amount); err != nil {
		return 0, 0, fmt.Errorf("validating entry: %w", err)
	}

	table, err := ledger.Open(s.workbookPath)
	if err != nil {
		return 0, 0, err
	}
	defer table.Close()

	row, err := table.AppendEntry(rec)
	if err != nil {
		return 0, 0, err
	}
	if err := table.Save(""); err != nil {
		return 0, 0, err
	}
	total := table.TotalAmount()

	commit := &Commit{
		ID:         s.idGenerator.Generate(),
		Row:        row,
		Date:       rec.Date,
		Payee:      rec.Payee,
		Content:    rec.Content,
		Amount:     rec.Amount,
		SourceFile: sourceFile,
		CreatedAt:  s.timeSource.Now(),
	}
	if err := s.history.SaveCommit(commit); err != nil {
		// The workbook write already succeeded; a history miss is not
		// grounds to report the commit as failed.
		slog.Warn("Failed to record commit history", "row", row, "error", err)
	}

	return row, total, nil
}

// ListEntries returns the occupied detail rows and the running total.
func (s *Service) ListEntries() ([]ledger.Entry, float64, error) {
	table, err := ledger.Open(s.workbookPath)
	if err != nil {
		return nil, 0, err
	}
	defer table.Close()

	return table.ListEntries(), table.TotalAmount(), nil
}

// ListHistory returns the commit log in insertion order.
func (s *Service) ListHistory() ([]*Commit, error) {
	commits, err := s.history.ListCommits()
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return commits, nil
}

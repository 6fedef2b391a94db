// Package extract pulls plain text out of free-text documents.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrToolNotFound is returned when the pdftotext binary is not installed.
var ErrToolNotFound = errors.New("pdftotext: executable file not found")

// PDFText extracts text lines from PDF documents with poppler's pdftotext.
type PDFText struct {
	// Binary is the pdftotext name or path. Empty means "pdftotext".
	Binary string
	// TempDir holds the document while pdftotext reads it. Empty means os.TempDir().
	TempDir string

	runner Runner
}

// NewPDFText creates an extractor that shells out through runner.
// A nil runner uses ExecRunner.
func NewPDFText(binary string, runner Runner) *PDFText {
	if binary == "" {
		binary = "pdftotext"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFText{Binary: binary, runner: runner}
}

// Available reports whether the configured binary can be found.
func (p *PDFText) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

// Extract implements core.TextExtractor. Page breaks are dropped and the
// text is returned line by line.
func (p *PDFText) Extract(ctx context.Context, data []byte) ([]string, error) {
	f, err := os.CreateTemp(p.TempDir, "statement-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	out, errb, err := p.runner.Run(ctx, p.Binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrToolNotFound
		}
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("pdftotext: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	return Lines(string(out)), nil
}

// Lines splits extracted text into lines. Form feeds (page breaks) are
// removed and a trailing empty line is dropped.
func Lines(text string) []string {
	text = strings.ReplaceAll(text, "\f", "")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

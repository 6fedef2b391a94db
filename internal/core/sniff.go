package core

import (
	"github.com/gabriel-vasile/mimetype"
)

// ContentKind is the broad shape of a document's content.
type ContentKind int

const (
	ContentUnknown ContentKind = iota
	ContentTabular
	ContentFreeText
)

func (k ContentKind) String() string {
	switch k {
	case ContentTabular:
		return "tabular"
	case ContentFreeText:
		return "free-text"
	default:
		return "unknown"
	}
}

// Format is the concrete file format of a document.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Sniffed is what a ContentSniffer learned about a payload.
type Sniffed struct {
	Kind   ContentKind
	Format Format
	MIME   string
}

// ContentSniffer decides how a payload should be processed.
type ContentSniffer interface {
	Sniff(data []byte) Sniffed
}

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MIMESniffer detects content by magic numbers.
//
// PDF is free text; CSV and XLSX are tabular. Everything else is reported as
// ContentUnknown with FormatCSV so callers can fall back to the CSV parser.
type MIMESniffer struct{}

// Sniff implements ContentSniffer.
func (MIMESniffer) Sniff(data []byte) Sniffed {
	mt := mimetype.Detect(data)

	switch {
	case mt.Is("application/pdf"):
		return Sniffed{Kind: ContentFreeText, Format: FormatPDF, MIME: mt.String()}
	case mt.Is(mimeXLSX):
		return Sniffed{Kind: ContentTabular, Format: FormatXLSX, MIME: mt.String()}
	case mt.Is("text/csv"):
		return Sniffed{Kind: ContentTabular, Format: FormatCSV, MIME: mt.String()}
	default:
		return Sniffed{Kind: ContentUnknown, Format: FormatCSV, MIME: mt.String()}
	}
}

// FixedSniffer reports the same result for every payload. Useful when the
// caller already knows the format, e.g. from a file extension.
type FixedSniffer Sniffed

// Sniff implements ContentSniffer.
func (f FixedSniffer) Sniff([]byte) Sniffed {
	return Sniffed(f)
}

package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TabularParser turns a tabular payload into a raw batch.
type TabularParser interface {
	Parse(format Format, data []byte) (RawBatch, error)
}

// TextExtractor returns the text lines of a free-text document such as a PDF.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) ([]string, error)
}

// Fetcher retrieves a document from a URL or local path.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Pipeline sequences sniffing, parsing, classification and casting.
// A Pipeline holds no per-run state and may be shared between goroutines.
type Pipeline struct {
	parser    TabularParser
	sniffer   ContentSniffer
	extractor TextExtractor
	fetcher   Fetcher
	policy    CastPolicy
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSniffer replaces the default MIME sniffer.
func WithSniffer(s ContentSniffer) Option {
	return func(p *Pipeline) { p.sniffer = s }
}

// WithExtractor enables free-text documents.
func WithExtractor(e TextExtractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithFetcher enables RunSource.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithCastPolicy sets how cast failures affect a batch.
func WithCastPolicy(policy CastPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline around a tabular parser.
func NewPipeline(parser TabularParser, opts ...Option) *Pipeline {
	p := &Pipeline{
		parser:  parser,
		sniffer: MIMESniffer{},
		policy:  CastFailFast,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the configured cast policy.
func (p *Pipeline) Policy() CastPolicy {
	return p.policy
}

// WithPolicy returns a copy of p that casts with policy.
func (p *Pipeline) WithPolicy(policy CastPolicy) *Pipeline {
	cp := *p
	cp.policy = policy
	return &cp
}

// Run normalizes one document.
//
// Parse and extraction errors are returned. Cast errors are not: the result
// then carries the classified records in their raw form, Cast is CastFailed
// (or CastPartial under CastIsolate) and CastErr holds the cause.
func (p *Pipeline) Run(ctx context.Context, data []byte, dynamic []SchemaDefinition) (*Result, error) {
	logger := p.loggerFor(ctx)
	if src := SourceFromContext(ctx); src != "" {
		logger = logger.With("source", src)
	}
	ctx = ContextWithLogger(ctx, logger)
	start := time.Now()

	sniffed := p.sniffer.Sniff(data)
	logger.Debug("content sniffed",
		"kind", sniffed.Kind.String(),
		"format", string(sniffed.Format),
		"mime", sniffed.MIME,
		"bytes", len(data),
	)

	if sniffed.Kind == ContentFreeText {
		return p.runFreeText(ctx, sniffed, data)
	}

	format := sniffed.Format
	if sniffed.Kind == ContentUnknown || format == "" {
		format = FormatCSV
	}

	batch, err := p.parser.Parse(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	logger.Info("parsed document", "format", string(format), "records", len(batch))

	provider, classified := Classify(ctx, batch, dynamic)

	result := &Result{
		Kind:     ContentTabular,
		MIME:     sniffed.MIME,
		Provider: provider,
	}

	records, castErr := CastBatch(ctx, classified, p.policy)
	switch {
	case castErr == nil:
		result.Records = records
		result.Cast = CastApplied
	case p.policy == CastIsolate:
		result.Records = records
		result.Cast = CastPartial
		result.CastErr = castErr
		logger.Warn("some records could not be cast", "provider", provider, "error", castErr)
	default:
		result.Records = classified.Records()
		result.Cast = CastFailed
		result.CastErr = castErr
		logger.Error("cast failed, returning classified records", "provider", provider, "error", castErr)
	}

	logger.Info("normalization complete",
		"provider", provider,
		"records", len(result.Records),
		"cast", string(result.Cast),
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) runFreeText(ctx context.Context, sniffed Sniffed, data []byte) (*Result, error) {
	if p.extractor == nil {
		return nil, ErrNoExtractor
	}
	lines, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", sniffed.Format, err)
	}
	p.loggerFor(ctx).Info("extracted text", "format", string(sniffed.Format), "lines", len(lines))

	return &Result{
		Kind:     ContentFreeText,
		MIME:     sniffed.MIME,
		Provider: ProviderUnknown,
		Lines:    lines,
		Cast:     CastSkipped,
	}, nil
}

// RunSource fetches a document by URL or path and runs it.
func (p *Pipeline) RunSource(ctx context.Context, location string, dynamic []SchemaDefinition) (*Result, error) {
	if p.fetcher == nil {
		return nil, ErrNoFetcher
	}
	data, err := p.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return p.Run(ContextWithSource(ctx, location), data, dynamic)
}

func (p *Pipeline) loggerFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

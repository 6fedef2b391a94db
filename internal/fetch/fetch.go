// Package fetch retrieves documents by URL or local path.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// ErrTooLarge is returned when a document exceeds MaxBytes.
	ErrTooLarge = errors.New("file too large")

	// ErrLocalDisabled is returned for local paths when AllowLocal is false.
	ErrLocalDisabled = errors.New("local paths are disabled")

	// ErrUnsupportedScheme is returned for URLs other than http(s).
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// DefaultMaxBytes caps downloads and file reads.
const DefaultMaxBytes = 32 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Fetcher implements core.Fetcher.
type Fetcher struct {
	Client     *http.Client
	MaxBytes   int64
	AllowLocal bool
	UserAgent  string
	Logger     *slog.Logger
}

// New creates a Fetcher with a timeout-bound HTTP client.
func New(timeout time.Duration, maxBytes int64, allowLocal bool) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		Client:     &http.Client{Timeout: timeout},
		MaxBytes:   maxBytes,
		AllowLocal: allowLocal,
	}
}

// IsURL reports whether location should be downloaded rather than read from disk.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Fetch downloads http(s) locations and reads anything else from disk.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if IsURL(location) {
		return f.download(ctx, location)
	}
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return nil, fmt.Errorf("fetch %s: %w %q", location, ErrUnsupportedScheme, u.Scheme)
	}
	return f.readLocal(location)
}

func (f *Fetcher) download(ctx context.Context, location string) ([]byte, error) {
	logger := f.logger()
	logger.Info("downloading document", "url", location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: location, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes() {
		return nil, fmt.Errorf("fetch %s: %w", location, ErrTooLarge)
	}

	data, err := readCapped(resp.Body, f.maxBytes())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	logger.Debug("downloaded document", "url", location, "bytes", len(data))
	return data, nil
}

func (f *Fetcher) readLocal(path string) ([]byte, error) {
	if !f.AllowLocal {
		return nil, fmt.Errorf("fetch %s: %w", path, ErrLocalDisabled)
	}
	f.logger().Info("reading local document", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer file.Close()

	data, err := readCapped(file, f.maxBytes())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	return data, nil
}

// readCapped reads at most max bytes and fails with ErrTooLarge beyond that.
func readCapped(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return f.MaxBytes
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

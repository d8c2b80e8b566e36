package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"organized-data/internal/models"
)

var (
	ErrPDFExtension   = errors.New("file name does not end in .pdf")
	ErrPDFSize        = errors.New("pdf exceeds the maximum allowed size")
	ErrPDFMagicNumber = errors.New("file is not a pdf")
	ErrPDFFetch       = errors.New("failed to download pdf")
)

var pdfMagicNumber = []byte("%PDF")

// Fetcher downloads PDFs over HTTP with a size cap.
type Fetcher struct {
	client  *http.Client
	maxSize int64
	logger  zerolog.Logger
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

func WithMaxSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

func WithFetchLogger(l zerolog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxSize: models.DefaultPDFMaxSize,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) MaxSize() int64 { return f.maxSize }

// ValidatePDF checks a PDF obtained from name: .pdf extension, at most
// maxSize bytes and the %PDF header.
func ValidatePDF(name string, data []byte, maxSize int64) error {
	if strings.ToLower(path.Ext(name)) != ".pdf" {
		return ErrPDFExtension
	}
	if int64(len(data)) > maxSize {
		return ErrPDFSize
	}
	if !bytes.HasPrefix(data, pdfMagicNumber) {
		return ErrPDFMagicNumber
	}
	return nil
}

// FetchPDF downloads the PDF at rawURL. The body is rejected when its
// declared or actual size is over the cap, or when it lacks the %PDF header.
func (f *Fetcher) FetchPDF(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFFetch, err)
	}
	if strings.ToLower(path.Ext(u.Path)) != ".pdf" {
		return nil, ErrPDFExtension
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %d", ErrPDFFetch, resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return nil, ErrPDFSize
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFFetch, err)
	}
	if err := ValidatePDF(u.Path, data, f.maxSize); err != nil {
		return nil, err
	}

	f.logger.Debug().Str("url", rawURL).Int("bytes", len(data)).Msg("Fetched pdf")
	return data, nil
}

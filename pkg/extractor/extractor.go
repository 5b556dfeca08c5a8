package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/scholar/internal/models"
)

// ExtractionError marks a document whose bytes could not be read by any
// strategy. It is fatal for that document.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Strategy is one way of pulling page text out of PDF bytes.
type Strategy interface {
	Name() string
	ExtractPages(raw []byte) ([]string, models.ExtractedMeta, error)
}

// Extractor converts PDF bytes into plain text plus best-effort metadata,
// falling back to a second strategy when the primary cannot parse the file.
type Extractor struct {
	primary  Strategy
	fallback Strategy
}

func New() *Extractor {
	return &Extractor{
		primary:  &pdfLibStrategy{},
		fallback: &pdfToTextStrategy{runner: execRunner{}},
	}
}

func NewWithStrategies(primary, fallback Strategy) *Extractor {
	return &Extractor{primary: primary, fallback: fallback}
}

// Extract returns the full text and metadata for the given PDF bytes. Title
// and authors are best effort: missing embedded metadata falls back to
// first-page heuristics, and empty strings mean "unknown".
func (e *Extractor) Extract(raw []byte) (string, models.ExtractedMeta, error) {
	pages, meta, err := e.primary.ExtractPages(raw)
	if err != nil || len(pages) == 0 {
		fbPages, fbMeta, fbErr := e.fallback.ExtractPages(raw)
		if fbErr != nil || len(fbPages) == 0 {
			if fbErr == nil {
				fbErr = fmt.Errorf("no text on any page")
			}
			return "", models.ExtractedMeta{}, &ExtractionError{
				Err: fmt.Errorf("%s: %v; %s: %v", e.primary.Name(), err, e.fallback.Name(), fbErr),
			}
		}
		pages, meta = fbPages, mergeMeta(meta, fbMeta)
	}

	if meta.Title == "" || meta.Authors == "" {
		title, authors := ParseFirstPage(pages[0])
		if meta.Title == "" {
			meta.Title = title
		}
		if meta.Authors == "" {
			meta.Authors = authors
		}
	}
	if meta.PageCount == 0 {
		meta.PageCount = len(pages)
	}

	return strings.Join(pages, "\n\n"), meta, nil
}

func mergeMeta(a, b models.ExtractedMeta) models.ExtractedMeta {
	if a.Title == "" {
		a.Title = b.Title
	}
	if a.Authors == "" {
		a.Authors = b.Authors
	}
	if a.PageCount == 0 {
		a.PageCount = b.PageCount
	}
	return a
}

// pdfLibStrategy parses the PDF in-process. The parser panics on some
// malformed files, so the call is fenced with a recover.
type pdfLibStrategy struct{}

func (s *pdfLibStrategy) Name() string { return "pdflib" }

func (s *pdfLibStrategy) ExtractPages(raw []byte) (pages []string, meta models.ExtractedMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, meta = nil, models.ExtractedMeta{}
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, models.ExtractedMeta{}, fmt.Errorf("failed to open PDF: %v", err)
	}

	meta.PageCount = reader.NumPage()
	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = strings.TrimSpace(info.Key("Title").Text())
		meta.Authors = strings.TrimSpace(info.Key("Author").Text())
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, meta, fmt.Errorf("no extractable text in %d pages", meta.PageCount)
	}
	return pages, meta, nil
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// pdfToTextStrategy shells out to poppler's pdftotext, which copes with many
// files the in-process parser rejects. Pages are separated by form feeds.
type pdfToTextStrategy struct {
	runner CommandRunner
}

func (s *pdfToTextStrategy) Name() string { return "pdftotext" }

func (s *pdfToTextStrategy) ExtractPages(raw []byte) ([]string, models.ExtractedMeta, error) {
	tmp, err := os.CreateTemp("", "scholar-*.pdf")
	if err != nil {
		return nil, models.ExtractedMeta{}, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, models.ExtractedMeta{}, fmt.Errorf("failed to write temp file: %v", err)
	}
	tmp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out, err := s.runner.Run(ctx, "pdftotext", "-layout", tmp.Name(), "-")
	if err != nil {
		return nil, models.ExtractedMeta{}, fmt.Errorf("pdftotext failed: %v", err)
	}

	var pages []string
	for _, page := range strings.Split(string(out), "\f") {
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		return nil, models.ExtractedMeta{}, fmt.Errorf("pdftotext produced no text")
	}
	return pages, models.ExtractedMeta{PageCount: len(pages)}, nil
}

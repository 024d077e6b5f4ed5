package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// PDF extracts one document per page, numbered from 1. Pages without text are
// skipped; a file with no text at all yields domain.ErrEmptyDocument.
// Any parser failure, including a panic on a malformed file, is an ExtractionError.
func PDF(ctx context.Context, r io.ReaderAt, size int64, source string) (docs []domain.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			docs = nil
			err = &domain.ExtractionError{Source: source, Err: fmt.Errorf("malformed pdf: %v", rec)}
		}
	}()

	pages, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, &domain.ExtractionError{Source: source, Err: err}
	}

	for i, p := range pages {
		text := normalizeSpace(p.PageContent)
		if strings.TrimSpace(text) == "" {
			continue
		}
		page := i + 1
		if n, ok := p.Metadata["page"].(int); ok && n > 0 {
			page = n
		}
		docs = append(docs, domain.Document{Source: source, Text: text, Page: page})
	}

	if len(docs) == 0 {
		return nil, &domain.ExtractionError{Source: source, Err: domain.ErrEmptyDocument}
	}
	return docs, nil
}

// PDFFile opens path and extracts it with PDF. The path is used as the source.
func PDFFile(ctx context.Context, path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ExtractionError{Source: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &domain.ExtractionError{Source: path, Err: err}
	}
	return PDF(ctx, f, info.Size(), path)
}

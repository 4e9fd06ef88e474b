package loader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF loads a PDF file page by page. A page whose text extraction fails
// is skipped with a warning; the file as a whole only fails when it cannot
// be opened or when no page yields any text.
func (l *Loader) loadPDF(path string) []Result {
	f, reader, err := pdf.Open(path)
	if err != nil {
		l.log.Error("loader: failed to open PDF",
			slog.String("file", filepath.Base(path)),
			slog.Any("error", err),
		)
		return failure(path, fmt.Errorf("open %s: %w", filepath.Base(path), err))
	}
	defer f.Close()

	total := reader.NumPage()
	if total == 0 {
		return failure(path, fmt.Errorf("%s: %w (document has no pages)", filepath.Base(path), ErrNoText))
	}

	var pages []string
	for i := 1; i <= total; i++ {
		text, err := extractPage(reader, i)
		if err != nil {
			l.log.Warn("loader: skipping unreadable PDF page",
				slog.String("file", filepath.Base(path)),
				slog.Int("page", i),
				slog.Any("error", err),
			)
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		l.log.Warn("loader: PDF contains no extractable text",
			slog.String("file", filepath.Base(path)),
		)
		return failure(path, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText))
	}

	text := collapseWhitespace(strings.Join(pages, "\n"))

	l.log.Info("loader: loaded PDF file",
		slog.String("file", filepath.Base(path)),
		slog.Int("pages", len(pages)),
		slog.Int("chars", len([]rune(text))),
	)

	return []Result{{Source: sourceName(path), Text: text}}
}

// extractPage pulls the plain text of a single page. The pdf library panics
// on some malformed content streams, so extraction is isolated behind a
// recover to keep one bad page from sinking the whole file.
func extractPage(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", num)
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", num, err)
	}
	return strings.TrimSpace(raw), nil
}

package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// fallbackEncodings are tried in order when file bytes are not valid UTF-8.
// Windows-1251 first: the knowledge base carries Russian-language documents
// exported from legacy systems.
var fallbackEncodings = []*charmap.Charmap{
	charmap.Windows1251,
	charmap.ISO8859_1,
}

// loadText loads a plain-text file, decoding non-UTF-8 content via the
// fallback encodings and collapsing all whitespace runs to single spaces.
// An empty file yields one failed result.
func (l *Loader) loadText(path string) []Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failure(path, fmt.Errorf("read %s: %w", filepath.Base(path), err))
	}

	text, err := decodeText(data)
	if err != nil {
		l.log.Error("loader: undecodable text file",
			slog.String("file", filepath.Base(path)),
		)
		return failure(path, fmt.Errorf("%s: %w", filepath.Base(path), err))
	}

	text = collapseWhitespace(text)
	if text == "" {
		l.log.Warn("loader: text file is empty",
			slog.String("file", filepath.Base(path)),
		)
		return failure(path, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyFile))
	}

	l.log.Info("loader: loaded text file",
		slog.String("file", filepath.Base(path)),
		slog.Int("chars", len([]rune(text))),
	)

	return []Result{{Source: sourceName(path), Text: text}}
}

// decodeText returns the file content as a UTF-8 string, retrying with the
// fallback single-byte encodings when the raw bytes are not valid UTF-8.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, enc := range fallbackEncodings {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("could not determine text encoding")
}

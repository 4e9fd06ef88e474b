// Package loader normalises heterogeneous knowledge base files into a uniform
// (source, text) representation for the ingestion pipeline.
//
// Supported formats: JSON (structured records), TXT (plain text), PDF
// (page-oriented) and DOCX (paragraphs and tables). Dispatch is a
// capability-checked handler table: a format is only usable when its handler
// was registered at construction, and a known-but-unregistered format
// produces a structured dependency-missing failure instead of a crash.
//
// Failure isolation is the package's core invariant: one malformed file or
// record never stops processing of subsequent files or records. Every failure
// is reported as a Result carrying an error, never as a panic or an early
// return.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Sentinel errors for the loader failure taxonomy. Callers branch with
// [errors.Is]; the wrapped message carries the file context.
var (
	// ErrUnsupportedFormat marks files whose extension is outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDependencyMissing marks files of a known format whose handler was
	// not registered (parser capability absent at construction).
	ErrDependencyMissing = errors.New("format handler unavailable")

	// ErrEmptyFile marks files that contain no content at all.
	ErrEmptyFile = errors.New("file empty")

	// ErrNoText marks files that were parsed successfully but yielded no
	// extractable text.
	ErrNoText = errors.New("no extractable text")
)

// Result is the outcome of loading one logical document. A single file may
// produce zero, one, or many results: a JSON file yields one per record,
// while TXT/PDF/DOCX yield exactly one.
type Result struct {
	// Source is the originating file's base name with the extension stripped.
	// Not guaranteed unique across files that produce multiple records.
	Source string

	// Text is the normalised document text. Empty when Err is non-nil.
	Text string

	// Err is nil on success and describes the failure otherwise.
	Err error
}

// OK reports whether the result represents a successfully loaded document.
func (r Result) OK() bool { return r.Err == nil }

// handlerFunc loads one file of a specific format into results.
type handlerFunc func(l *Loader, path string) []Result

// knownExtensions is the closed set of formats the loader understands.
// A known extension without a registered handler is a dependency-missing
// failure; anything else is an unsupported format.
var knownExtensions = map[string]bool{
	".json": true,
	".txt":  true,
	".pdf":  true,
	".docx": true,
}

// whitespaceRE collapses runs of whitespace (including newlines) to a single
// space during text normalisation.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Loader dispatches files to per-format handlers and accumulates results.
type Loader struct {
	// handlers maps a lowercase file extension to its format handler.
	handlers map[string]handlerFunc

	// log is the structured logger for per-file progress and warnings.
	log *slog.Logger
}

// Option customises a Loader at construction time.
type Option func(*Loader)

// WithLogger sets the structured logger used by the loader.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithoutFormat removes the handler for the given extension, simulating an
// absent parser capability. Files of that format then produce a
// dependency-missing failure result instead of being parsed.
func WithoutFormat(ext string) Option {
	return func(l *Loader) { delete(l.handlers, strings.ToLower(ext)) }
}

// New constructs a Loader with all built-in format handlers registered.
func New(opts ...Option) *Loader {
	l := &Loader{
		handlers: map[string]handlerFunc{
			".json": (*Loader).loadJSON,
			".txt":  (*Loader).loadText,
			".pdf":  (*Loader).loadPDF,
			".docx": (*Loader).loadDOCX,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads a single file, dispatching on its extension. Unknown extensions
// and unregistered formats yield exactly one failed result; they never raise.
func (l *Loader) Load(path string) []Result {
	ext := strings.ToLower(filepath.Ext(path))
	src := sourceName(path)

	handler, ok := l.handlers[ext]
	if !ok {
		if knownExtensions[ext] {
			l.log.Error("loader: format handler unavailable",
				slog.String("file", filepath.Base(path)),
				slog.String("extension", ext),
			)
			return []Result{{Source: src, Err: fmt.Errorf("%s: %w (no parser registered for %s)", filepath.Base(path), ErrDependencyMissing, ext)}}
		}
		l.log.Warn("loader: unsupported file format",
			slog.String("file", filepath.Base(path)),
			slog.String("extension", ext),
		)
		return []Result{{Source: src, Err: fmt.Errorf("%s: %w: %q", filepath.Base(path), ErrUnsupportedFormat, ext)}}
	}

	return handler(l, path)
}

// LoadDirectory loads every file with a known extension from dir, in sorted
// order, and accumulates all results. A single file's failure never aborts
// the scan. A missing or invalid directory yields no results.
func (l *Loader) LoadDirectory(dir string) []Result {
	info, err := os.Stat(dir)
	if err != nil {
		l.log.Error("loader: directory not found", slog.String("dir", dir))
		return nil
	}
	if !info.IsDir() {
		l.log.Error("loader: path is not a directory", slog.String("dir", dir))
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		l.log.Error("loader: failed to read directory", slog.String("dir", dir), slog.Any("error", err))
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if knownExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		l.log.Warn("loader: no supported files found", slog.String("dir", dir))
		return nil
	}
	l.log.Info("loader: scanning directory",
		slog.String("dir", dir),
		slog.Int("files", len(files)),
	)

	var all []Result
	successful, failed := 0, 0
	for _, name := range files {
		for _, r := range l.Load(filepath.Join(dir, name)) {
			all = append(all, r)
			if r.OK() {
				successful++
			} else {
				failed++
			}
		}
	}

	l.log.Info("loader: directory scan complete",
		slog.Int("successful", successful),
		slog.Int("failed", failed),
	)

	return all
}

// sourceName derives the document source label from a file path: the base
// name with the extension stripped.
func sourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// collapseWhitespace trims the text and collapses internal whitespace runs
// to single spaces.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// failure builds a single failed Result for the whole file.
func failure(path string, err error) []Result {
	return []Result{{Source: sourceName(path), Err: err}}
}

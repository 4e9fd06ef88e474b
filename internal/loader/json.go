package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// loadJSON loads a structured JSON file. The top level must be an array of
// objects; each object becomes one document whose text is the deterministic
// flattening of its fields. Non-object array elements are skipped with a
// warning, a record that flattens to nothing is dropped, and a file that
// fails to parse (or is not an array) yields exactly one failed result.
func (l *Loader) loadJSON(path string) []Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failure(path, fmt.Errorf("read %s: %w", filepath.Base(path), err))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		l.log.Error("loader: invalid JSON",
			slog.String("file", filepath.Base(path)),
			slog.Any("error", err),
		)
		return failure(path, fmt.Errorf("parse %s: %w", filepath.Base(path), err))
	}

	records, ok := top.([]any)
	if !ok {
		l.log.Error("loader: JSON top level is not an array",
			slog.String("file", filepath.Base(path)),
		)
		return failure(path, fmt.Errorf("%s: top-level JSON value must be an array of objects", filepath.Base(path)))
	}

	src := sourceName(path)
	var results []Result
	skipped := 0
	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			l.log.Warn("loader: skipping non-object JSON record",
				slog.String("file", filepath.Base(path)),
				slog.Int("index", i),
			)
			skipped++
			continue
		}
		text := flattenRecord(obj)
		if text == "" {
			skipped++
			continue
		}
		results = append(results, Result{Source: src, Text: text})
	}

	l.log.Info("loader: loaded JSON file",
		slog.String("file", filepath.Base(path)),
		slog.Int("records", len(results)),
		slog.Int("skipped", skipped),
	)

	return results
}

// flattenRecord renders a JSON object as "key: value" pairs joined by single
// spaces, with keys in sorted order for deterministic output. Null values
// are omitted, lists are comma-joined, and nested objects are rendered
// inline with "; " between their fields.
func flattenRecord(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		v := obj[k]
		if v == nil {
			continue
		}
		rendered := flattenValue(v)
		if rendered == "" {
			continue
		}
		parts = append(parts, k+": "+rendered)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// flattenValue renders one JSON value as text. Nested objects become
// "k: v; k: v" with sorted keys; lists join their elements with ", ".
func flattenValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case json.Number:
		return val.String()
	case []any:
		var items []string
		for _, item := range val {
			if s := flattenValue(item); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var pairs []string
		for _, k := range keys {
			if s := flattenValue(val[k]); s != "" {
				pairs = append(pairs, k+": "+s)
			}
		}
		return strings.Join(pairs, "; ")
	default:
		return fmt.Sprint(val)
	}
}

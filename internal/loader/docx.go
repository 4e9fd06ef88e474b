package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// documentXMLPath is the WordprocessingML main document part inside the
// DOCX zip container.
const documentXMLPath = "word/document.xml"

// loadDOCX loads a DOCX file: body paragraphs first, then table rows with
// cell texts joined by " | ". A file with no textual content yields one
// failed result.
func (l *Loader) loadDOCX(path string) []Result {
	zr, err := zip.OpenReader(path)
	if err != nil {
		l.log.Error("loader: failed to open DOCX",
			slog.String("file", filepath.Base(path)),
			slog.Any("error", err),
		)
		return failure(path, fmt.Errorf("open %s: %w", filepath.Base(path), err))
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, zf := range zr.File {
		if zf.Name == documentXMLPath {
			doc, err = zf.Open()
			break
		}
	}
	if doc == nil && err == nil {
		err = errors.New("missing " + documentXMLPath)
	}
	if err != nil {
		return failure(path, fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	defer doc.Close()

	paragraphs, rows, err := parseDocumentXML(doc)
	if err != nil {
		l.log.Error("loader: failed to parse DOCX document",
			slog.String("file", filepath.Base(path)),
			slog.Any("error", err),
		)
		return failure(path, fmt.Errorf("parse %s: %w", filepath.Base(path), err))
	}

	parts := append(paragraphs, rows...)
	if len(parts) == 0 {
		l.log.Warn("loader: DOCX contains no text",
			slog.String("file", filepath.Base(path)),
		)
		return failure(path, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoText))
	}

	text := collapseWhitespace(strings.Join(parts, "\n"))

	l.log.Info("loader: loaded DOCX file",
		slog.String("file", filepath.Base(path)),
		slog.Int("paragraphs", len(paragraphs)),
		slog.Int("table_rows", len(rows)),
	)

	return []Result{{Source: sourceName(path), Text: text}}
}

// parseDocumentXML walks the WordprocessingML token stream and collects
// non-empty body paragraphs and table rows. Paragraphs inside table cells
// belong to their row, not to the body.
func parseDocumentXML(r io.Reader) (paragraphs, rows []string, err error) {
	dec := xml.NewDecoder(r)

	var (
		para     strings.Builder
		cell     strings.Builder
		rowCells []string
		tblDepth int
		inCell   bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth > 0 {
					rowCells = rowCells[:0]
				}
			case "tc":
				if tblDepth > 0 {
					inCell = true
					cell.Reset()
				}
			case "p":
				if tblDepth == 0 {
					para.Reset()
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return nil, nil, err
				}
				if inCell {
					cell.WriteString(s)
				} else if tblDepth == 0 {
					para.WriteString(s)
				}
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "tbl":
				tblDepth--
			case "tr":
				if tblDepth > 0 {
					var nonEmpty []string
					for _, c := range rowCells {
						if c != "" {
							nonEmpty = append(nonEmpty, c)
						}
					}
					if len(nonEmpty) > 0 {
						rows = append(rows, strings.Join(nonEmpty, " | "))
					}
				}
			case "tc":
				if tblDepth > 0 {
					inCell = false
					rowCells = append(rowCells, strings.TrimSpace(cell.String()))
				}
			case "p":
				if tblDepth == 0 {
					if s := strings.TrimSpace(para.String()); s != "" {
						paragraphs = append(paragraphs, s)
					}
					para.Reset()
				}
			}
		}
	}

	return paragraphs, rows, nil
}

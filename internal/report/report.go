// Package report produces the durable artifacts of a batch run and the
// tabular exports of attendance queries. Layout beyond "header plus one
// line per row" is intentionally not modelled here.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists artifacts under a base directory.
type Writer struct {
	Dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Document writes a plain-text document artifact: the header block
// followed by one line per entry, in the order given.
func (w *Writer) Document(name, header string, lines []string) (string, error) {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		if !strings.HasSuffix(header, "\n") {
			b.WriteString("\n")
		}
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return w.write(name+".txt", []byte(b.String()))
}

// JSON writes a structured artifact as indented JSON.
func (w *Writer) JSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return w.write(name+".json", data)
}

func (w *Writer) write(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

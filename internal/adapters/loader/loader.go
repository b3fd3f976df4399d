// Package loader reads knowledge corpora into reference question/answer pairs.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

// ErrUnsupportedFormat is returned for files no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported knowledge format")

// Column names recognised for the question and answer fields.
var (
	questionColumns = []string{"prompt", "question", "input"}
	answerColumns   = []string{"completion", "answer", "output", "response"}
)

// CSVLoader loads a corpus with a header row naming the question and
// answer columns. Rows with an empty field are dropped.
type CSVLoader struct{}

// NewCSVLoader creates a new CSV knowledge loader.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load reads all complete rows from the CSV file at path.
func (l *CSVLoader) Load(ctx context.Context, path string) ([]entities.KnowledgeEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	qi, ai := columnIndex(header, questionColumns), columnIndex(header, answerColumns)
	if qi < 0 || ai < 0 {
		return nil, fmt.Errorf("%s: header needs one of %v and one of %v", filepath.Base(path), questionColumns, answerColumns)
	}

	var entries []entities.KnowledgeEntry
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if qi >= len(record) || ai >= len(record) {
			continue
		}
		if e, ok := newEntry(record[qi], record[ai]); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *CSVLoader) SupportedExtensions() []string {
	return []string{".csv"}
}

// JSONLLoader loads one JSON object per line.
type JSONLLoader struct{}

// NewJSONLLoader creates a new JSON Lines knowledge loader.
func NewJSONLLoader() *JSONLLoader {
	return &JSONLLoader{}
}

// Load reads every complete record from the JSONL file at path.
// Blank lines are skipped; malformed lines are an error.
func (l *JSONLLoader) Load(ctx context.Context, path string) ([]entities.KnowledgeEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var entries []entities.KnowledgeEntry
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e, ok := newEntry(firstString(rec, questionColumns), firstString(rec, answerColumns)); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, ctx.Err()
}

// SupportedExtensions returns file extensions this loader handles.
func (l *JSONLLoader) SupportedExtensions() []string {
	return []string{".jsonl", ".ndjson"}
}

// MultiLoader dispatches on file extension.
type MultiLoader struct {
	loaders map[string]ports.KnowledgeLoader
}

// NewMultiLoader creates a loader that handles every supported format.
func NewMultiLoader(loaders ...ports.KnowledgeLoader) *MultiLoader {
	if len(loaders) == 0 {
		loaders = []ports.KnowledgeLoader{NewCSVLoader(), NewJSONLLoader()}
	}
	m := &MultiLoader{loaders: make(map[string]ports.KnowledgeLoader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedExtensions() {
			m.loaders[ext] = l
		}
	}
	return m
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]entities.KnowledgeEntry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return l.Load(ctx, path)
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// newEntry keeps the text as written; the answer's length and prefix feed
// retrieval filtering.
func newEntry(question, answer string) (entities.KnowledgeEntry, bool) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return entities.KnowledgeEntry{}, false
	}
	return entities.KnowledgeEntry{ReferenceQuestion: question, ReferenceAnswer: answer}, true
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				return i
			}
		}
	}
	return -1
}

func firstString(rec map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

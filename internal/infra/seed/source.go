package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// Source yields the entries used to populate an empty record store.
type Source interface {
	Load(ctx context.Context) ([]faq.EntryInput, error)
}

// Noop yields nothing.
type Noop struct{}

// Load implements Source.
func (Noop) Load(context.Context) ([]faq.EntryInput, error) { return nil, nil }

// FileSource reads a JSON seed file from disk.
type FileSource struct {
	path string
}

// NewFileSource constructs a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load implements Source. A missing file yields no entries.
func (s *FileSource) Load(_ context.Context) ([]faq.EntryInput, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return decode(bytes.NewReader(data))
}

// decode accepts either a bare JSON array of entries or an object with a
// "faqs" array, the shape produced by the admin export.
func decode(r io.Reader) ([]faq.EntryInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed payload: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []faq.EntryInput
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode seed entries: %w", err)
		}
		return entries, nil
	}
	var wrapped struct {
		FAQs []faq.EntryInput `json:"faqs"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode seed entries: %w", err)
	}
	return wrapped.FAQs, nil
}

var (
	_ Source = Noop{}
	_ Source = (*FileSource)(nil)
)

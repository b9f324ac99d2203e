package changeset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/changeset/internal/model"
	"github.com/roach88/changeset/internal/tracker"
)

// Changeset is a parsed and validated changeset file.
type Changeset struct {
	Table   string           `yaml:"table"`
	Key     []string         `yaml:"key"`
	Columns []string         `yaml:"columns"`
	Inserts []map[string]any `yaml:"inserts,omitempty"`
	Updates []map[string]any `yaml:"updates,omitempty"`
	Deletes []map[string]any `yaml:"deletes,omitempty"`

	// Path is the file the changeset was loaded from, if any.
	Path string `yaml:"-"`

	schema  *model.Schema[model.Row]
	repeats []Repeat
}

// Repeats lists rows whose key was already used earlier in their section.
func (c *Changeset) Repeats() []Repeat {
	return c.repeats
}

// Load reads and parses a changeset file.
func Load(path string) (*Changeset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read changeset: %w", err)
	}
	cs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cs.Path = path
	return cs, nil
}

// Parse decodes and validates a changeset document.
// Consistency problems are returned as ValidationErrors.
func Parse(data []byte) (*Changeset, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode changeset: empty document")
	}
	if err := checkShape(doc); err != nil {
		return nil, err
	}

	var cs Changeset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}

	if errs := cs.validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cs, nil
}

// Schema returns the row schema described by the changeset.
func (c *Changeset) Schema() *model.Schema[model.Row] {
	return c.schema
}

// Counts returns the number of staged rows of each kind.
func (c *Changeset) Counts() tracker.Counts {
	return tracker.Counts{
		Inserts: len(c.Inserts),
		Updates: len(c.Updates),
		Deletes: len(c.Deletes),
	}
}

// Stage adds every row to the buffer in file order: inserts, updates,
// then deletes.
func (c *Changeset) Stage(buf *tracker.StagingBuffer[model.Row]) {
	for _, values := range c.Inserts {
		buf.AddInsert(c.schema.NewRow(values))
	}
	for _, values := range c.Updates {
		buf.AddUpdate(c.schema.NewRow(values))
	}
	for _, values := range c.Deletes {
		buf.AddDelete(c.schema.NewRow(values))
	}
}

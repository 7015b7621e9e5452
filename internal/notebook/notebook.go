// Package notebook holds the scratchpad domain model: pads, cells, tag
// aggregation and the per-pad schema registry.
package notebook

import (
	"regexp"
	"slices"
)

// SupportedLanguages lists every cell language accepted on write.
var SupportedLanguages = []string{
	"json", "yaml", "yml", "md", "txt",
	"py", "js", "ts", "tsx", "jsx", "rs", "c", "h", "cpp", "hpp",
	"sh", "css", "html", "htm", "java", "go", "rb", "toml", "php", "cs",
}

// CanonicalFields are the metadata keys promoted to their own columns.
var CanonicalFields = []string{"title", "description", "summary"}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id satisfies the scratchpad identifier charset.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// IsSupportedLanguage reports whether lang is an accepted cell language.
func IsSupportedLanguage(lang string) bool {
	return slices.Contains(SupportedLanguages, lang)
}

// Cell is one language-tagged content unit within a scratchpad.
type Cell struct {
	// CellID is unique within the owning pad and survives moves and replaces
	CellID string

	// Index is the cell's position; contiguous 0..n-1 after every mutation
	Index int

	Language string
	Content  string

	// Validate makes a failed validation block the write
	Validate bool

	// JSONSchema is an inline object, a JSON string, or a scratchpad://schemas/<name> reference
	JSONSchema any

	// Metadata is free-form; "tags" is normalized to a deduplicated []string
	Metadata map[string]any
}

// Scratchpad is a named collection of ordered cells plus metadata.
type Scratchpad struct {
	ID       string
	Cells    []Cell
	Metadata map[string]any

	// Timestamps are unix microseconds, populated by storage
	CreatedAt    int64
	UpdatedAt    int64
	LastAccessAt int64
}

// NewCell builds a cell with normalized metadata after checking its language.
func NewCell(cellID string, index int, language, content string) (Cell, error) {
	if !IsSupportedLanguage(language) {
		return Cell{}, unsupportedLanguage(language)
	}
	return Cell{
		CellID:   cellID,
		Index:    index,
		Language: language,
		Content:  content,
	}, nil
}

// Tags returns the cell's normalized tag list.
func (c *Cell) Tags() []string {
	return NormalizeTags(c.Metadata["tags"])
}

// Clone returns a deep copy of the cell's maps.
func (c Cell) Clone() Cell {
	c.Metadata = cloneMap(c.Metadata)
	if m, ok := c.JSONSchema.(map[string]any); ok {
		c.JSONSchema = cloneMap(m)
	}
	return c
}

// Namespace returns the pad's trimmed namespace, or "".
func (p *Scratchpad) Namespace() string {
	ns, _ := p.Metadata["namespace"].(string)
	return ns
}

// SetNamespace replaces the pad namespace; an empty value removes it.
func (p *Scratchpad) SetNamespace(ns string) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata["namespace"] = ns
	p.Metadata = NormalizeMetadata(p.Metadata)
}

// Field returns a canonical metadata value (title, description, summary), or "".
func (p *Scratchpad) Field(name string) string {
	v, _ := p.Metadata[name].(string)
	return v
}

// PadTags returns the pad-level tags as stored in metadata.
func (p *Scratchpad) PadTags() []string {
	return NormalizeTags(p.Metadata["tags"])
}

// CellTags returns the union of all cell tags in first-seen order.
func (p *Scratchpad) CellTags() []string {
	var collected []string
	for i := range p.Cells {
		collected = append(collected, p.Cells[i].Tags()...)
	}
	return MergeTags(collected)
}

// AggregateTags returns pad tags merged with every cell tag.
func (p *Scratchpad) AggregateTags() []string {
	return MergeTags(p.PadTags(), p.CellTags())
}

// Reindex rewrites cell indices to match slice order.
func (p *Scratchpad) Reindex() {
	for i := range p.Cells {
		p.Cells[i].Index = i
	}
}

// Clone returns a deep copy of the pad.
func (p *Scratchpad) Clone() *Scratchpad {
	out := *p
	out.Metadata = cloneMap(p.Metadata)
	out.Cells = make([]Cell, len(p.Cells))
	for i := range p.Cells {
		out.Cells[i] = p.Cells[i].Clone()
	}
	return &out
}

// FindCell returns the slice position of the cell with cellID, or -1.
func (p *Scratchpad) FindCell(cellID string) int {
	for i := range p.Cells {
		if p.Cells[i].CellID == cellID {
			return i
		}
	}
	return -1
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case map[string]any:
			out[k] = cloneMap(tv)
		case []string:
			out[k] = slices.Clone(tv)
		case []any:
			out[k] = slices.Clone(tv)
		default:
			out[k] = v
		}
	}
	return out
}

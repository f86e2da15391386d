package weights

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/letters.json
var defaultTable []byte

// Table maps symbols to their weight vectors. It is immutable after construction
// and safe to share between goroutines.
type Table struct {
	names   []string
	vectors map[string]Vector
}

// Default returns the embedded table covering A-Z and the WH/CH/TH/SH digraphs.
func Default() (*Table, error) {
	return Parse(defaultTable, FormatJSON)
}

// LoadFile reads a table from disk, picking the decoder from the file extension.
func LoadFile(path string) (*Table, error) {
	format, err := formatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return Parse(data, format)
}

// Load decodes a table from r.
func Load(r io.Reader, format Format) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %v", ErrConfig, err)
	}
	return Parse(data, format)
}

// Parse decodes and builds a table from raw bytes.
func Parse(data []byte, format Format) (*Table, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrConfig, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrConfig, format)
	}
	return Build(doc)
}

// Build validates doc and expands every letter group into a full, name-sorted vector.
func Build(doc Document) (*Table, error) {
	if len(doc.AllBlendShapes) == 0 {
		return nil, fmt.Errorf("%w: allBlendShapes is empty", ErrConfig)
	}

	known := make(map[string]struct{}, len(doc.AllBlendShapes))
	for _, name := range doc.AllBlendShapes {
		if name == "" {
			return nil, fmt.Errorf("%w: empty blend shape name", ErrConfig)
		}
		if _, dup := known[name]; dup {
			return nil, fmt.Errorf("%w: duplicate blend shape %q", ErrConfig, name)
		}
		known[name] = struct{}{}
	}

	names := append([]string(nil), doc.AllBlendShapes...)
	sort.Strings(names)

	t := &Table{
		names:   names,
		vectors: make(map[string]Vector),
	}

	for gi, group := range doc.Data {
		if len(group.Letters) == 0 {
			return nil, fmt.Errorf("%w: group %d has no letters", ErrConfig, gi)
		}

		vec := make(Vector, 0, len(names))
		present := make(map[string]struct{}, len(group.ShapeData))
		for _, sd := range group.ShapeData {
			if _, ok := known[sd.Name]; !ok {
				return nil, fmt.Errorf("%w: group %d references unknown blend shape %q", ErrConfig, gi, sd.Name)
			}
			if _, dup := present[sd.Name]; dup {
				return nil, fmt.Errorf("%w: group %d sets %q twice", ErrConfig, gi, sd.Name)
			}
			w := float64(sd.Weight)
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: group %d has non-finite weight for %q", ErrConfig, gi, sd.Name)
			}
			present[sd.Name] = struct{}{}
			vec = append(vec, sd)
		}
		for _, name := range doc.AllBlendShapes {
			if _, ok := present[name]; !ok {
				vec = append(vec, BlendShapeWeight{Name: name})
			}
		}
		sort.Slice(vec, func(i, j int) bool { return vec[i].Name < vec[j].Name })

		for _, letter := range group.Letters {
			symbol := strings.ToUpper(strings.TrimSpace(letter))
			if symbol == "" {
				return nil, fmt.Errorf("%w: group %d has an empty letter", ErrConfig, gi)
			}
			if _, dup := t.vectors[symbol]; dup || symbol == Silence {
				return nil, fmt.Errorf("%w: symbol %q defined twice", ErrConfig, symbol)
			}
			t.vectors[symbol] = vec
		}
	}

	silence := make(Vector, len(names))
	for i, name := range names {
		silence[i] = BlendShapeWeight{Name: name}
	}
	t.vectors[Silence] = silence

	return t, nil
}

// Get returns the weight vector for symbol. The result is shared; do not modify it.
func (t *Table) Get(symbol string) (Vector, error) {
	vec, ok := t.vectors[symbol]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSymbol, symbol)
	}
	return vec, nil
}

// Names returns the known blend-shape names in vector order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Symbols returns every symbol in the table, sorted.
func (t *Table) Symbols() []string {
	out := make([]string, 0, len(t.vectors))
	for s := range t.vectors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len is the number of entries in every vector.
func (t *Table) Len() int {
	return len(t.names)
}

func formatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %s", ErrConfig, path)
	}
}

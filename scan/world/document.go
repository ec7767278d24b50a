package world

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/redstone-tools/tickpack/scan"
)

//go:embed world.schema.json
var worldSchemaText string

var worldSchema = jsonschema.MustCompileString("world.schema.json", worldSchemaText)

// Document is the on-disk description of a circuit.
type Document struct {
	World string         `json:"world"`
	Cells []DocumentCell `json:"cells"`
}

// DocumentCell is one placed element. Attribute values may be written as
// strings, integers or booleans; they are stored as strings.
type DocumentCell struct {
	Pos   [3]int         `json:"pos"`
	Kind  string         `json:"kind"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// LoadGrid reads a JSON or YAML world document, validates it against the
// world schema and builds a Grid.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseYAML converts a YAML world document to JSON and parses it.
func ParseYAML(data []byte) (*Grid, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing world YAML: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("converting world YAML: %w", err)
	}
	return ParseJSON(jsonData)
}

// ParseJSON validates and parses a JSON world document.
func ParseJSON(data []byte) (*Grid, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing world JSON: %w", err)
	}
	if err := worldSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid world document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding world document: %w", err)
	}
	return doc.Grid()
}

// Grid builds the in-memory grid described by d.
func (d Document) Grid() (*Grid, error) {
	g := NewGrid(d.World)
	for i, c := range d.Cells {
		kind, err := scan.ParseElementKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		attrs := make(scan.Attributes, len(c.Attrs))
		for k, v := range c.Attrs {
			attrs[k] = fmt.Sprint(v)
		}
		g.Set(c.Pos[0], c.Pos[1], c.Pos[2], kind, attrs)
	}
	return g, nil
}

// DocumentOf renders g back into a document.
func DocumentOf(g *Grid) Document {
	doc := Document{World: g.World(), Cells: make([]DocumentCell, 0, g.Len())}
	g.Each(func(c scan.Coordinate, cell Cell) {
		dc := DocumentCell{Pos: [3]int{c.X, c.Y, c.Z}, Kind: cell.Kind.String()}
		if len(cell.Attrs) > 0 {
			dc.Attrs = make(map[string]any, len(cell.Attrs))
			for k, v := range cell.Attrs {
				dc.Attrs[k] = v
			}
		}
		doc.Cells = append(doc.Cells, dc)
	})
	return doc
}

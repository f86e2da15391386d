// Package weights loads the per-symbol blend-shape weight table that drives lip-sync.
package weights

import "errors"

var (
	ErrConfig        = errors.New("malformed weight table")
	ErrUnknownSymbol = errors.New("no blend shape data for symbol")
)

// Silence is the synthetic rest-pose symbol. Its vector is all zeros.
const Silence = "NONE"

// BlendShapeWeight is a single named blend-shape value on the renderer's 0-100 scale.
type BlendShapeWeight struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float32 `json:"weight" yaml:"weight"`
}

// Vector is the full weight set for one symbol, sorted by blend-shape name.
// Vectors returned by a Table are shared and must not be modified.
type Vector []BlendShapeWeight

// Document is the serialized form of a weight table.
type Document struct {
	AllBlendShapes []string      `json:"allBlendShapes" yaml:"allBlendShapes"`
	Data           []LetterGroup `json:"data" yaml:"data"`
}

// LetterGroup assigns one partial weight list to every symbol in Letters.
type LetterGroup struct {
	Letters   []string           `json:"letters" yaml:"letters"`
	ShapeData []BlendShapeWeight `json:"shapeData" yaml:"shapeData"`
}

// Format identifies the encoding of a table source.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

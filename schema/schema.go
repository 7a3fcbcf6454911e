// Package schema implements the header-page schema codec: the ordered
// column list that drives row encoding, its on-disk bit layout, and the
// validation rules from spec §3/§4.2.
package schema

import "fmt"

// ColumnType is the closed set of fixed-width cell types spec.md allows.
type ColumnType uint8

const (
	Int32 ColumnType = iota
	Int64
	Float32
	Float64
	Timestamp
	Boolean
	String
)

func (t ColumnType) String() string {
	switch t {
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Timestamp:
		return "Timestamp"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

// fixedWidth returns the cell payload width for every type except String,
// whose width is declared per-column.
var fixedWidth = map[ColumnType]int{
	Int32:     4,
	Int64:     8,
	Float32:   4,
	Float64:   8,
	Timestamp: 4,
	Boolean:   1,
}

// Column is one declared column: a name (1-60 bytes, no embedded zero),
// a type, and a nullability flag.
type Column struct {
	Name        string
	Type        ColumnType
	StringWidth int // meaningful only when Type == String
	Nullable    bool
}

// CellWidth returns the payload width of one cell of this column,
// excluding the null prefix byte.
func (c Column) CellWidth() int {
	if c.Type == String {
		return c.StringWidth
	}
	return fixedWidth[c.Type]
}

// width returns the total bytes this column consumes in a row, including
// its null-prefix byte if nullable.
func (c Column) width() int {
	w := c.CellWidth()
	if c.Nullable {
		w++
	}
	return w
}

// Schema is an ordered list of 1-60 columns.
type Schema []Column

// RowWidth returns 1 (status byte) + the sum of each column's width.
func (s Schema) RowWidth() int {
	total := 1
	for _, c := range s {
		total += c.width()
	}
	return total
}

const (
	MaxColumns  = 60
	MaxNameLen  = 60
	MaxRowWidth = 4096
	MaxStringW  = 16383
)

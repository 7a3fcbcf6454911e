package schema

import (
	"encoding/binary"
	"fmt"

	"branchdb/errs"
)

const (
	nullableBit = uint16(1) << 15
	stringBit   = uint16(1) << 14
	stringMask  = uint16(0x3FFF)

	// low-bit type codes for non-string columns.
	typeInt32     = 0
	typeInt64     = 1
	typeFloat32   = 2
	typeFloat64   = 3
	typeTimestamp = 4
	typeBoolean   = 5
)

var lowBitsToType = map[uint16]ColumnType{
	typeInt32:     Int32,
	typeInt64:     Int64,
	typeFloat32:   Float32,
	typeFloat64:   Float64,
	typeTimestamp: Timestamp,
	typeBoolean:   Boolean,
}

var typeToLowBits = map[ColumnType]uint16{
	Int32:     typeInt32,
	Int64:     typeInt64,
	Float32:   typeFloat32,
	Float64:   typeFloat64,
	Timestamp: typeTimestamp,
	Boolean:   typeBoolean,
}

// entrySize is the fixed size of one column entry in the header page:
// a 2-byte type code followed by the 60-byte zero-padded name.
const entrySize = 2 + MaxNameLen

// EncodeSchema serializes schema into the header-page byte layout of
// spec §3: num_pages is NOT included here (that field belongs to the
// table header, written by the table package); this only encodes
// num_columns followed by the column entries, matching
// spec §4.2's "header_bytes" unit.
func EncodeSchema(s Schema) ([]byte, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	buf := make([]byte, 1+len(s)*entrySize)
	buf[0] = uint8(len(s))
	off := 1
	for _, c := range s {
		code, err := encodeTypeCode(c)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint16(buf[off:off+2], code)
		off += 2
		name := make([]byte, MaxNameLen)
		copy(name, c.Name)
		copy(buf[off:off+MaxNameLen], name)
		off += MaxNameLen
	}
	return buf, nil
}

func encodeTypeCode(c Column) (uint16, error) {
	var code uint16
	if c.Type == String {
		if c.StringWidth < 1 || c.StringWidth > MaxStringW {
			return 0, fmt.Errorf("schema: column %q: %w: string width %d out of [1,%d]", c.Name, errs.ErrSchemaInvalid, c.StringWidth, MaxStringW)
		}
		code = stringBit | (uint16(c.StringWidth) & stringMask)
	} else {
		low, ok := typeToLowBits[c.Type]
		if !ok {
			return 0, fmt.Errorf("schema: column %q: %w: unknown type %v", c.Name, errs.ErrSchemaInvalid, c.Type)
		}
		code = low
	}
	if c.Nullable {
		code |= nullableBit
	}
	return code, nil
}

// DecodeSchema parses the header_bytes produced by EncodeSchema back into
// a Schema, enforcing every validation rule in spec §4.2.
func DecodeSchema(buf []byte) (Schema, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("schema: %w: header too short", errs.ErrSchemaInvalid)
	}
	numCols := int(buf[0])
	if numCols < 1 || numCols > MaxColumns {
		return nil, fmt.Errorf("schema: %w: column count %d out of [1,%d]", errs.ErrSchemaInvalid, numCols, MaxColumns)
	}
	need := 1 + numCols*entrySize
	if len(buf) < need {
		return nil, fmt.Errorf("schema: %w: header truncated", errs.ErrSchemaInvalid)
	}

	s := make(Schema, 0, numCols)
	seen := make(map[string]bool, numCols)
	off := 1
	for i := 0; i < numCols; i++ {
		code := binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
		nameBytes := buf[off : off+MaxNameLen]
		off += MaxNameLen

		name, err := decodeName(nameBytes)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("schema: %w: duplicate column name %q", errs.ErrSchemaInvalid, name)
		}
		seen[name] = true

		col := Column{Name: name, Nullable: code&nullableBit != 0}
		if code&stringBit != 0 {
			width := int(code & stringMask)
			if width == 0 {
				return nil, fmt.Errorf("schema: %w: column %q: string width 0", errs.ErrSchemaInvalid, name)
			}
			col.Type = String
			col.StringWidth = width
		} else {
			low := code &^ (nullableBit | stringBit)
			t, ok := lowBitsToType[low]
			if !ok {
				return nil, fmt.Errorf("schema: %w: column %q: unknown type code %d", errs.ErrSchemaInvalid, name, low)
			}
			col.Type = t
		}
		s = append(s, col)
	}

	if err := validateRowWidth(s); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeName(nameBytes []byte) (string, error) {
	// Find the zero-padding boundary; any zero byte before it is invalid.
	n := len(nameBytes)
	for n > 0 && nameBytes[n-1] == 0 {
		n--
	}
	if n == 0 || n > MaxNameLen {
		return "", fmt.Errorf("schema: %w: name length %d out of [1,%d]", errs.ErrSchemaInvalid, n, MaxNameLen)
	}
	for i := 0; i < n; i++ {
		if nameBytes[i] == 0 {
			return "", fmt.Errorf("schema: %w: embedded zero byte in column name", errs.ErrSchemaInvalid)
		}
	}
	return string(nameBytes[:n]), nil
}

// Validate checks the shape rules spec §3/§4.2 require of a Schema before
// it is ever encoded: column count, name shape, duplicate names, string
// width, and total row width.
func Validate(s Schema) error {
	if len(s) < 1 || len(s) > MaxColumns {
		return fmt.Errorf("schema: %w: column count %d out of [1,%d]", errs.ErrSchemaInvalid, len(s), MaxColumns)
	}
	seen := make(map[string]bool, len(s))
	for _, c := range s {
		if len(c.Name) < 1 || len(c.Name) > MaxNameLen {
			return fmt.Errorf("schema: %w: name %q length out of [1,%d]", errs.ErrSchemaInvalid, c.Name, MaxNameLen)
		}
		for i := 0; i < len(c.Name); i++ {
			if c.Name[i] == 0 {
				return fmt.Errorf("schema: %w: embedded zero byte in column name %q", errs.ErrSchemaInvalid, c.Name)
			}
		}
		if seen[c.Name] {
			return fmt.Errorf("schema: %w: duplicate column name %q", errs.ErrSchemaInvalid, c.Name)
		}
		seen[c.Name] = true
		if c.Type == String && (c.StringWidth < 1 || c.StringWidth > MaxStringW) {
			return fmt.Errorf("schema: %w: column %q: string width %d out of [1,%d]", errs.ErrSchemaInvalid, c.Name, c.StringWidth, MaxStringW)
		}
	}
	return validateRowWidth(s)
}

func validateRowWidth(s Schema) error {
	if w := s.RowWidth(); w > MaxRowWidth {
		return fmt.Errorf("schema: %w: row width %d exceeds %d", errs.ErrSchemaInvalid, w, MaxRowWidth)
	}
	return nil
}

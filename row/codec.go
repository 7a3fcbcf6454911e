package row

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"branchdb/errs"
	"branchdb/schema"
)

const (
	statusTombstoned = 0
	statusLive       = 1
)

// EncodeRow encodes one live row into exactly schema.RowWidth() bytes,
// per spec §4.3. values must align 1:1 with s in order.
func EncodeRow(s schema.Schema, values []Value) ([]byte, error) {
	if len(values) != len(s) {
		return nil, fmt.Errorf("row: %w: got %d values for %d columns", errs.ErrTypeMismatch, len(values), len(s))
	}
	buf := make([]byte, s.RowWidth())
	buf[0] = statusLive
	off := 1
	for i, col := range s {
		v := values[i]
		if col.Nullable {
			if v.Kind == KindNull {
				buf[off] = 1
				off += 1 + col.CellWidth()
				continue
			}
			buf[off] = 0
			off++
		} else if v.Kind == KindNull {
			return nil, fmt.Errorf("row: column %q: %w", col.Name, errs.ErrNullViolation)
		}

		if v.Kind != kindForType(col.Type) {
			return nil, fmt.Errorf("row: column %q: %w: expected %v, got kind %d", col.Name, errs.ErrTypeMismatch, col.Type, v.Kind)
		}

		cell := buf[off : off+col.CellWidth()]
		if err := encodeCell(col, v, cell); err != nil {
			return nil, err
		}
		off += col.CellWidth()
	}
	return buf, nil
}

func encodeCell(col schema.Column, v Value, cell []byte) error {
	switch col.Type {
	case schema.Int32:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return fmt.Errorf("row: column %q: %w: %d out of int32 range", col.Name, errs.ErrRangeError, v.Int)
		}
		binary.LittleEndian.PutUint32(cell, uint32(int32(v.Int)))
	case schema.Int64:
		binary.LittleEndian.PutUint64(cell, uint64(v.Int))
	case schema.Float32:
		binary.LittleEndian.PutUint32(cell, math.Float32bits(float32(v.Float)))
	case schema.Float64:
		binary.LittleEndian.PutUint64(cell, math.Float64bits(v.Float))
	case schema.Timestamp:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return fmt.Errorf("row: column %q: %w: %d out of int32 range", col.Name, errs.ErrRangeError, v.Int)
		}
		binary.LittleEndian.PutUint32(cell, uint32(int32(v.Int)))
	case schema.Boolean:
		if v.Bool {
			cell[0] = 1
		} else {
			cell[0] = 0
		}
	case schema.String:
		if len(v.Str) > col.StringWidth {
			return fmt.Errorf("row: column %q: %w: string length %d exceeds width %d", col.Name, errs.ErrStringInvalid, len(v.Str), col.StringWidth)
		}
		if strings.IndexByte(v.Str, 0) >= 0 {
			return fmt.Errorf("row: column %q: %w: string contains a zero byte", col.Name, errs.ErrStringInvalid)
		}
		copy(cell, v.Str)
	}
	return nil
}

// DecodeRow reads the status byte and, if live, every cell in schema
// order. The returned bool is true iff the slot was live.
func DecodeRow(s schema.Schema, buf []byte) (bool, []Value, error) {
	want := s.RowWidth()
	if len(buf) != want {
		return false, nil, fmt.Errorf("row: %w: buffer length %d != row width %d", errs.ErrCorruption, len(buf), want)
	}
	switch buf[0] {
	case statusTombstoned:
		return false, nil, nil
	case statusLive:
		// fall through
	default:
		return false, nil, fmt.Errorf("row: %w: invalid status byte %d", errs.ErrCorruption, buf[0])
	}

	values := make([]Value, len(s))
	off := 1
	for i, col := range s {
		if col.Nullable {
			isNull := buf[off]
			off++
			if isNull == 1 {
				values[i] = Null()
				off += col.CellWidth()
				continue
			} else if isNull != 0 {
				return false, nil, fmt.Errorf("row: column %q: %w: invalid null prefix %d", col.Name, errs.ErrCorruption, isNull)
			}
		}
		cell := buf[off : off+col.CellWidth()]
		v, err := decodeCell(col, cell)
		if err != nil {
			return false, nil, err
		}
		values[i] = v
		off += col.CellWidth()
	}
	return true, values, nil
}

func decodeCell(col schema.Column, cell []byte) (Value, error) {
	switch col.Type {
	case schema.Int32:
		return I32(int32(binary.LittleEndian.Uint32(cell))), nil
	case schema.Int64:
		return I64(int64(binary.LittleEndian.Uint64(cell))), nil
	case schema.Float32:
		return F32(math.Float32frombits(binary.LittleEndian.Uint32(cell))), nil
	case schema.Float64:
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(cell))), nil
	case schema.Timestamp:
		return Ts(int32(binary.LittleEndian.Uint32(cell))), nil
	case schema.Boolean:
		return Bool(cell[0] != 0), nil
	case schema.String:
		n := len(cell)
		for n > 0 && cell[n-1] == 0 {
			n--
		}
		return Str(string(cell[:n])), nil
	default:
		return Value{}, fmt.Errorf("row: %w: unknown column type %v", errs.ErrCorruption, col.Type)
	}
}

// TombstoneRow returns an all-zero row_width-byte buffer, which decodes as
// a tombstoned (not live) slot.
func TombstoneRow(s schema.Schema) []byte {
	return make([]byte, s.RowWidth())
}

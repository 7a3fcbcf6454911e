package diff

import (
	"encoding/binary"
	"fmt"

	"branchdb/errs"
	"branchdb/schema"
)

const tableNameWidth = 64

func encodeTableName(name string) ([]byte, error) {
	if len(name) < 1 || len(name) > tableNameWidth {
		return nil, fmt.Errorf("diff: %w: table name %q length out of [1,%d]", errs.ErrSchemaInvalid, name, tableNameWidth)
	}
	buf := make([]byte, tableNameWidth)
	copy(buf, name)
	return buf, nil
}

func decodeTableName(buf []byte) string {
	n := len(buf)
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return string(buf[:n])
}

// Encode serializes a Diff into the byte stream spec §4.5 describes: per
// block, a tag byte, a 64-byte table name, then a kind-specific body.
// INSERT/UPDATE bodies carry row_size (taken from the first edit's
// already-encoded RowBytes — every edit in a block shares one table's row
// width) so Decode can slice fixed-width row entries without needing the
// table's schema at decode time.
func Encode(d Diff) ([]byte, error) {
	var out []byte
	for _, b := range d {
		nameBytes, err := encodeTableName(b.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, byte(b.Kind))
		out = append(out, nameBytes...)

		switch b.Kind {
		case OpInsert, OpUpdate:
			rowSize := 0
			if len(b.Edits) > 0 {
				rowSize = len(b.Edits[0].RowBytes)
			}
			var sizeBuf, countBuf [4]byte
			binary.LittleEndian.PutUint32(sizeBuf[:], uint32(rowSize))
			binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.Edits)))
			out = append(out, sizeBuf[:]...)
			out = append(out, countBuf[:]...)
			for _, e := range b.Edits {
				if len(e.RowBytes) != rowSize {
					return nil, fmt.Errorf("diff: %w: table %q mixes row widths %d and %d within one block", errs.ErrDiffCorruption, b.Table, rowSize, len(e.RowBytes))
				}
				var pageBuf, rowBuf [4]byte
				binary.LittleEndian.PutUint32(pageBuf[:], uint32(e.Page))
				binary.LittleEndian.PutUint32(rowBuf[:], uint32(e.Row))
				out = append(out, pageBuf[:]...)
				out = append(out, rowBuf[:]...)
				out = append(out, e.RowBytes...)
			}
		case OpRemove:
			var countBuf [4]byte
			binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.Edits)))
			out = append(out, countBuf[:]...)
			for _, e := range b.Edits {
				var pageBuf, rowBuf [4]byte
				binary.LittleEndian.PutUint32(pageBuf[:], uint32(e.Page))
				binary.LittleEndian.PutUint32(rowBuf[:], uint32(e.Row))
				out = append(out, pageBuf[:]...)
				out = append(out, rowBuf[:]...)
			}
		case OpTableCreate:
			encoded, err := schema.EncodeSchema(b.Schema)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded...)
		case OpTableRemove:
			// nothing further
		default:
			return nil, fmt.Errorf("diff: %w: unknown op kind %d", errs.ErrDiffCorruption, b.Kind)
		}
	}
	return out, nil
}

// Decode parses exactly len(buf) bytes as a Diff, per spec §4.5's
// requirement that the decoder validate the cumulative decoded size
// equals the stored diff_size. INSERT/UPDATE row bytes are returned raw
// (RowEdit.RowBytes); the caller decodes them with row.DecodeRow against
// the named table's current schema.
func Decode(buf []byte) (Diff, error) {
	var d Diff
	off := 0
	for off < len(buf) {
		if off+1+tableNameWidth > len(buf) {
			return nil, fmt.Errorf("diff: %w: truncated block header", errs.ErrDiffCorruption)
		}
		kind := OpKind(buf[off])
		off++
		table := decodeTableName(buf[off : off+tableNameWidth])
		off += tableNameWidth

		b := Block{Kind: kind, Table: table}

		switch kind {
		case OpInsert, OpUpdate:
			if off+8 > len(buf) {
				return nil, fmt.Errorf("diff: %w: truncated insert/update header", errs.ErrDiffCorruption)
			}
			rowSize := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			numRows := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			for i := uint32(0); i < numRows; i++ {
				if off+8+int(rowSize) > len(buf) {
					return nil, fmt.Errorf("diff: %w: truncated row entry", errs.ErrDiffCorruption)
				}
				page := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
				off += 4
				rowNum := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
				off += 4
				rowBytes := append([]byte(nil), buf[off:off+int(rowSize)]...)
				off += int(rowSize)
				b.Edits = append(b.Edits, RowEdit{Page: page, Row: rowNum, RowBytes: rowBytes})
			}
		case OpRemove:
			if off+4 > len(buf) {
				return nil, fmt.Errorf("diff: %w: truncated remove header", errs.ErrDiffCorruption)
			}
			numRows := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			for i := uint32(0); i < numRows; i++ {
				if off+8 > len(buf) {
					return nil, fmt.Errorf("diff: %w: truncated remove entry", errs.ErrDiffCorruption)
				}
				page := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
				off += 4
				rowNum := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
				off += 4
				b.Edits = append(b.Edits, RowEdit{Page: page, Row: rowNum})
			}
		case OpTableCreate:
			if off+1 > len(buf) {
				return nil, fmt.Errorf("diff: %w: truncated table-create header", errs.ErrDiffCorruption)
			}
			numCols := int(buf[off])
			entryLen := 1 + numCols*(2+schema.MaxNameLen)
			if off+entryLen > len(buf) {
				return nil, fmt.Errorf("diff: %w: truncated table-create schema", errs.ErrDiffCorruption)
			}
			s, err := schema.DecodeSchema(buf[off : off+entryLen])
			if err != nil {
				return nil, err
			}
			b.Schema = s
			off += entryLen
		case OpTableRemove:
			// nothing further
		default:
			return nil, fmt.Errorf("diff: %w: unknown op kind %d", errs.ErrDiffCorruption, kind)
		}

		d = append(d, b)
	}
	if off != len(buf) {
		return nil, fmt.Errorf("diff: %w: %d trailing bytes", errs.ErrDiffCorruption, len(buf)-off)
	}
	return d, nil
}

// Package diff implements the commit diff model: ordered blocks of
// row-level INSERT/UPDATE/REMOVE operations (spec §3/§4.5), supplemented
// with TableCreate/TableRemove blocks carried over from
// original_source/version_control/diff.rs for CREATE TABLE/DROP TABLE
// tracked inside a commit (spec.md's Non-goals exclude schema evolution
// via ALTER, not table creation/removal).
package diff

import (
	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
)

// OpKind is the one-byte operation tag spec §4.5 prefixes every diff
// block with.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpUpdate
	OpRemove
	OpTableCreate
	OpTableRemove
)

// RowEdit is one (page, row, optional raw row bytes) entry within an
// INSERT/UPDATE/REMOVE block. RowBytes is the already-encoded
// row.EncodeRow output (status byte + cells); interpreting it requires
// the named table's current schema, which this package intentionally
// does not embed per row (spec §4.5 names only table_name/row_size, not a
// per-row schema).
type RowEdit struct {
	Page     int32
	Row      int32
	RowBytes []byte // nil for REMOVE
}

// NewRowEdit encodes values against s and packages the result as a
// RowEdit ready to add to an Insert/Update Block.
func NewRowEdit(s schema.Schema, page, rowNum int32, values []row.Value) (RowEdit, error) {
	buf, err := row.EncodeRow(s, values)
	if err != nil {
		return RowEdit{}, err
	}
	return RowEdit{Page: page, Row: rowNum, RowBytes: buf}, nil
}

// Block is one tagged operation within a Diff.
type Block struct {
	Kind   OpKind
	Table  string
	Schema schema.Schema // only meaningful (and only serialized) for OpTableCreate
	Edits  []RowEdit     // INSERT/UPDATE/REMOVE
}

// Diff is the ordered sequence of blocks attached to one commit.
type Diff []Block

// RowKeys returns every (table, page, row) key this diff touches, in
// block/edit order — used by squash and three-way merge comparison.
func (d Diff) RowKeys() []errs.RowKey {
	var keys []errs.RowKey
	for _, b := range d {
		if b.Kind == OpTableCreate || b.Kind == OpTableRemove {
			continue
		}
		for _, e := range b.Edits {
			keys = append(keys, errs.RowKey{Table: b.Table, Page: e.Page, Row: e.Row})
		}
	}
	return keys
}

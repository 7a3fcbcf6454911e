// Package table implements the table engine (C4): table files made of a
// header page (schema + logical page count) and doubling-growth data
// pages of fixed-width row slots with a tombstone byte, per spec §4.4.
package table

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"branchdb/errs"
	"branchdb/pageio"
	"branchdb/schema"
)

// PageSize is the fixed page size of table files (spec §3).
const PageSize = 1024

// Location identifies one row's storage coordinates.
type Location struct {
	Page uint32
	Slot uint32
}

// Table is a single open table file.
type Table struct {
	mu           sync.RWMutex
	pager        *pageio.Pager
	path         string
	schema       schema.Schema
	rowWidth     int
	slotsPerPage int
	numPages     uint32 // logical page count, including the header page
}

func tablePath(dir, name string) string {
	return filepath.Join(dir, name)
}

// headerPageCapacity is the space left in the header page for the
// encoded schema once the leading num_pages field is accounted for.
const headerPageCapacity = PageSize - 4

// validateTableSchema enforces the two constraints a generic
// schema.Validate can't know about: a table page is exactly PageSize
// bytes, so a row must fit in one (or slotsPerPage divides to zero and
// every insert panics on a slice out of bounds), and the encoded schema
// must fit in the header page it's written to, or it gets silently
// truncated and the table becomes unreadable on reopen.
func validateTableSchema(s schema.Schema) error {
	if w := s.RowWidth(); w > PageSize {
		return fmt.Errorf("table: %w: row width %d exceeds page size %d", errs.ErrSchemaInvalid, w, PageSize)
	}
	encoded, err := schema.EncodeSchema(s)
	if err != nil {
		return err
	}
	if len(encoded) > headerPageCapacity {
		return fmt.Errorf("table: %w: encoded schema is %d bytes, header page holds at most %d", errs.ErrSchemaInvalid, len(encoded), headerPageCapacity)
	}
	return nil
}

// Create creates a new table file with the given schema: a header page
// (num_pages=1) followed by one empty data page appended via doubling
// growth, per spec §4.4. Fails with errs.ErrAlreadyExists if the file
// already exists.
func Create(dir, name string, s schema.Schema) (*Table, error) {
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	if err := validateTableSchema(s); err != nil {
		return nil, err
	}
	path := tablePath(dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("table: create %s: %w", name, errs.ErrAlreadyExists)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("table: create %s: %w", name, err)
	}

	pager, err := pageio.Open(path, PageSize)
	if err != nil {
		return nil, err
	}

	t := &Table{
		pager:        pager,
		path:         path,
		schema:       s,
		rowWidth:     s.RowWidth(),
		slotsPerPage: PageSize / s.RowWidth(),
		numPages:     1,
	}

	// Page 0: header page.
	if _, err := pager.AppendPage(0); err != nil {
		pager.Close()
		return nil, err
	}
	if err := t.writeHeader(); err != nil {
		pager.Close()
		return nil, err
	}

	// Page 1: the first (empty) data page, added by doubling growth.
	if _, err := t.appendDataPage(); err != nil {
		pager.Close()
		return nil, err
	}

	return t, nil
}

// Open opens an existing table file and decodes its header page.
func Open(dir, name string) (*Table, error) {
	path := tablePath(dir, name)
	pager, err := pageio.Open(path, PageSize)
	if err != nil {
		return nil, err
	}

	header, err := pager.ReadPage(0)
	if err != nil {
		pager.Close()
		return nil, err
	}
	numPages := binary.LittleEndian.Uint32(header[0:4])

	stat, err := os.Stat(path)
	if err != nil {
		pager.Close()
		return nil, fmt.Errorf("table: open %s: %w", name, err)
	}
	if int64(numPages)*PageSize > stat.Size() {
		pager.Close()
		return nil, fmt.Errorf("table: open %s: %w: header claims %d pages but file holds fewer", name, errs.ErrCorruption, numPages)
	}

	s, err := schema.DecodeSchema(header[4:])
	if err != nil {
		pager.Close()
		return nil, err
	}
	if w := s.RowWidth(); w > PageSize {
		pager.Close()
		return nil, fmt.Errorf("table: open %s: %w: row width %d exceeds page size %d", name, errs.ErrCorruption, w, PageSize)
	}

	return &Table{
		pager:        pager,
		path:         path,
		schema:       s,
		rowWidth:     s.RowWidth(),
		slotsPerPage: PageSize / s.RowWidth(),
		numPages:     numPages,
	}, nil
}

// Schema returns the table's decoded schema.
func (t *Table) Schema() schema.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema
}

// Close releases the underlying pager.
func (t *Table) Close() error {
	return t.pager.Close()
}

func (t *Table) writeHeader() error {
	encoded, err := schema.EncodeSchema(t.schema)
	if err != nil {
		return err
	}
	page := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(page[0:4], t.numPages)
	copy(page[4:], encoded)
	return t.pager.WritePage(0, page)
}

// appendDataPage grows the file by one logical data page (doubling the
// physical file as needed) and bumps the header's num_pages.
func (t *Table) appendDataPage() (uint32, error) {
	idx, err := t.pager.AppendPage(int64(t.numPages))
	if err != nil {
		return 0, err
	}
	t.numPages++
	if err := t.writeHeader(); err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

func (t *Table) readSlot(page uint32, slot uint32) ([]byte, error) {
	data, err := t.pager.ReadPage(int64(page))
	if err != nil {
		return nil, err
	}
	off := int(slot) * t.rowWidth
	if off+t.rowWidth > len(data) {
		return nil, fmt.Errorf("table: %w: slot %d out of range on page %d", errs.ErrOutOfRange, slot, page)
	}
	return data[off : off+t.rowWidth], nil
}

func (t *Table) writeSlot(page uint32, slot uint32, rowBytes []byte) error {
	data, err := t.pager.ReadPage(int64(page))
	if err != nil {
		return err
	}
	off := int(slot) * t.rowWidth
	copy(data[off:off+t.rowWidth], rowBytes)
	return t.pager.WritePage(int64(page), data)
}

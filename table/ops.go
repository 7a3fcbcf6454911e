package table

import (
	"fmt"

	"branchdb/errs"
	"branchdb/row"
)

// Insert writes values into the first tombstoned slot found by a
// first-fit scan from page 1 forward, or appends a new data page if none
// is free, per spec §4.4.
func (t *Table) Insert(values []row.Value) (Location, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	encoded, err := row.EncodeRow(t.schema, values)
	if err != nil {
		return Location{}, err
	}

	for page := uint32(1); page < t.numPages; page++ {
		data, err := t.pager.ReadPage(int64(page))
		if err != nil {
			return Location{}, err
		}
		for slot := uint32(0); slot < uint32(t.slotsPerPage); slot++ {
			off := int(slot) * t.rowWidth
			if data[off] == 0 {
				copy(data[off:off+t.rowWidth], encoded)
				if err := t.pager.WritePage(int64(page), data); err != nil {
					return Location{}, err
				}
				return Location{Page: page, Slot: slot}, nil
			}
		}
	}

	newPage, err := t.appendDataPage()
	if err != nil {
		return Location{}, err
	}
	if err := t.writeSlot(newPage, 0, encoded); err != nil {
		return Location{}, err
	}
	return Location{Page: newPage, Slot: 0}, nil
}

// Update overwrites a live slot's row in place. Returns errs.ErrNotFound
// if the slot is tombstoned.
func (t *Table) Update(loc Location, values []row.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.readSlot(loc.Page, loc.Slot)
	if err != nil {
		return err
	}
	if existing[0] == 0 {
		return fmt.Errorf("table: update %v: %w", loc, errs.ErrNotFound)
	}
	encoded, err := row.EncodeRow(t.schema, values)
	if err != nil {
		return err
	}
	return t.writeSlot(loc.Page, loc.Slot, encoded)
}

// Delete tombstones a live slot. The payload is left in place; only the
// status byte is zeroed. Returns errs.ErrNotFound if already tombstoned.
func (t *Table) Delete(loc Location) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.readSlot(loc.Page, loc.Slot)
	if err != nil {
		return err
	}
	if existing[0] == 0 {
		return fmt.Errorf("table: delete %v: %w", loc, errs.ErrNotFound)
	}
	dead := append([]byte(nil), existing...)
	dead[0] = 0
	return t.writeSlot(loc.Page, loc.Slot, dead)
}

// Get reads one slot directly, returning errs.ErrNotFound if tombstoned.
func (t *Table) Get(loc Location) ([]row.Value, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	buf, err := t.readSlot(loc.Page, loc.Slot)
	if err != nil {
		return nil, err
	}
	live, values, err := row.DecodeRow(t.schema, buf)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, fmt.Errorf("table: get %v: %w", loc, errs.ErrNotFound)
	}
	return values, nil
}

// Row pairs a decoded row with its storage location, as yielded by Scan.
type Row struct {
	Loc    Location
	Values []row.Value
}

// Scanner is a restartable, finite iterator over a table's live rows in
// ascending (page, slot) order, skipping tombstoned slots, per spec
// §4.4. A decode failure on a live slot terminates the scan with
// errs.ErrCorruption (scans never silently skip corrupt rows, per spec
// §7).
type Scanner struct {
	t    *Table
	page uint32
	slot uint32
	done bool
	buf  []byte // cached contents of page `page`; nil when not yet loaded
}

// Scan returns a new Scanner positioned before the first data page.
func (t *Table) Scan() *Scanner {
	return &Scanner{t: t, page: 1, slot: 0}
}

// Next advances the scanner and returns the next live row, or (Row{},
// false, nil) when the scan is exhausted.
func (s *Scanner) Next() (Row, bool, error) {
	if s.done {
		return Row{}, false, nil
	}
	t := s.t
	t.mu.RLock()
	defer t.mu.RUnlock()

	for s.page < t.numPages {
		if s.buf == nil {
			buf, err := t.pager.ReadPage(int64(s.page))
			if err != nil {
				s.done = true
				return Row{}, false, err
			}
			s.buf = buf
		}
		for s.slot < uint32(t.slotsPerPage) {
			off := int(s.slot) * t.rowWidth
			loc := Location{Page: s.page, Slot: s.slot}
			s.slot++
			live, values, err := row.DecodeRow(t.schema, s.buf[off:off+t.rowWidth])
			if err != nil {
				s.done = true
				return Row{}, false, fmt.Errorf("table: scan %v: %w", loc, err)
			}
			if live {
				return Row{Loc: loc, Values: values}, true, nil
			}
		}
		s.page++
		s.slot = 0
		s.buf = nil
	}
	s.done = true
	return Row{}, false, nil
}

package branch

import (
	"fmt"
	"sync"

	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
	"branchdb/table"
)

func headSchema() schema.Schema {
	return schema.Schema{
		{Name: "branch_name", Type: schema.String, StringWidth: branchNameWidth, Nullable: false},
		{Name: "page_num", Type: schema.Int32, Nullable: false},
		{Name: "row_num", Type: schema.Int32, Nullable: false},
	}
}

// HeadTable is the open branch_heads.gql file: the name -> current node
// mapping every branch operation reads or updates.
type HeadTable struct {
	mu sync.RWMutex
	t  *table.Table
}

// CreateHeadTable initializes a brand new branch_heads.gql in dir.
func CreateHeadTable(dir string) (*HeadTable, error) {
	t, err := table.Create(dir, branchHeadsFileName, headSchema())
	if err != nil {
		return nil, err
	}
	return &HeadTable{t: t}, nil
}

// OpenHeadTable opens an existing branch_heads.gql.
func OpenHeadTable(dir string) (*HeadTable, error) {
	t, err := table.Open(dir, branchHeadsFileName)
	if err != nil {
		return nil, err
	}
	return &HeadTable{t: t}, nil
}

func (h *HeadTable) Close() error { return h.t.Close() }

type headEntry struct {
	loc  table.Location
	name string
	ptr  Ptr
}

// findLocked scans branch_heads.gql for name, matching the linear scan
// branch_heads.rs::get_branch_head performs (no secondary index).
func (h *HeadTable) findLocked(name string) (headEntry, bool, error) {
	sc := h.t.Scan()
	for {
		r, ok, err := sc.Next()
		if err != nil {
			return headEntry{}, false, err
		}
		if !ok {
			return headEntry{}, false, nil
		}
		if r.Values[0].Str == name {
			return headEntry{
				loc:  r.Loc,
				name: name,
				ptr:  Ptr{Page: int32(r.Values[1].Int), Row: int32(r.Values[2].Int)},
			}, true, nil
		}
	}
}

// GetHead returns the current node pointer for name.
func (h *HeadTable) GetHead(name string) (Ptr, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, found, err := h.findLocked(name)
	if err != nil {
		return Ptr{}, false, err
	}
	return e.ptr, found, nil
}

// CreateBranch registers a new branch name pointing at ptr. Returns
// errs.ErrAlreadyExists if the name is taken, and a wrapped
// errs.ErrOutOfRange once MaxBranches live branches already exist (spec
// §4.7).
func (h *HeadTable) CreateBranch(name string, ptr Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, found, err := h.findLocked(name); err != nil {
		return err
	} else if found {
		return fmt.Errorf("branch: create %q: %w", name, errs.ErrAlreadyExists)
	}
	names, err := h.listLocked()
	if err != nil {
		return err
	}
	if count := len(names); count >= MaxBranches {
		return fmt.Errorf("branch: create %q: %w: at most %d branches allowed", name, errs.ErrOutOfRange, MaxBranches)
	}

	_, err = h.t.Insert([]row.Value{row.Str(name), row.I32(ptr.Page), row.I32(ptr.Row)})
	return err
}

// SetHead repoints an existing branch's head. Returns errs.ErrNotFound if
// name is unknown.
func (h *HeadTable) SetHead(name string, ptr Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, found, err := h.findLocked(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("branch: set head %q: %w", name, errs.ErrNotFound)
	}
	return h.t.Update(e.loc, []row.Value{row.Str(name), row.I32(ptr.Page), row.I32(ptr.Row)})
}

// DeleteBranch removes a branch head. Returns errs.ErrNotFound if name is
// unknown.
func (h *HeadTable) DeleteBranch(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, found, err := h.findLocked(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("branch: delete %q: %w", name, errs.ErrNotFound)
	}
	return h.t.Delete(e.loc)
}

func (h *HeadTable) listLocked() ([]string, error) {
	var names []string
	sc := h.t.Scan()
	for {
		r, ok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return names, nil
		}
		names = append(names, r.Values[0].Str)
	}
}

// ListBranches returns every live branch name, in on-disk scan order.
func (h *HeadTable) ListBranches() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listLocked()
}

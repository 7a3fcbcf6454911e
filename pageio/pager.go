// Package pageio implements the fixed-size paged file abstraction shared by
// table files (1024-byte pages) and version-control files (4096-byte
// pages): positioned reads/writes of whole pages, plus doubling-growth
// append. It owns exactly one *os.File per instance, the same shape as the
// teacher's OnDiskPager/HeapFilePager.
package pageio

import (
	"fmt"
	"os"
	"sync"

	"branchdb/errs"
)

// Pager maps a single file into fixed-size pages and tracks the file's
// physical capacity (the number of pages currently backed by storage,
// which may run ahead of the logical page count that callers track
// themselves in a header page or an in-memory counter).
type Pager struct {
	mu        sync.RWMutex
	file      *os.File
	path      string
	pageSize  int64
	allocated int64 // physical capacity, in pages
}

// Open opens or creates path and computes its physical page capacity from
// the current file size. It never fails on an empty/new file.
func Open(path string, pageSize int) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pageio: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pageio: stat %s: %w", path, err)
	}
	return &Pager{
		file:      f,
		path:      path,
		pageSize:  int64(pageSize),
		allocated: stat.Size() / int64(pageSize),
	}, nil
}

// PageSize returns the fixed page size this pager was opened with.
func (p *Pager) PageSize() int { return int(p.pageSize) }

// Allocated returns the physical page capacity of the underlying file.
func (p *Pager) Allocated() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allocated
}

// ReadPage performs a positioned read of one full page.
func (p *Pager) ReadPage(index int64) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readPageLocked(index)
}

func (p *Pager) readPageLocked(index int64) ([]byte, error) {
	if index < 0 || index >= p.allocated {
		return nil, fmt.Errorf("pageio: read page %d: %w", index, errs.ErrOutOfRange)
	}
	buf := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(buf, index*p.pageSize); err != nil {
		return nil, fmt.Errorf("pageio: read page %d: %w", index, err)
	}
	return buf, nil
}

// WritePage performs a positioned write of one full page. data must be
// exactly PageSize() bytes.
func (p *Pager) WritePage(index int64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writePageLocked(index, data)
}

func (p *Pager) writePageLocked(index int64, data []byte) error {
	if int64(len(data)) != p.pageSize {
		return fmt.Errorf("pageio: write page %d: data length %d != page size %d", index, len(data), p.pageSize)
	}
	if index < 0 || index >= p.allocated {
		return fmt.Errorf("pageio: write page %d: %w", index, errs.ErrOutOfRange)
	}
	if _, err := p.file.WriteAt(data, index*p.pageSize); err != nil {
		return fmt.Errorf("pageio: write page %d: %w", index, err)
	}
	return nil
}

// grow implements the doubling-growth policy of spec §4.1: extend the file
// to the smallest power-of-two multiple of the starting capacity (minimum
// 1) that is >= need, zero-filling the new region.
func (p *Pager) grow(need int64) error {
	if need <= p.allocated {
		return nil
	}
	newAlloc := p.allocated
	if newAlloc == 0 {
		newAlloc = 1
	}
	for newAlloc < need {
		newAlloc *= 2
	}
	if err := p.file.Truncate(newAlloc * p.pageSize); err != nil {
		return fmt.Errorf("pageio: grow %s to %d pages: %w", p.path, newAlloc, err)
	}
	p.allocated = newAlloc
	return nil
}

// AppendPage implements append_page(): given the caller's current logical
// page count (logicalUsed), it grows the file via doubling if necessary
// and returns the zero-based index of the newly usable page, which it
// zero-initializes on disk. The caller is responsible for bumping its own
// logical counter (a table's header num_pages, or a VC file's in-memory
// counter) after this call succeeds.
func (p *Pager) AppendPage(logicalUsed int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	newIndex := logicalUsed
	if err := p.grow(newIndex + 1); err != nil {
		return 0, err
	}
	zero := make([]byte, p.pageSize)
	if _, err := p.file.WriteAt(zero, newIndex*p.pageSize); err != nil {
		return 0, fmt.Errorf("pageio: zero new page %d: %w", newIndex, err)
	}
	return newIndex, nil
}

// Sync flushes pending writes to stable storage.
func (p *Pager) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pageio: sync %s: %w", p.path, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("pageio: close %s: %w", p.path, err)
	}
	return nil
}

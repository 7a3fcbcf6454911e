// Package commitstore implements the commit store (C5): an append-only
// commit log backed by two files, grounded on
// original_source/version_control/commitfile.rs and commit.rs —
// commitheaders.gql, a small table.Table mapping commit hash to the
// (page, offset) where its full record lives, and deltas.gql, a flat
// append-only page stream holding the commit records themselves.
package commitstore

import (
	"encoding/binary"
	"fmt"

	"branchdb/errs"
	"branchdb/pageio"
)

// DeltaPageSize is the fixed page size of deltas.gql (spec §3).
const DeltaPageSize = 4096

const deltaHeaderPage = 0

// deltaLog is a flat, page-backed append-only byte log. Records are free
// to span page boundaries; unlike table.Table's fixed-width row slots,
// the log has no notion of a "row" — only bytes and a tail cursor. This
// mirrors commitfile.rs's sread_type/swrite_type family, which advances
// to the next page mid-field rather than ever splitting a record across
// a page in a way the reader can't reassemble.
//
// The header page additionally persists the tail position (tailPage,
// tailOffset), a durability addition beyond the original's in-memory-only
// cursor: without it a restart would have no way to resume appending
// without rescanning the whole file.
type deltaLog struct {
	pager      *pageio.Pager
	path       string
	numPages   uint32 // logical page count, including the header page
	tailPage   uint32
	tailOffset uint32
}

func openDeltaLog(path string) (*deltaLog, bool, error) {
	pager, err := pageio.Open(path, DeltaPageSize)
	if err != nil {
		return nil, false, err
	}
	if pager.Allocated() == 0 {
		return &deltaLog{pager: pager, path: path}, true, nil
	}
	header, err := pager.ReadPage(deltaHeaderPage)
	if err != nil {
		pager.Close()
		return nil, false, err
	}
	dl := &deltaLog{
		pager:      pager,
		path:       path,
		numPages:   binary.LittleEndian.Uint32(header[0:4]),
		tailPage:   binary.LittleEndian.Uint32(header[4:8]),
		tailOffset: binary.LittleEndian.Uint32(header[8:12]),
	}
	if int64(dl.numPages) > pager.Allocated() {
		pager.Close()
		return nil, false, fmt.Errorf("commitstore: open %s: %w: header claims %d pages but file holds fewer", path, errs.ErrCorruption, dl.numPages)
	}
	return dl, false, nil
}

// initEmpty allocates the header page and the first data page of a brand
// new deltas.gql.
func (dl *deltaLog) initEmpty() error {
	if _, err := dl.pager.AppendPage(0); err != nil {
		return err
	}
	dl.numPages = 1
	if _, err := dl.appendPage(); err != nil {
		return err
	}
	dl.tailPage = 1
	dl.tailOffset = 0
	return dl.writeHeader()
}

func (dl *deltaLog) writeHeader() error {
	page := make([]byte, DeltaPageSize)
	binary.LittleEndian.PutUint32(page[0:4], dl.numPages)
	binary.LittleEndian.PutUint32(page[4:8], dl.tailPage)
	binary.LittleEndian.PutUint32(page[8:12], dl.tailOffset)
	return dl.pager.WritePage(deltaHeaderPage, page)
}

func (dl *deltaLog) appendPage() (uint32, error) {
	idx, err := dl.pager.AppendPage(int64(dl.numPages))
	if err != nil {
		return 0, err
	}
	dl.numPages++
	return uint32(idx), nil
}

// append writes data starting at the current tail position, allocating
// new pages as needed, and returns the (page, offset) where data began —
// the location a commitheaders.gql row should record.
func (dl *deltaLog) append(data []byte) (startPage, startOffset uint32, err error) {
	startPage, startOffset = dl.tailPage, dl.tailOffset

	page, err := dl.pager.ReadPage(int64(dl.tailPage))
	if err != nil {
		return 0, 0, err
	}
	written := 0
	for written < len(data) {
		space := DeltaPageSize - int(dl.tailOffset)
		n := len(data) - written
		if n > space {
			n = space
		}
		copy(page[dl.tailOffset:], data[written:written+n])
		written += n
		dl.tailOffset += uint32(n)

		if err := dl.pager.WritePage(int64(dl.tailPage), page); err != nil {
			return 0, 0, err
		}
		if dl.tailOffset == DeltaPageSize {
			newIdx, err := dl.appendPage()
			if err != nil {
				return 0, 0, err
			}
			dl.tailPage = newIdx
			dl.tailOffset = 0
			if written < len(data) {
				page, err = dl.pager.ReadPage(int64(dl.tailPage))
				if err != nil {
					return 0, 0, err
				}
			}
		}
	}
	if err := dl.writeHeader(); err != nil {
		return 0, 0, err
	}
	return startPage, startOffset, nil
}

// read returns exactly n bytes starting at (page, offset), spanning
// pages as needed.
func (dl *deltaLog) read(page, offset uint32, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		buf, err := dl.pager.ReadPage(int64(page))
		if err != nil {
			return nil, fmt.Errorf("commitstore: read delta record at page %d offset %d: %w", page, offset, err)
		}
		if int(offset) >= DeltaPageSize {
			return nil, fmt.Errorf("commitstore: %w: offset %d out of page bounds", errs.ErrCorruption, offset)
		}
		take := n - len(out)
		avail := DeltaPageSize - int(offset)
		if take > avail {
			take = avail
		}
		out = append(out, buf[offset:int(offset)+take]...)
		offset += uint32(take)
		if offset == DeltaPageSize {
			page++
			offset = 0
		}
	}
	return out, nil
}

func (dl *deltaLog) close() error {
	return dl.pager.Close()
}

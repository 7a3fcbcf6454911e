package commitstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
	"branchdb/table"
	"branchdb/vc/diff"
)

const (
	headersFileName = "commitheaders.gql"
	deltasFileName  = "deltas.gql"

	hashWidth      = 32
	commandWidth   = 512
	messageWidth   = 64
	timestampWidth = 32
	recordPrefix   = hashWidth + commandWidth + messageWidth + timestampWidth + 4 // + diff_size
)

func headerSchema() schema.Schema {
	return schema.Schema{
		{Name: "commit_hash", Type: schema.String, StringWidth: hashWidth, Nullable: false},
		{Name: "page_num", Type: schema.Int32, Nullable: false},
		{Name: "row_num", Type: schema.Int32, Nullable: false},
	}
}

// Record is one fully decoded commit: its hash plus everything commit.rs
// calls a Commit (timestamp, message, command, diff).
type Record struct {
	Hash      string
	Timestamp string
	Message   string
	Command   string
	Diff      diff.Diff
}

// Store is the commit store: commitheaders.gql (a table.Table mapping
// hash -> delta location) plus deltas.gql (the append-only record log).
type Store struct {
	mu      sync.RWMutex
	headers *table.Table
	deltas  *deltaLog
}

// Create initializes a brand new commit store in dir.
func Create(dir string) (*Store, error) {
	headers, err := table.Create(dir, headersFileName, headerSchema())
	if err != nil {
		return nil, err
	}
	dl, _, err := openDeltaLog(filepath.Join(dir, deltasFileName))
	if err != nil {
		headers.Close()
		return nil, err
	}
	if err := dl.initEmpty(); err != nil {
		headers.Close()
		dl.close()
		return nil, err
	}
	return &Store{headers: headers, deltas: dl}, nil
}

// Open opens an existing commit store in dir.
func Open(dir string) (*Store, error) {
	headers, err := table.Open(dir, headersFileName)
	if err != nil {
		return nil, err
	}
	dl, isNew, err := openDeltaLog(filepath.Join(dir, deltasFileName))
	if err != nil {
		headers.Close()
		return nil, err
	}
	if isNew {
		headers.Close()
		dl.close()
		return nil, fmt.Errorf("commitstore: open %s: %w: deltas.gql missing or empty", dir, errs.ErrCorruption)
	}
	return &Store{headers: headers, deltas: dl}, nil
}

// Close releases both underlying files.
func (s *Store) Close() error {
	err1 := s.headers.Close()
	err2 := s.deltas.close()
	if err1 != nil {
		return err1
	}
	return err2
}

func encodeFixedString(s string, width int) ([]byte, error) {
	if len(s) > width {
		return nil, fmt.Errorf("commitstore: %w: value %q exceeds width %d", errs.ErrStringInvalid, s, width)
	}
	buf := make([]byte, width)
	copy(buf, s)
	return buf, nil
}

func decodeFixedString(buf []byte) string {
	n := len(buf)
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return string(buf[:n])
}

// Append encodes rec, writes it to deltas.gql, and records its location
// in commitheaders.gql under rec.Hash. Returns errs.ErrAlreadyExists if
// the hash is already present (commit hashes are append-only and unique,
// per spec invariant 6).
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, found, err := s.lookupLocked(rec.Hash); err != nil {
		return err
	} else if found {
		return fmt.Errorf("commitstore: append %s: %w", rec.Hash, errs.ErrAlreadyExists)
	}

	hashBytes, err := encodeFixedString(rec.Hash, hashWidth)
	if err != nil {
		return err
	}
	commandBytes, err := encodeFixedString(rec.Command, commandWidth)
	if err != nil {
		return err
	}
	messageBytes, err := encodeFixedString(rec.Message, messageWidth)
	if err != nil {
		return err
	}
	tsBytes, err := encodeFixedString(rec.Timestamp, timestampWidth)
	if err != nil {
		return err
	}
	diffBytes, err := diff.Encode(rec.Diff)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, recordPrefix+len(diffBytes))
	buf = append(buf, hashBytes...)
	buf = append(buf, commandBytes...)
	buf = append(buf, messageBytes...)
	buf = append(buf, tsBytes...)
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(diffBytes)))
	buf = append(buf, sizeBuf[:]...)
	buf = append(buf, diffBytes...)

	page, offset, err := s.deltas.append(buf)
	if err != nil {
		return err
	}

	_, err = s.headers.Insert([]row.Value{
		row.Str(rec.Hash),
		row.I32(int32(page)),
		row.I32(int32(offset)),
	})
	return err
}

func (s *Store) lookupLocked(hash string) (page, offset uint32, found bool, err error) {
	sc := s.headers.Scan()
	for {
		r, ok, err := sc.Next()
		if err != nil {
			return 0, 0, false, err
		}
		if !ok {
			return 0, 0, false, nil
		}
		if r.Values[0] == row.Str(hash) {
			return uint32(r.Values[1].Int), uint32(r.Values[2].Int), true, nil
		}
	}
}

// Lookup reports the delta-log location of hash, matching the linear
// scan commit.rs::find_header performs (commitheaders.gql carries no
// secondary index).
func (s *Store) Lookup(hash string) (page, offset uint32, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(hash)
}

// ReadAt decodes the commit record stored at (page, offset).
func (s *Store) ReadAt(page, offset uint32) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix, err := s.deltas.read(page, offset, recordPrefix)
	if err != nil {
		return Record{}, err
	}
	hash := decodeFixedString(prefix[0:hashWidth])
	command := decodeFixedString(prefix[hashWidth : hashWidth+commandWidth])
	message := decodeFixedString(prefix[hashWidth+commandWidth : hashWidth+commandWidth+messageWidth])
	ts := decodeFixedString(prefix[hashWidth+commandWidth+messageWidth : recordPrefix-4])
	diffSize := binary.LittleEndian.Uint32(prefix[recordPrefix-4 : recordPrefix])

	nextPage, nextOffset := advance(page, offset, recordPrefix)
	diffBytes, err := s.deltas.read(nextPage, nextOffset, int(diffSize))
	if err != nil {
		return Record{}, err
	}
	d, err := diff.Decode(diffBytes)
	if err != nil {
		return Record{}, err
	}

	return Record{Hash: hash, Timestamp: ts, Message: message, Command: command, Diff: d}, nil
}

// advance computes the (page, offset) reached after consuming n bytes
// starting at (page, offset), mirroring deltaLog.append's page-filling
// behavior so reads and writes agree on record boundaries.
func advance(page, offset uint32, n int) (uint32, uint32) {
	total := int(offset) + n
	page += uint32(total / DeltaPageSize)
	offset = uint32(total % DeltaPageSize)
	return page, offset
}

// Fetch looks up hash and decodes its full commit record. Returns
// errs.ErrNotFound if hash is unknown.
func (s *Store) Fetch(hash string) (Record, error) {
	page, offset, found, err := s.Lookup(hash)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, fmt.Errorf("commitstore: fetch %s: %w", hash, errs.ErrNotFound)
	}
	return s.ReadAt(page, offset)
}

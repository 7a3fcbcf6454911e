package pageio

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"branchdb/errs"
)

func TestPagerReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	p, err := Open(path, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	idx, err := p.AppendPage(0)
	if err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected first appended page index 0, got %d", idx)
	}

	data := make([]byte, 1024)
	copy(data, []byte("hello page"))
	if err := p.WritePage(idx, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := p.ReadPage(idx)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPagerOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tbl")
	p, err := Open(path, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.ReadPage(0); !errors.Is(err, errs.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

// TestDoublingGrowth checks the doubling rule: after k page appends to an
// empty file, the physical capacity is 2^ceil(log2 k) pages.
func TestDoublingGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vc")
	p, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	const k = 5
	for i := int64(0); i < k; i++ {
		if _, err := p.AppendPage(i); err != nil {
			t.Fatalf("AppendPage(%d): %v", i, err)
		}
	}
	// k=5 -> ceil(log2 5) = 3 -> 2^3 = 8
	if got, want := p.Allocated(), int64(8); got != want {
		t.Fatalf("allocated = %d, want %d", got, want)
	}
}

package schema

import (
	"errors"
	"testing"

	"branchdb/errs"
)

// TestRoundTrip is spec.md invariant 2: decode_schema(encode_schema(S)) == S.
func TestRoundTrip(t *testing.T) {
	s := Schema{
		{Name: "id", Type: Int32, Nullable: false},
		{Name: "name", Type: String, StringWidth: 8, Nullable: true},
	}
	buf, err := EncodeSchema(s)
	if err != nil {
		t.Fatalf("EncodeSchema: %v", err)
	}
	got, err := DecodeSchema(buf)
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	if len(got) != len(s) {
		t.Fatalf("column count mismatch: got %d want %d", len(got), len(s))
	}
	for i := range s {
		if got[i] != s[i] {
			t.Fatalf("column %d mismatch: got %+v want %+v", i, got[i], s[i])
		}
	}
}

// TestS1RowWidth matches spec.md scenario S1.
func TestS1RowWidth(t *testing.T) {
	s := Schema{
		{Name: "id", Type: Int32, Nullable: false},
		{Name: "name", Type: String, StringWidth: 8, Nullable: true},
	}
	if got, want := s.RowWidth(), 14; got != want {
		t.Fatalf("row width = %d, want %d", got, want)
	}
}

func TestDecodeRejectsBadColumnCount(t *testing.T) {
	buf := []byte{0}
	if _, err := DecodeSchema(buf); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}

func TestEncodeRejectsDuplicateNames(t *testing.T) {
	s := Schema{
		{Name: "id", Type: Int32},
		{Name: "id", Type: Int64},
	}
	if _, err := EncodeSchema(s); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid for duplicate names, got %v", err)
	}
}

func TestDecodeRejectsZeroStringWidth(t *testing.T) {
	buf := make([]byte, 1+2+MaxNameLen)
	buf[0] = 1
	// type code: stringBit set, width 0
	buf[1] = 0x00
	buf[2] = 0x40 // bit14 set -> 0x4000 little endian low byte at [1], high at [2]
	copy(buf[3:], []byte("x"))
	if _, err := DecodeSchema(buf); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid for zero string width, got %v", err)
	}
}

func TestRowWidthOverBudgetRejected(t *testing.T) {
	s := Schema{{Name: "big", Type: String, StringWidth: MaxStringW}}
	if _, err := EncodeSchema(s); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid for oversized row width, got %v", err)
	}
}

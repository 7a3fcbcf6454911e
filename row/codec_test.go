package row

import (
	"errors"
	"testing"

	"branchdb/errs"
	"branchdb/schema"
)

func s1Schema() schema.Schema {
	return schema.Schema{
		{Name: "id", Type: schema.Int32, Nullable: false},
		{Name: "name", Type: schema.String, StringWidth: 8, Nullable: true},
	}
}

// TestRoundTrip is spec.md invariant 1.
func TestRoundTrip(t *testing.T) {
	s := s1Schema()
	cases := [][]Value{
		{I32(1), Str("abc")},
		{I32(2), Null()},
		{I32(3), Str("defghij!")},
	}
	for _, vals := range cases {
		buf, err := EncodeRow(s, vals)
		if err != nil {
			t.Fatalf("EncodeRow(%v): %v", vals, err)
		}
		if len(buf) != s.RowWidth() {
			t.Fatalf("row width mismatch: got %d want %d", len(buf), s.RowWidth())
		}
		live, got, err := DecodeRow(s, buf)
		if err != nil {
			t.Fatalf("DecodeRow: %v", err)
		}
		if !live {
			t.Fatalf("expected live row")
		}
		for i := range vals {
			if got[i] != vals[i] {
				t.Fatalf("cell %d mismatch: got %+v want %+v", i, got[i], vals[i])
			}
		}
	}
}

func TestTombstoneDecodesNotLive(t *testing.T) {
	s := s1Schema()
	buf := TombstoneRow(s)
	live, _, err := DecodeRow(s, buf)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if live {
		t.Fatalf("expected tombstoned row to decode as not live")
	}
}

func TestNullViolation(t *testing.T) {
	s := schema.Schema{{Name: "id", Type: schema.Int32, Nullable: false}}
	if _, err := EncodeRow(s, []Value{Null()}); !errors.Is(err, errs.ErrNullViolation) {
		t.Fatalf("expected ErrNullViolation, got %v", err)
	}
}

func TestStringTooLong(t *testing.T) {
	s := s1Schema()
	if _, err := EncodeRow(s, []Value{I32(1), Str("waytoolongstring")}); !errors.Is(err, errs.ErrStringInvalid) {
		t.Fatalf("expected ErrStringInvalid, got %v", err)
	}
}

func TestStringZeroByteRejected(t *testing.T) {
	s := s1Schema()
	if _, err := EncodeRow(s, []Value{I32(1), Str("a\x00b")}); !errors.Is(err, errs.ErrStringInvalid) {
		t.Fatalf("expected ErrStringInvalid, got %v", err)
	}
}

func TestTypeMismatch(t *testing.T) {
	s := s1Schema()
	if _, err := EncodeRow(s, []Value{Str("not an int"), Str("abc")}); !errors.Is(err, errs.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRangeError(t *testing.T) {
	s := schema.Schema{{Name: "id", Type: schema.Int32}}
	over := Value{Kind: KindInt32, Int: 1 << 40}
	if _, err := EncodeRow(s, []Value{over}); !errors.Is(err, errs.ErrRangeError) {
		t.Fatalf("expected ErrRangeError, got %v", err)
	}
}

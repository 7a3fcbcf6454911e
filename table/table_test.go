package table

import (
	"errors"
	"testing"

	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
)

func s1Schema() schema.Schema {
	return schema.Schema{
		{Name: "id", Type: schema.Int32, Nullable: false},
		{Name: "name", Type: schema.String, StringWidth: 8, Nullable: true},
	}
}

// TestS1InsertScan matches spec.md scenario S1.
func TestS1InsertScan(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, "people", s1Schema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	rows := [][]row.Value{
		{row.I32(1), row.Str("abc")},
		{row.I32(2), row.Null()},
		{row.I32(3), row.Str("defghij!")},
	}
	for _, r := range rows {
		if _, err := tbl.Insert(r); err != nil {
			t.Fatalf("Insert(%v): %v", r, err)
		}
	}

	sc := tbl.Scan()
	for i, want := range rows {
		got, ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			t.Fatalf("scan ended early at row %d", i)
		}
		for j := range want {
			if got.Values[j] != want[j] {
				t.Fatalf("row %d cell %d: got %+v want %+v", i, j, got.Values[j], want[j])
			}
		}
	}
	if _, ok, _ := sc.Next(); ok {
		t.Fatalf("expected scan to be exhausted")
	}
}

// TestS2Growth matches spec.md scenario S2: 200 rows -> num_pages = 4.
func TestS2Growth(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, "people", s1Schema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	for i := 0; i < 200; i++ {
		if _, err := tbl.Insert([]row.Value{row.I32(int32(i)), row.Null()}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if tbl.numPages != 4 {
		t.Fatalf("numPages = %d, want 4", tbl.numPages)
	}
}

// TestS3TombstoneReuse matches spec.md scenario S3 and invariant 3.
func TestS3TombstoneReuse(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, "people", s1Schema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	var locs []Location
	for i := 0; i < 3; i++ {
		loc, err := tbl.Insert([]row.Value{row.I32(int32(i)), row.Null()})
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		locs = append(locs, loc)
	}

	if err := tbl.Delete(locs[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	newLoc, err := tbl.Insert([]row.Value{row.I32(99), row.Null()})
	if err != nil {
		t.Fatalf("Insert after delete: %v", err)
	}
	if newLoc != locs[1] {
		t.Fatalf("expected reuse of %v, got %v", locs[1], newLoc)
	}

	sc := tbl.Scan()
	var seen []Location
	for {
		r, ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen = append(seen, r.Loc)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 live rows, got %d", len(seen))
	}
}

func TestOpenReopenPreservesSchemaAndRows(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Create(dir, "people", s1Schema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	loc, err := tbl.Insert([]row.Value{row.I32(7), row.Str("zed")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, "people")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(loc)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != row.I32(7) || got[1] != row.Str("zed") {
		t.Fatalf("unexpected row after reopen: %+v", got)
	}
}

// TestCreateRejectsRowWiderThanPage guards against a schema whose
// RowWidth() fits schema.MaxRowWidth (4096) but not one table page
// (1024): Create must reject it rather than let slotsPerPage divide to
// zero and a later Insert panic on a short page buffer.
func TestCreateRejectsRowWiderThanPage(t *testing.T) {
	dir := t.TempDir()
	wide := schema.Schema{
		{Name: "id", Type: schema.Int32, Nullable: false},
		{Name: "blob", Type: schema.String, StringWidth: 2000, Nullable: false},
	}
	if _, err := Create(dir, "wide", wide); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("Create: got %v, want errs.ErrSchemaInvalid", err)
	}
}

// TestCreateRejectsSchemaTooWideForHeader guards against a column count
// whose encoded header-page bytes (1 + numCols*62) overflow the header
// page's capacity: Create must reject it rather than let writeHeader's
// copy silently truncate the schema, leaving the table unreadable on
// reopen.
func TestCreateRejectsSchemaTooWideForHeader(t *testing.T) {
	dir := t.TempDir()
	var many schema.Schema
	for i := 0; i < 17; i++ {
		many = append(many, schema.Column{Name: string(rune('a' + i)), Type: schema.Int32, Nullable: false})
	}
	if _, err := Create(dir, "many", many); !errors.Is(err, errs.ErrSchemaInvalid) {
		t.Fatalf("Create: got %v, want errs.ErrSchemaInvalid", err)
	}
}

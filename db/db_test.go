package db

import (
	"errors"
	"path/filepath"
	"testing"

	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
)

func sampleSchema() schema.Schema {
	return schema.Schema{
		{Name: "id", Type: schema.Int32, Nullable: false},
		{Name: "name", Type: schema.String, StringWidth: 16, Nullable: false},
	}
}

func TestOpenCreatesDirAndSeedsVC(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mydb")
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	branches, err := d.VC.ListBranches()
	if err != nil || len(branches) != 1 || branches[0] != "main" {
		t.Fatalf("expected seeded main branch, got %v err %v", branches, err)
	}
}

func TestCreateOpenDropTable(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.CreateTable("users", sampleSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := d.CreateTable("users", sampleSchema()); err == nil {
		t.Fatalf("expected error creating duplicate table")
	}

	tbl, err := d.OpenTable("users")
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	loc, err := tbl.Insert([]row.Value{row.I32(1), row.Str("alice")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := tbl.Get(loc)
	if err != nil || got[1].Str != "alice" {
		t.Fatalf("Get: %v %v", got, err)
	}

	names := d.ListTables()
	if len(names) != 1 || names[0] != "users" {
		t.Fatalf("ListTables: %v", names)
	}

	if err := d.DropTable("users"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := d.OpenTable("users"); err == nil {
		t.Fatalf("expected OpenTable to fail after drop")
	}
}

func TestDescribeTableUsesCache(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.CreateTable("events", sampleSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	s, err := d.DescribeTable("events")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if len(s) != len(sampleSchema()) {
		t.Fatalf("unexpected schema: %+v", s)
	}
}

func TestReopenPicksUpExistingTablesAndVC(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.CreateTable("users", sampleSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := d.VC.Commit("main", "seed", "noop", nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.OpenTable("users"); err != nil {
		t.Fatalf("expected users table to survive reopen: %v", err)
	}
	log, err := reopened.VC.ListLog("main")
	if err != nil || len(log) != 2 {
		t.Fatalf("expected 2 commits to survive reopen, got %v err %v", log, err)
	}
}

func TestOpenTableUnknown(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := d.OpenTable("nope"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

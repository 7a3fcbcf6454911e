// Command branchdb is a minimal REPL exercising the external surface of
// spec §6 end to end: table creation/insert/scan plus commit/log/branch/
// merge/revert/squash. It mirrors the teacher's main.go scanner loop
// (bufio.Scanner over os.Stdin, a "db> " prompt, "exit" to quit) but
// dispatches on whitespace-separated commands instead of SQL — a SQL
// parser is explicitly out of scope for this module.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"branchdb/db"
	"branchdb/row"
	"branchdb/schema"
	"branchdb/table"
	"branchdb/vc/merge"
)

func main() {
	dir := "./branchdb_data"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	database, err := db.Open(dir)
	if err != nil {
		log.Fatalf("open %s: %v", dir, err)
	}
	defer database.Close()

	fmt.Printf("branchdb ready at %s\n", dir)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")
		if !scanner.Scan() { // Ctrl+D pressed
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			break
		}
		if err := dispatch(database, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatch(database *db.Database, line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "create-table":
		return createTable(database, args)
	case "drop-table":
		return expectArgs(args, 1, func() error { return database.DropTable(args[0]) })
	case "tables":
		for _, name := range database.ListTables() {
			fmt.Println(name)
		}
		return nil
	case "insert":
		return insertRow(database, args)
	case "scan":
		return expectArgs(args, 1, func() error { return scanTable(database, args[0]) })
	case "delete":
		return deleteRow(database, args)
	case "commit":
		return commit(database, args)
	case "log":
		return expectArgs(args, 1, func() error { return printLog(database, args[0]) })
	case "branch":
		return expectArgs(args, 2, func() error { return database.VC.CreateBranch(args[0], args[1]) })
	case "branches":
		names, err := database.VC.ListBranches()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "merge":
		return mergeCmd(database, args)
	case "revert":
		return expectArgs(args, 2, func() error {
			hash, err := database.VC.Revert(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		})
	case "squash":
		return expectArgs(args, 3, func() error {
			hash, err := database.VC.Squash(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		})
	default:
		return fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
}

func expectArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("expected at least %d argument(s), got %d", n, len(args))
	}
	return fn()
}

func printHelp() {
	fmt.Println(`commands:
  create-table <name> <col:type[:width]> ...    (type = int32|int64|float32|float64|bool|ts|string)
  drop-table <name>
  tables
  insert <table> <value> ...
  scan <table>
  delete <table> <page> <row>
  commit <branch> <message>
  log <branch>
  branch <name> <base>
  branches
  merge <source> <target> [abort|prefer-source|prefer-target]
  revert <branch> <commit-hash>
  squash <branch> <from-hash> <to-hash>
  exit`)
}

func createTable(database *db.Database, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create-table <name> <col:type[:width]> ...")
	}
	name := args[0]
	var s schema.Schema
	for _, spec := range args[1:] {
		col, err := parseColumn(spec)
		if err != nil {
			return err
		}
		s = append(s, col)
	}
	return database.CreateTable(name, s)
}

func parseColumn(spec string) (schema.Column, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return schema.Column{}, fmt.Errorf("bad column spec %q (want name:type[:width])", spec)
	}
	col := schema.Column{Name: parts[0]}
	switch strings.ToLower(parts[1]) {
	case "int32":
		col.Type = schema.Int32
	case "int64":
		col.Type = schema.Int64
	case "float32":
		col.Type = schema.Float32
	case "float64":
		col.Type = schema.Float64
	case "bool":
		col.Type = schema.Boolean
	case "ts":
		col.Type = schema.Timestamp
	case "string":
		col.Type = schema.String
		if len(parts) < 3 {
			return schema.Column{}, fmt.Errorf("string column %q needs a width", spec)
		}
		width, err := strconv.Atoi(parts[2])
		if err != nil {
			return schema.Column{}, fmt.Errorf("bad width in %q: %w", spec, err)
		}
		col.StringWidth = width
	default:
		return schema.Column{}, fmt.Errorf("unknown column type %q", parts[1])
	}
	return col, nil
}

func insertRow(database *db.Database, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: insert <table> <value> ...")
	}
	t, err := database.OpenTable(args[0])
	if err != nil {
		return err
	}
	values, err := parseValues(t.Schema(), args[1:])
	if err != nil {
		return err
	}
	loc, err := t.Insert(values)
	if err != nil {
		return err
	}
	fmt.Printf("inserted at page=%d row=%d\n", loc.Page, loc.Slot)
	return nil
}

func parseValues(s schema.Schema, raw []string) ([]row.Value, error) {
	if len(raw) != len(s) {
		return nil, fmt.Errorf("expected %d value(s), got %d", len(s), len(raw))
	}
	values := make([]row.Value, len(s))
	for i, col := range s {
		v, err := parseValue(col, raw[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseValue(col schema.Column, raw string) (row.Value, error) {
	if raw == "null" {
		if !col.Nullable {
			return row.Value{}, fmt.Errorf("column %q is not nullable", col.Name)
		}
		return row.Null(), nil
	}
	switch col.Type {
	case schema.Int32:
		n, err := strconv.ParseInt(raw, 10, 32)
		return row.I32(int32(n)), err
	case schema.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		return row.I64(n), err
	case schema.Float32:
		f, err := strconv.ParseFloat(raw, 32)
		return row.F32(float32(f)), err
	case schema.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		return row.F64(f), err
	case schema.Boolean:
		b, err := strconv.ParseBool(raw)
		return row.Bool(b), err
	case schema.Timestamp:
		n, err := strconv.ParseInt(raw, 10, 32)
		return row.Ts(int32(n)), err
	case schema.String:
		return row.Str(raw), nil
	default:
		return row.Value{}, fmt.Errorf("unsupported column type %v", col.Type)
	}
}

func scanTable(database *db.Database, name string) error {
	t, err := database.OpenTable(name)
	if err != nil {
		return err
	}
	sc := t.Scan()
	for {
		r, ok, err := sc.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("(%d,%d) %v\n", r.Loc.Page, r.Loc.Slot, renderValues(r.Values))
	}
}

func renderValues(values []row.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}

func deleteRow(database *db.Database, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: delete <table> <page> <row>")
	}
	t, err := database.OpenTable(args[0])
	if err != nil {
		return err
	}
	page, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return err
	}
	rowNum, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return err
	}
	return t.Delete(table.Location{Page: uint32(page), Slot: uint32(rowNum)})
}

func commit(database *db.Database, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: commit <branch> <message>")
	}
	hash, err := database.VC.Commit(args[0], strings.Join(args[1:], " "), "commit", nil)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func printLog(database *db.Database, branchName string) error {
	records, err := database.VC.ListLog(branchName)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  %s\n", rec.Hash, rec.Timestamp, rec.Message)
	}
	return nil
}

func mergeCmd(database *db.Database, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: merge <source> <target> [abort|prefer-source|prefer-target]")
	}
	policy := merge.PolicyAbort
	if len(args) > 2 {
		switch args[2] {
		case "abort":
			policy = merge.PolicyAbort
		case "prefer-source":
			policy = merge.PolicyPreferSource
		case "prefer-target":
			policy = merge.PolicyPreferTarget
		default:
			return fmt.Errorf("unknown merge policy %q", args[2])
		}
	}
	res, err := database.VC.Merge(args[0], args[1], policy)
	if err != nil {
		return err
	}
	if res.FastForward {
		fmt.Println("fast-forward")
		return nil
	}
	fmt.Println(res.NewCommit)
	return nil
}

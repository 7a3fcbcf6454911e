// Package merge implements the merge engine (C7): common-ancestor
// discovery across branch-entry markers, per-row squash with
// last-writer-wins folding, and fast-forward/three-way merges with a
// selectable conflict policy. Grounded on spec §4.7; the underlying
// ancestor graph walk is original_source/version_control/branches.rs's
// prev-pointer chain via branch.Graph.
package merge

import (
	"sort"

	"branchdb/errs"
	"branchdb/vc/commitstore"
	"branchdb/vc/diff"
)

// Op is one squashed row-level operation: the last write or removal a
// chain of commits applied to a given row key.
type Op struct {
	Kind     diff.OpKind // OpInsert, OpUpdate, or OpRemove
	Table    string
	Page     int32
	Row      int32
	RowBytes []byte // nil for OpRemove
}

// Squash folds an ordered (oldest-to-newest) chain of commits into one
// operation per row key, per spec §4.7 step 2: later operations
// supersede earlier ones for the same key, with write-then-delete
// collapsing to REMOVE, delete-then-write to INSERT, write-then-write to
// UPDATE, and INSERT-then-UPDATE staying INSERT.
func Squash(commits []commitstore.Record) map[errs.RowKey]Op {
	result := make(map[errs.RowKey]Op)
	for _, rec := range commits {
		for _, block := range rec.Diff {
			if block.Kind != diff.OpInsert && block.Kind != diff.OpUpdate && block.Kind != diff.OpRemove {
				continue
			}
			for _, e := range block.Edits {
				key := errs.RowKey{Table: block.Table, Page: e.Page, Row: e.Row}
				prev, existed := result[key]
				next := Op{Kind: block.Kind, Table: block.Table, Page: e.Page, Row: e.Row, RowBytes: e.RowBytes}

				switch {
				case !existed:
					// first touch within this chain: keep as-is.
				case next.Kind == diff.OpRemove:
					next.RowBytes = nil // write-then-delete -> remove
				case prev.Kind == diff.OpRemove:
					next.Kind = diff.OpInsert // delete-then-write -> insert
				case prev.Kind == diff.OpInsert:
					next.Kind = diff.OpInsert // insert-then-update stays insert
				default:
					next.Kind = diff.OpUpdate // write-then-write -> update
				}
				result[key] = next
			}
		}
	}
	return result
}

// ToDiff packages a squash result back into a Diff, grouped into one
// block per (table, op kind) pair, ready to append as a merge commit.
func ToDiff(ops map[errs.RowKey]Op) diff.Diff {
	type groupKey struct {
		table string
		kind  diff.OpKind
	}
	keys := make([]errs.RowKey, 0, len(ops))
	for key := range ops {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Row < b.Row
	})

	groups := make(map[groupKey][]diff.RowEdit)
	var order []groupKey
	for _, key := range keys {
		op := ops[key]
		gk := groupKey{table: op.Table, kind: op.Kind}
		if _, ok := groups[gk]; !ok {
			order = append(order, gk)
		}
		groups[gk] = append(groups[gk], diff.RowEdit{Page: key.Page, Row: key.Row, RowBytes: op.RowBytes})
	}
	var d diff.Diff
	for _, gk := range order {
		d = append(d, diff.Block{Kind: gk.kind, Table: gk.table, Edits: groups[gk]})
	}
	return d
}

package merge

import (
	"errors"
	"testing"

	"branchdb/errs"
	"branchdb/schema"
	"branchdb/vc/branch"
	"branchdb/vc/commitstore"
	"branchdb/vc/diff"
)

func sampleSchema() schema.Schema {
	return schema.Schema{{Name: "id", Type: schema.Int32, Nullable: false}}
}

func rowBytes(b byte) []byte {
	buf := make([]byte, sampleSchema().RowWidth())
	buf[0] = 1
	buf[1] = b
	return buf
}

type harness struct {
	commits *commitstore.Store
	graph   *branch.Graph
	heads   *branch.HeadTable
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	commits, err := commitstore.Create(dir)
	if err != nil {
		t.Fatalf("commitstore.Create: %v", err)
	}
	g, err := branch.CreateGraph(dir)
	if err != nil {
		t.Fatalf("branch.CreateGraph: %v", err)
	}
	h, err := branch.CreateHeadTable(dir)
	if err != nil {
		t.Fatalf("branch.CreateHeadTable: %v", err)
	}
	return &harness{commits: commits, graph: g, heads: h, engine: &Engine{Commits: commits, Graph: g, Heads: h}}
}

func (h *harness) close() {
	h.commits.Close()
	h.graph.Close()
	h.heads.Close()
}

// commit appends a commit record + branch node, returning the new node's
// location; callers advance the branch head themselves.
func (h *harness) commit(t *testing.T, branchName, hash, timestamp string, prev branch.Ptr, d diff.Diff) branch.Ptr {
	t.Helper()
	rec := commitstore.Record{Hash: hash, Timestamp: timestamp, Message: "m", Command: "c", Diff: d}
	if err := h.commits.Append(rec); err != nil {
		t.Fatalf("Append commit %s: %v", hash, err)
	}
	ptr, err := h.graph.Append(branch.Node{BranchName: branchName, CommitHash: hash, Prev: prev})
	if err != nil {
		t.Fatalf("Append node %s: %v", hash, err)
	}
	return ptr
}

// TestFastForwardMerge matches spec.md scenario S4.
func TestFastForwardMerge(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	a := h.commit(t, "main", "a0000000000000000000000000000000", "2026-01-01T00:00:00Z", branch.SentinelPtr, nil)
	if err := h.heads.CreateBranch("main", a); err != nil {
		t.Fatalf("CreateBranch main: %v", err)
	}
	if err := h.heads.CreateBranch("feat", a); err != nil {
		t.Fatalf("CreateBranch feat: %v", err)
	}

	featDiff := diff.Diff{{Kind: diff.OpInsert, Table: "t", Edits: []diff.RowEdit{
		{Page: 1, Row: 1, RowBytes: rowBytes(7)},
	}}}
	featHead := h.commit(t, "feat", "b0000000000000000000000000000000", "2026-01-02T00:00:00Z", a, featDiff)
	if err := h.heads.SetHead("feat", featHead); err != nil {
		t.Fatalf("SetHead feat: %v", err)
	}

	res, err := h.engine.Merge("feat", "main", PolicyAbort)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.FastForward {
		t.Fatalf("expected fast-forward merge, got %+v", res)
	}
	mainHead, _, err := h.heads.GetHead("main")
	if err != nil {
		t.Fatalf("GetHead main: %v", err)
	}
	if mainHead != featHead {
		t.Fatalf("expected main.head == feat.head after fast-forward: got %+v want %+v", mainHead, featHead)
	}
}

// TestThreeWayMergeConflictPolicies matches spec.md scenario S5 under the
// abort, prefer-source and prefer-target policies.
func TestThreeWayMergeConflictPolicies(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy Policy
	}{
		{"abort", PolicyAbort},
		{"preferSource", PolicyPreferSource},
		{"preferTarget", PolicyPreferTarget},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			defer h.close()

			a := h.commit(t, "main", "a1111111111111111111111111111111", "2026-01-01T00:00:00Z", branch.SentinelPtr, nil)
			if err := h.heads.CreateBranch("main", a); err != nil {
				t.Fatalf("CreateBranch main: %v", err)
			}
			if err := h.heads.CreateBranch("feat", a); err != nil {
				t.Fatalf("CreateBranch feat: %v", err)
			}

			featDiff := diff.Diff{{Kind: diff.OpUpdate, Table: "t", Edits: []diff.RowEdit{
				{Page: 1, Row: 1, RowBytes: rowBytes(0xF)},
			}}}
			featHead := h.commit(t, "feat", "b1111111111111111111111111111111", "2026-01-02T00:00:00Z", a, featDiff)
			if err := h.heads.SetHead("feat", featHead); err != nil {
				t.Fatalf("SetHead feat: %v", err)
			}

			mainDiff := diff.Diff{{Kind: diff.OpUpdate, Table: "t", Edits: []diff.RowEdit{
				{Page: 1, Row: 1, RowBytes: rowBytes(0xA)},
			}}}
			mainHead := h.commit(t, "main", "c1111111111111111111111111111111", "2026-01-03T00:00:00Z", a, mainDiff)
			if err := h.heads.SetHead("main", mainHead); err != nil {
				t.Fatalf("SetHead main: %v", err)
			}

			res, err := h.engine.Merge("feat", "main", tc.policy)
			switch tc.policy {
			case PolicyAbort:
				var conflictErr *errs.MergeConflictError
				if !errors.As(err, &conflictErr) {
					t.Fatalf("expected MergeConflictError, got %v", err)
				}
				if len(conflictErr.Keys) != 1 || conflictErr.Keys[0] != (errs.RowKey{Table: "t", Page: 1, Row: 1}) {
					t.Fatalf("unexpected conflict keys: %+v", conflictErr.Keys)
				}
			case PolicyPreferSource:
				if err != nil {
					t.Fatalf("Merge prefer-source: %v", err)
				}
				got, fetchErr := h.commits.Fetch(res.NewCommit)
				if fetchErr != nil {
					t.Fatalf("Fetch merge commit: %v", fetchErr)
				}
				if len(got.Diff) != 1 || len(got.Diff[0].Edits) != 1 {
					t.Fatalf("expected exactly one update in merge diff: %+v", got.Diff)
				}
				if string(got.Diff[0].Edits[0].RowBytes) != string(rowBytes(0xF)) {
					t.Fatalf("expected source's row bytes to win")
				}
			case PolicyPreferTarget:
				if err != nil {
					t.Fatalf("Merge prefer-target: %v", err)
				}
				got, fetchErr := h.commits.Fetch(res.NewCommit)
				if fetchErr != nil {
					t.Fatalf("Fetch merge commit: %v", fetchErr)
				}
				if len(got.Diff) != 0 {
					t.Fatalf("expected no row edits when target wins conflict: %+v", got.Diff)
				}
			}
		})
	}
}

func TestSquashCollapsesWriteThenDelete(t *testing.T) {
	insertRec := commitstore.Record{Diff: diff.Diff{{Kind: diff.OpInsert, Table: "t", Edits: []diff.RowEdit{
		{Page: 1, Row: 1, RowBytes: rowBytes(1)},
	}}}}
	removeRec := commitstore.Record{Diff: diff.Diff{{Kind: diff.OpRemove, Table: "t", Edits: []diff.RowEdit{
		{Page: 1, Row: 1},
	}}}}
	ops := Squash([]commitstore.Record{insertRec, removeRec})
	key := errs.RowKey{Table: "t", Page: 1, Row: 1}
	op, ok := ops[key]
	if !ok || op.Kind != diff.OpRemove {
		t.Fatalf("expected write-then-delete to collapse to REMOVE, got %+v", op)
	}
}

func TestSquashCollapsesDeleteThenWrite(t *testing.T) {
	removeRec := commitstore.Record{Diff: diff.Diff{{Kind: diff.OpRemove, Table: "t", Edits: []diff.RowEdit{
		{Page: 1, Row: 1},
	}}}}
	insertRec := commitstore.Record{Diff: diff.Diff{{Kind: diff.OpInsert, Table: "t", Edits: []diff.RowEdit{
		{Page: 1, Row: 1, RowBytes: rowBytes(2)},
	}}}}
	ops := Squash([]commitstore.Record{removeRec, insertRec})
	key := errs.RowKey{Table: "t", Page: 1, Row: 1}
	op, ok := ops[key]
	if !ok || op.Kind != diff.OpInsert {
		t.Fatalf("expected delete-then-write to collapse to INSERT, got %+v", op)
	}
}

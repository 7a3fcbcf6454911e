package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"branchdb/errs"
	"branchdb/vc/branch"
	"branchdb/vc/commitstore"
	"branchdb/vc/diff"
)

// Policy selects how a three-way merge resolves a row-key conflict.
type Policy int

const (
	PolicyAbort Policy = iota
	PolicyPreferSource
	PolicyPreferTarget
)

// Engine ties the commit store and branch graph together to run merges.
type Engine struct {
	Commits *commitstore.Store
	Graph   *branch.Graph
	Heads   *branch.HeadTable
}

// Result describes the outcome of a successful Merge call.
type Result struct {
	FastForward bool
	NewCommit   string // empty when FastForward
}

// Merge merges sourceBranch into targetBranch per spec §4.7.
func (e *Engine) Merge(sourceBranch, targetBranch string, policy Policy) (Result, error) {
	sourceHead, ok, err := e.Heads.GetHead(sourceBranch)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("merge: source %q: %w", sourceBranch, errs.ErrBranchUnknown)
	}
	targetHead, ok, err := e.Heads.GetHead(targetBranch)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("merge: target %q: %w", targetBranch, errs.ErrBranchUnknown)
	}

	ancestorHash, err := e.commonAncestor(sourceHead, targetHead)
	if err != nil {
		return Result{}, err
	}

	targetHeadNode, err := e.Graph.Read(targetHead)
	if err != nil {
		return Result{}, err
	}
	if targetHeadNode.CommitHash == ancestorHash {
		// Fast-forward: spec §4.7.3.
		if err := e.Heads.SetHead(targetBranch, sourceHead); err != nil {
			return Result{}, err
		}
		return Result{FastForward: true}, nil
	}

	srcCommits, err := e.commitsSince(sourceHead, ancestorHash)
	if err != nil {
		return Result{}, err
	}
	tgtCommits, err := e.commitsSince(targetHead, ancestorHash)
	if err != nil {
		return Result{}, err
	}
	sSrc := Squash(srcCommits)
	sTgt := Squash(tgtCommits)

	merged, conflicts := resolve(sSrc, sTgt, policy)
	if policy == PolicyAbort && len(conflicts) > 0 {
		return Result{}, &errs.MergeConflictError{Keys: conflicts}
	}

	newDiff := ToDiff(merged)
	hash := strings.ReplaceAll(uuid.New().String(), "-", "")
	rec := commitstore.Record{
		Hash:      hash,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("Merge %s into %s", sourceBranch, targetBranch),
		Command:   fmt.Sprintf("merge %s %s", sourceBranch, targetBranch),
		Diff:      newDiff,
	}
	if err := e.Commits.Append(rec); err != nil {
		return Result{}, err
	}
	newPtr, err := e.Graph.Append(branch.Node{BranchName: targetBranch, CommitHash: hash, Prev: targetHead})
	if err != nil {
		return Result{}, err
	}
	if err := e.Heads.SetHead(targetBranch, newPtr); err != nil {
		return Result{}, err
	}
	return Result{NewCommit: hash}, nil
}

// resolve compares two squashed chains and applies policy to any row key
// both sides touched with disagreeing operations, per spec §4.7 step 3.
func resolve(sSrc, sTgt map[errs.RowKey]Op, policy Policy) (map[errs.RowKey]Op, []errs.RowKey) {
	merged := make(map[errs.RowKey]Op, len(sSrc))
	for k, v := range sSrc {
		merged[k] = v
	}
	var conflicts []errs.RowKey
	for key, srcOp := range sSrc {
		tgtOp, touched := sTgt[key]
		if !touched {
			continue // only source touched this row: carry it forward untouched
		}
		if agree(srcOp, tgtOp) {
			delete(merged, key) // target already reflects this change
			continue
		}
		conflicts = append(conflicts, key)
		switch policy {
		case PolicyPreferSource:
			merged[key] = srcOp
		case PolicyPreferTarget:
			delete(merged, key)
		case PolicyAbort:
			// left as srcOp; caller returns MergeConflictError before using merged
		}
	}
	return merged, conflicts
}

func agree(a, b Op) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == diff.OpRemove {
		return true
	}
	return string(a.RowBytes) == string(b.RowBytes)
}

// commonAncestor implements spec §4.7 step 1.
func (e *Engine) commonAncestor(sourceHead, targetHead branch.Ptr) (string, error) {
	srcNodes, err := e.Graph.Ancestors(sourceHead)
	if err != nil {
		return "", err
	}
	entries := branchEntries(srcNodes)

	tgtNodes, err := e.Graph.Ancestors(targetHead)
	if err != nil {
		return "", err
	}
	for _, n := range tgtNodes {
		srcHash, ok := entries[n.BranchName]
		if !ok {
			continue
		}
		if srcHash == n.CommitHash {
			return srcHash, nil
		}
		srcRec, err := e.Commits.Fetch(srcHash)
		if err != nil {
			return "", err
		}
		tgtRec, err := e.Commits.Fetch(n.CommitHash)
		if err != nil {
			return "", err
		}
		if srcRec.Timestamp <= tgtRec.Timestamp {
			return srcHash, nil
		}
		return n.CommitHash, nil
	}
	return "", fmt.Errorf("merge: %w", errs.ErrNoCommonAncestor)
}

// branchEntries maps each branch name appearing in nodes (head-to-root
// order) to the hash of its branch-entry marker: the node nearest head
// whose own predecessor belongs to a different branch (or is the
// sentinel), per spec §4.7 step 1.
func branchEntries(nodes []branch.Node) map[string]string {
	entries := make(map[string]string)
	for i, n := range nodes {
		predBranch := ""
		if i+1 < len(nodes) {
			predBranch = nodes[i+1].BranchName
		}
		if n.BranchName != predBranch {
			if _, ok := entries[n.BranchName]; !ok {
				entries[n.BranchName] = n.CommitHash
			}
		}
	}
	return entries
}

// commitsSince returns the commit records from just after ancestorHash up
// to and including head, oldest first — the window squash folds over.
func (e *Engine) commitsSince(head branch.Ptr, ancestorHash string) ([]commitstore.Record, error) {
	nodes, err := e.Graph.Ancestors(head)
	if err != nil {
		return nil, err
	}
	var chain []branch.Node
	for _, n := range nodes {
		if n.CommitHash == ancestorHash {
			break
		}
		chain = append(chain, n)
	}
	records := make([]commitstore.Record, len(chain))
	for i, n := range chain {
		rec, err := e.Commits.Fetch(n.CommitHash)
		if err != nil {
			return nil, err
		}
		records[len(chain)-1-i] = rec // reverse: nodes are head-to-root, we want oldest-to-newest
	}
	return records, nil
}

package vc

import (
	"fmt"

	"branchdb/errs"
	"branchdb/vc/branch"
	"branchdb/vc/commitstore"
	"branchdb/vc/diff"
	"branchdb/vc/merge"
)

// Revert appends a new commit on branchName that restores every row the
// commits after targetHash touched back to its state as of targetHash,
// without rewriting history. Grounded on
// original_source/version_control/command.rs's revert(): the original
// computes the diff between the target node and head, applies its
// inverse to the live tables, then records that inverse as a fresh
// commit. branchdb has no live table handle at this layer (table.Table
// values live in the db package), so the inverse is computed purely
// from history: squash the window of commits being undone to find
// every row key touched, then squash everything up to and including
// targetHash to find each key's value at that point, and emit the
// difference as the new commit's diff.
func (v *VC) Revert(branchName, targetHash string) (string, error) {
	head, ok, err := v.Heads.GetHead(branchName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("vc: revert on %q: %w", branchName, errs.ErrBranchUnknown)
	}
	ancestors, err := v.Graph.Ancestors(head)
	if err != nil {
		return "", err
	}

	targetIdx := -1
	for i, n := range ancestors {
		if n.CommitHash == targetHash {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return "", fmt.Errorf("vc: revert to %s: %w", targetHash, errs.ErrNotFound)
	}
	if targetIdx == 0 {
		return "", fmt.Errorf("vc: revert to %s: already at head", targetHash)
	}

	windowOps, err := squashNodes(v.Commits, ancestors[:targetIdx])
	if err != nil {
		return "", err
	}
	preimageOps, err := squashNodes(v.Commits, ancestors[targetIdx:])
	if err != nil {
		return "", err
	}

	undo := make(map[errs.RowKey]merge.Op, len(windowOps))
	for key := range windowOps {
		pre, existed := preimageOps[key]
		if !existed || pre.Kind == diff.OpRemove {
			undo[key] = merge.Op{Kind: diff.OpRemove, Table: key.Table, Page: key.Page, Row: key.Row}
			continue
		}
		undo[key] = merge.Op{Kind: diff.OpUpdate, Table: key.Table, Page: key.Page, Row: key.Row, RowBytes: pre.RowBytes}
	}

	newDiff := merge.ToDiff(undo)
	return v.Commit(branchName, fmt.Sprintf("Reverted to commit %s", targetHash), fmt.Sprintf("revert %s", targetHash), newDiff)
}

// squashNodes fetches the commit record for each node (given in
// head-to-root order, as returned by Graph.Ancestors) and folds them
// with merge.Squash, which requires oldest-first order.
func squashNodes(commits *commitstore.Store, nodesNewestFirst []branch.Node) (map[errs.RowKey]merge.Op, error) {
	records := make([]commitstore.Record, len(nodesNewestFirst))
	for i, n := range nodesNewestFirst {
		rec, err := commits.Fetch(n.CommitHash)
		if err != nil {
			return nil, err
		}
		records[len(nodesNewestFirst)-1-i] = rec
	}
	return merge.Squash(records), nil
}

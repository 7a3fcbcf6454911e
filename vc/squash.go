package vc

import (
	"fmt"

	"branchdb/errs"
	"branchdb/vc/branch"
	"branchdb/vc/commitstore"
	"branchdb/vc/merge"
)

// Squash collapses every commit from olderHash to newerHash (inclusive,
// both on branchName's own history) into a single commit, rewriting
// newerHash's node in place to carry the squashed diff and point
// directly at olderHash's predecessor. The intervening nodes stay on
// disk, unreachable from any branch head — branches.gql's one
// documented departure from pure append-only, matching
// original_source/version_control/command.rs's squash(), which calls
// can_squash() to reject a range that crosses a fork point before
// splicing the chain via update_branch_node.
func (v *VC) Squash(branchName, olderHash, newerHash string) (string, error) {
	head, ok, err := v.Heads.GetHead(branchName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("vc: squash on %q: %w", branchName, errs.ErrBranchUnknown)
	}

	type located struct {
		ptr  branch.Ptr
		node branch.Node
	}
	var chain []located
	err = v.Graph.WalkAncestorsPtr(head, func(p branch.Ptr, n branch.Node) bool {
		chain = append(chain, located{ptr: p, node: n})
		return true
	})
	if err != nil {
		return "", err
	}

	newerIdx, olderIdx := -1, -1
	for i, l := range chain {
		if l.node.CommitHash == newerHash {
			newerIdx = i
		}
		if l.node.CommitHash == olderHash {
			olderIdx = i
		}
	}
	if newerIdx < 0 {
		return "", fmt.Errorf("vc: squash: %s: %w", newerHash, errs.ErrNotFound)
	}
	if olderIdx < 0 {
		return "", fmt.Errorf("vc: squash: %s: %w", olderHash, errs.ErrNotFound)
	}
	if olderIdx < newerIdx {
		return "", fmt.Errorf("vc: squash: %s is not an ancestor of %s", olderHash, newerHash)
	}

	rangeNodes := chain[newerIdx : olderIdx+1] // newest-first
	for _, l := range rangeNodes {
		if l.node.BranchName != branchName {
			return "", fmt.Errorf("vc: squash %s..%s: %w", olderHash, newerHash, errs.ErrSquashCrossesBranch)
		}
	}

	records := make([]commitstore.Record, len(rangeNodes))
	for i, l := range rangeNodes {
		rec, err := v.Commits.Fetch(l.node.CommitHash)
		if err != nil {
			return "", err
		}
		records[len(rangeNodes)-1-i] = rec // oldest first, for Squash
	}
	ops := merge.Squash(records)
	newDiff := merge.ToDiff(ops)

	hash := newHash()
	rec := commitstore.Record{
		Hash:      hash,
		Timestamp: now(),
		Message:   fmt.Sprintf("Squashed %.8s..%.8s", olderHash, newerHash),
		Command:   fmt.Sprintf("squash %s %s", olderHash, newerHash),
		Diff:      newDiff,
	}
	if err := v.Commits.Append(rec); err != nil {
		return "", err
	}

	newerLoc := chain[newerIdx]
	olderNode := chain[olderIdx].node
	if err := v.Graph.Update(newerLoc.ptr, branch.Node{BranchName: branchName, CommitHash: hash, Prev: olderNode.Prev}); err != nil {
		return "", err
	}
	return hash, nil
}

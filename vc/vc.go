// Package vc is the external surface of the version control system
// (spec §6): it wires the commit store (C5), branch graph (C6) and
// merge engine (C7) behind the operations a caller actually drives —
// commit, log, branch management, merge, revert and squash. Grounded
// on original_source/version_control/command.rs, which plays the same
// role over the same three files in the Rust original.
package vc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"branchdb/errs"
	"branchdb/vc/branch"
	"branchdb/vc/commitstore"
	"branchdb/vc/diff"
	"branchdb/vc/merge"
)

const initialBranch = "main"

// VC is the open version-control state for one database directory: the
// commit store, branch graph, branch head table, and the merge engine
// built over them.
type VC struct {
	Commits *commitstore.Store
	Graph   *branch.Graph
	Heads   *branch.HeadTable
	merge   *merge.Engine
}

// Create initializes a brand new version-control store in dir and seeds
// it with a single root commit on the "main" branch, matching
// command.rs's behavior on `gql init`: every database starts with one
// branch and one (empty-diff) commit so later operations always have an
// ancestor to walk back to.
func Create(dir string) (*VC, error) {
	commits, err := commitstore.Create(dir)
	if err != nil {
		return nil, err
	}
	graph, err := branch.CreateGraph(dir)
	if err != nil {
		commits.Close()
		return nil, err
	}
	heads, err := branch.CreateHeadTable(dir)
	if err != nil {
		commits.Close()
		graph.Close()
		return nil, err
	}
	v := &VC{Commits: commits, Graph: graph, Heads: heads, merge: &merge.Engine{Commits: commits, Graph: graph, Heads: heads}}

	hash := newHash()
	rec := commitstore.Record{
		Hash:      hash,
		Timestamp: now(),
		Message:   "initial commit",
		Command:   "init",
	}
	if err := v.Commits.Append(rec); err != nil {
		v.Close()
		return nil, err
	}
	ptr, err := v.Graph.Append(branch.Node{BranchName: initialBranch, CommitHash: hash, Prev: branch.SentinelPtr})
	if err != nil {
		v.Close()
		return nil, err
	}
	if err := v.Heads.CreateBranch(initialBranch, ptr); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// Open opens an existing version-control store in dir.
func Open(dir string) (*VC, error) {
	commits, err := commitstore.Open(dir)
	if err != nil {
		return nil, err
	}
	graph, err := branch.OpenGraph(dir)
	if err != nil {
		commits.Close()
		return nil, err
	}
	heads, err := branch.OpenHeadTable(dir)
	if err != nil {
		commits.Close()
		graph.Close()
		return nil, err
	}
	return &VC{Commits: commits, Graph: graph, Heads: heads, merge: &merge.Engine{Commits: commits, Graph: graph, Heads: heads}}, nil
}

// Close releases the commit store, branch graph and head table (four
// underlying files in all).
func (v *VC) Close() error {
	err1 := v.Commits.Close()
	err2 := v.Graph.Close()
	err3 := v.Heads.Close()
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return err
		}
	}
	return nil
}

func newHash() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Commit appends d as a new commit on branchName's head, advancing the
// branch's head pointer. message and command are stored verbatim for
// ListLog, matching create_commit_on_head in command.rs.
func (v *VC) Commit(branchName, message, command string, d diff.Diff) (string, error) {
	head, ok, err := v.Heads.GetHead(branchName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("vc: commit on %q: %w", branchName, errs.ErrBranchUnknown)
	}
	hash := newHash()
	rec := commitstore.Record{Hash: hash, Timestamp: now(), Message: message, Command: command, Diff: d}
	if err := v.Commits.Append(rec); err != nil {
		return "", err
	}
	ptr, err := v.Graph.Append(branch.Node{BranchName: branchName, CommitHash: hash, Prev: head})
	if err != nil {
		return "", err
	}
	if err := v.Heads.SetHead(branchName, ptr); err != nil {
		return "", err
	}
	return hash, nil
}

// LookupCommit fetches one commit record by hash.
func (v *VC) LookupCommit(hash string) (commitstore.Record, error) {
	return v.Commits.Fetch(hash)
}

// ListLog returns branchName's commits, most recent first, matching
// command.rs's `gql log` traversal of the branch node chain.
func (v *VC) ListLog(branchName string) ([]commitstore.Record, error) {
	head, ok, err := v.Heads.GetHead(branchName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vc: log %q: %w", branchName, errs.ErrBranchUnknown)
	}
	nodes, err := v.Graph.Ancestors(head)
	if err != nil {
		return nil, err
	}
	records := make([]commitstore.Record, len(nodes))
	for i, n := range nodes {
		rec, err := v.Commits.Fetch(n.CommitHash)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// CreateBranch forks a new branch named name off baseBranch's current
// head.
func (v *VC) CreateBranch(name, baseBranch string) error {
	head, ok, err := v.Heads.GetHead(baseBranch)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("vc: create branch %q: base %w", name, errs.ErrBranchUnknown)
	}
	return v.Heads.CreateBranch(name, head)
}

// DeleteBranch removes a branch's head entry. The branch's nodes remain
// in branches.gql (an audit trail of commits made, per spec invariant
// 5), unreachable from any remaining head.
func (v *VC) DeleteBranch(name string) error {
	return v.Heads.DeleteBranch(name)
}

// ListBranches returns every live branch name.
func (v *VC) ListBranches() ([]string, error) {
	return v.Heads.ListBranches()
}

// Merge merges sourceBranch into targetBranch per spec §4.7.
func (v *VC) Merge(sourceBranch, targetBranch string, policy merge.Policy) (merge.Result, error) {
	return v.merge.Merge(sourceBranch, targetBranch, policy)
}

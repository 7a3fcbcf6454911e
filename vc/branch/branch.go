// Package branch implements the branch graph (C6): branches.gql, an
// append-only linked list of branch nodes (one per commit reachable on
// any branch), and branch_heads.gql, the name -> current-node-location
// table. Grounded directly on
// original_source/version_control/branches.rs and branch_heads.rs, both
// of which are themselves thin wrappers around a table.Table — branchdb
// keeps that shape rather than inventing a bespoke page layout.
package branch

import (
	"fmt"
	"sync"

	"branchdb/errs"
	"branchdb/row"
	"branchdb/schema"
	"branchdb/table"
)

const (
	branchesFileName    = "branches.gql"
	branchHeadsFileName = "branch_heads.gql"
	branchNameWidth     = 60
	commitHashWidth     = 32
	MaxBranches         = 60 // spec §4.7: branch_heads.gql holds at most this many live branches
)

// SentinelPtr marks a branch node with no predecessor — the first commit
// on a branch's own node chain, per branches.rs's prev_pagenum/prev_rownum
// convention.
var SentinelPtr = Ptr{Page: -1, Row: -1}

// Ptr is a signed row pointer into branches.gql, able to hold the
// (-1, -1) sentinel that table.Location's unsigned fields cannot.
type Ptr struct {
	Page int32
	Row  int32
}

func (p Ptr) isSentinel() bool { return p == SentinelPtr }

func ptrFromLocation(loc table.Location) Ptr {
	return Ptr{Page: int32(loc.Page), Row: int32(loc.Slot)}
}

func (p Ptr) toLocation() table.Location {
	return table.Location{Page: uint32(p.Page), Slot: uint32(p.Row)}
}

// Node is one entry in branches.gql: a commit on a named branch, linked
// to its predecessor (on the same branch, or the branch's fork point on
// another branch).
type Node struct {
	BranchName string
	CommitHash string
	Prev       Ptr
}

func nodeSchema() schema.Schema {
	return schema.Schema{
		{Name: "branch_name", Type: schema.String, StringWidth: branchNameWidth, Nullable: false},
		{Name: "commit_hash", Type: schema.String, StringWidth: commitHashWidth, Nullable: false},
		{Name: "prev_page", Type: schema.Int32, Nullable: false},
		{Name: "prev_row", Type: schema.Int32, Nullable: false},
	}
}

func nodeToValues(n Node) []row.Value {
	return []row.Value{
		row.Str(n.BranchName),
		row.Str(n.CommitHash),
		row.I32(n.Prev.Page),
		row.I32(n.Prev.Row),
	}
}

func valuesToNode(values []row.Value) Node {
	return Node{
		BranchName: values[0].Str,
		CommitHash: values[1].Str,
		Prev:       Ptr{Page: int32(values[2].Int), Row: int32(values[3].Int)},
	}
}

// Graph is the open branches.gql file.
type Graph struct {
	mu    sync.RWMutex
	nodes *table.Table
}

// CreateGraph initializes a brand new branches.gql in dir.
func CreateGraph(dir string) (*Graph, error) {
	t, err := table.Create(dir, branchesFileName, nodeSchema())
	if err != nil {
		return nil, err
	}
	return &Graph{nodes: t}, nil
}

// OpenGraph opens an existing branches.gql.
func OpenGraph(dir string) (*Graph, error) {
	t, err := table.Open(dir, branchesFileName)
	if err != nil {
		return nil, err
	}
	return &Graph{nodes: t}, nil
}

func (g *Graph) Close() error { return g.nodes.Close() }

// Append writes a new node and returns its location, to be recorded as a
// branch head or as another node's Prev pointer.
func (g *Graph) Append(n Node) (Ptr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	loc, err := g.nodes.Insert(nodeToValues(n))
	if err != nil {
		return Ptr{}, err
	}
	return ptrFromLocation(loc), nil
}

// Update rewrites the node at p in place. Used only by squash (spec
// external surface), which collapses a run of commits into one and
// repoints the surviving node's hash and predecessor — the one
// documented exception to branches.gql's append-only discipline,
// grounded on original_source/version_control/command.rs's
// update_branch_node call in squash().
func (g *Graph) Update(p Ptr, n Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Update(p.toLocation(), nodeToValues(n))
}

// Read fetches the node at p.
func (g *Graph) Read(p Ptr) (Node, error) {
	if p.isSentinel() {
		return Node{}, fmt.Errorf("branch: read sentinel pointer: %w", errs.ErrNotFound)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	values, err := g.nodes.Get(p.toLocation())
	if err != nil {
		return Node{}, err
	}
	return valuesToNode(values), nil
}

// WalkAncestors calls visit once per node starting at head and following
// Prev pointers back to (and including) the node just before the
// sentinel, stopping if visit returns false. This single chain crosses
// branch boundaries at fork points, matching branches.rs's
// get_prev_branch_node — one commit's ancestry is not confined to its
// own branch's nodes.
func (g *Graph) WalkAncestors(head Ptr, visit func(Node) bool) error {
	return g.WalkAncestorsPtr(head, func(_ Ptr, n Node) bool { return visit(n) })
}

// WalkAncestorsPtr is WalkAncestors but also passes each node's own
// location, needed by callers (squash) that must rewrite a node in
// place rather than just read its content.
func (g *Graph) WalkAncestorsPtr(head Ptr, visit func(Ptr, Node) bool) error {
	cur := head
	for !cur.isSentinel() {
		n, err := g.Read(cur)
		if err != nil {
			return err
		}
		if !visit(cur, n) {
			return nil
		}
		cur = n.Prev
	}
	return nil
}

// Ancestors collects the full ancestor-hash chain starting at head, most
// recent first, for log listing and common-ancestor search.
func (g *Graph) Ancestors(head Ptr) ([]Node, error) {
	var out []Node
	err := g.WalkAncestors(head, func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out, err
}

package domops

import (
	"context"
	"strings"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

const (
	// DefaultTreeDepth and DefaultMaxNodes are dom tree's defaults
	// (spec.md §4.6 "depth (default 2) and maxNodes (default 5000)").
	DefaultTreeDepth   = 2
	DefaultMaxNodes    = 5000
)

// TreeRequest parameterizes `dom tree` (spec.md §4.6).
type TreeRequest struct {
	Selector Selector
	Depth    int
	MaxNodes int
}

// TreeResult is the `dom tree` response for one matched root.
type TreeResult struct {
	Matches int              `json:"matches"`
	Roots   []*model.DomNode `json:"roots"`
}

// Tree walks breadth-first from each node matched by req.Selector up to
// req.Depth and req.MaxNodes total nodes (spec.md §4.6 "dom tree").
// Read-only: zero matches is CodeNoMatch ("No element found").
func Tree(ctx context.Context, session *cdp.Session, req TreeRequest) (TreeResult, error) {
	depth := req.Depth
	if depth <= 0 {
		depth = DefaultTreeDepth
	}
	maxNodes := req.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	ids, err := RequireOne(ctx, session, req.Selector)
	if err != nil {
		return TreeResult{}, err
	}

	budget := maxNodes
	roots := make([]*model.DomNode, 0, len(ids))
	for _, id := range ids {
		node, consumed, err := walkNode(ctx, session, id, depth, &budget)
		if err != nil {
			return TreeResult{}, err
		}
		_ = consumed
		roots = append(roots, node)
	}
	return TreeResult{Matches: len(ids), Roots: roots}, nil
}

// walkNode renders one node and, depth permitting, its element children
// (text/comment nodes are filtered out, spec.md §4.6), decrementing
// *budget for every node emitted and marking Truncated once it or depth
// runs out.
func walkNode(ctx context.Context, session *cdp.Session, nodeID int, depth int, budget *int) (*model.DomNode, int, error) {
	if *budget <= 0 {
		return &model.DomNode{NodeID: nodeID, Truncated: true, TruncatedReason: "max_nodes"}, 0, nil
	}
	*budget--

	described, err := describeNode(ctx, session, nodeID, 1)
	if err != nil {
		return nil, 0, err
	}

	out := &model.DomNode{
		NodeID:     nodeID,
		Tag:        strings.ToLower(described.NodeName),
		Attributes: attributesMap(described.Attributes),
	}

	if depth == 0 {
		if len(elementChildren(described.Children)) > 0 {
			out.Truncated = true
			out.TruncatedReason = "depth"
		}
		return out, 1, nil
	}

	childIDs, err := elementChildNodeIDs(ctx, session, nodeID)
	if err != nil {
		return nil, 0, err
	}
	for _, childID := range childIDs {
		if *budget <= 0 {
			out.Truncated = true
			out.TruncatedReason = "max_nodes"
			break
		}
		child, _, err := walkNode(ctx, session, childID, depth-1, budget)
		if err != nil {
			return nil, 0, err
		}
		out.Children = append(out.Children, child)
	}
	return out, 1, nil
}

func elementChildren(nodes []domNode) []domNode {
	var out []domNode
	for _, n := range nodes {
		if n.NodeType == 1 { // ELEMENT_NODE
			out = append(out, n)
		}
	}
	return out
}

// elementChildNodeIDs fetches a node's immediate element children via
// DOM.describeNode(depth:1) and filters out text/comment nodes.
func elementChildNodeIDs(ctx context.Context, session *cdp.Session, nodeID int) ([]int, error) {
	described, err := describeNode(ctx, session, nodeID, 1)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, c := range elementChildren(described.Children) {
		ids = append(ids, c.NodeID)
	}
	return ids, nil
}

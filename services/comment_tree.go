package services

import (
	"fmt"
	"sort"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

// ThreadOrder selects how siblings are sorted inside a thread.
type ThreadOrder int

const (
	OrderNewest ThreadOrder = iota
	OrderOldest
)

// ParseThreadOrder maps "oldest"/"asc" to OrderOldest; anything else is OrderNewest.
func ParseThreadOrder(s string) ThreadOrder {
	switch s {
	case "oldest", "asc":
		return OrderOldest
	default:
		return OrderNewest
	}
}

type chainState uint8

const (
	chainUnknown chainState = iota
	chainVisiting
	chainRooted
	chainOrphaned
	chainCyclic
)

// threadIndex holds a flat comment set indexed by id and by parent id.
// Trees are assembled in memory; storage is never queried per node.
type threadIndex struct {
	byID     map[uint]*models.CommentView
	children map[uint][]*models.CommentView
	roots    []*models.CommentView
	state    map[uint]chainState
}

func newThreadIndex(nodes []*models.CommentView, order ThreadOrder) *threadIndex {
	ix := &threadIndex{
		byID:     make(map[uint]*models.CommentView, len(nodes)),
		children: make(map[uint][]*models.CommentView),
		state:    make(map[uint]chainState, len(nodes)),
	}
	for _, n := range nodes {
		ix.byID[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentCommentID == nil {
			ix.roots = append(ix.roots, n)
			continue
		}
		ix.children[*n.ParentCommentID] = append(ix.children[*n.ParentCommentID], n)
	}
	sortThread(ix.roots, order)
	for parent := range ix.children {
		sortThread(ix.children[parent], order)
	}
	for _, n := range nodes {
		n.Replies = len(ix.children[n.ID])
		n.ChildComments = make([]*models.CommentView, 0, n.Replies)
	}
	return ix
}

func sortThread(list []*models.CommentView, order ThreadOrder) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Created.Equal(b.Created) {
			if order == OrderOldest {
				return a.Created.Before(b.Created)
			}
			return a.Created.After(b.Created)
		}
		if order == OrderOldest {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

// classify walks the parent chain of id once and memoizes the outcome for
// every comment on the path.
func (ix *threadIndex) classify(id uint) chainState {
	var path []uint
	result := chainRooted
	cur := id
	for {
		if st := ix.state[cur]; st != chainUnknown {
			result = st
			if st == chainVisiting {
				result = chainCyclic
			}
			break
		}
		node, ok := ix.byID[cur]
		if !ok {
			result = chainOrphaned
			break
		}
		ix.state[cur] = chainVisiting
		path = append(path, cur)
		if node.ParentCommentID == nil {
			result = chainRooted
			break
		}
		cur = *node.ParentCommentID
	}
	for _, p := range path {
		ix.state[p] = result
	}
	return result
}

// forest returns the ordered top-level comments with every reply attached.
func (ix *threadIndex) forest() ([]*models.CommentView, error) {
	for id, n := range ix.byID {
		switch ix.classify(id) {
		case chainCyclic:
			return nil, fmt.Errorf("comment %d: %w", id, ErrCyclicStructure)
		case chainOrphaned:
			if _, ok := ix.byID[*n.ParentCommentID]; !ok {
				utils.Sugar.Warnw("skipping orphaned comment", "comment_id", id, "parent_comment_id", *n.ParentCommentID, "post_id", n.PostID)
			}
		}
	}
	roots := make([]*models.CommentView, 0, len(ix.roots))
	for _, r := range ix.roots {
		ix.attach(r)
		roots = append(roots, r)
	}
	return roots, nil
}

// subtree returns the comment with the given id and all of its descendants.
func (ix *threadIndex) subtree(id uint) (*models.CommentView, error) {
	node, ok := ix.byID[id]
	if !ok {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if ix.classify(id) == chainCyclic {
		return nil, fmt.Errorf("comment %d: %w", id, ErrCyclicStructure)
	}
	ix.attach(node)
	return node, nil
}

// descendants lists id and every comment below it, parents first.
func (ix *threadIndex) descendants(id uint) []uint {
	seen := map[uint]bool{id: true}
	out := []uint{id}
	for i := 0; i < len(out); i++ {
		for _, c := range ix.children[out[i]] {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	return out
}

// attach fills ChildComments below n. Callers only pass nodes whose chain is
// acyclic, so the recursion terminates.
func (ix *threadIndex) attach(n *models.CommentView) {
	n.ChildComments = n.ChildComments[:0]
	for _, c := range ix.children[n.ID] {
		ix.attach(c)
		n.ChildComments = append(n.ChildComments, c)
	}
}

package avl

import (
	"errors"
	"fmt"
)

// Invariant violations reported by Verify.
var (
	ErrOrderViolation   = errors.New("avl: search order violated")
	ErrBalanceViolation = errors.New("avl: balance factor out of range")
	ErrHeightMismatch   = errors.New("avl: stored height does not match subtree")
)

// Walk visits every entry in ascending key order until fn returns false.
// The traversal is iterative; its stack never exceeds the tree height.
func (idx *Index) Walk(fn func(Entry) bool) {
	if idx.root == nilNode {
		return
	}

	stack := make([]uint32, 0, idx.Height())
	cur := idx.root

	for cur != nilNode || len(stack) > 0 {
		for cur != nilNode {
			stack = append(stack, cur)
			cur = idx.nodes[cur].left
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(idx.nodes[top].entry) {
			return
		}

		cur = idx.nodes[top].right
	}
}

// Verify checks the search order, the balance property and the stored heights
// of every node.
func (idx *Index) Verify() error {
	_, err := idx.verify(idx.root, nil, nil)

	return err
}

func (idx *Index) verify(h uint32, lower, upper *int) (int32, error) {
	if h == nilNode {
		return 0, nil
	}

	nd := &idx.nodes[h]
	key := nd.entry.Key

	if (lower != nil && key <= *lower) || (upper != nil && key >= *upper) {
		return 0, fmt.Errorf("%w at key %d", ErrOrderViolation, key)
	}

	lh, err := idx.verify(nd.left, lower, &key)
	if err != nil {
		return 0, err
	}

	rh, err := idx.verify(nd.right, &key, upper)
	if err != nil {
		return 0, err
	}

	if diff := lh - rh; diff > 1 || diff < -1 {
		return 0, fmt.Errorf("%w at key %d: %d", ErrBalanceViolation, key, diff)
	}

	if want := 1 + max(lh, rh); nd.height != want {
		return 0, fmt.Errorf("%w at key %d: stored %d, computed %d", ErrHeightMismatch, key, nd.height, want)
	}

	return nd.height, nil
}

// Package avl provides the station aggregation index: an AVL tree keyed by
// station id whose nodes accumulate capacity and consumption totals.
//
// Nodes live in a flat arena and reference each other by uint32 handle.
// Handle 0 is reserved for the absent node, whose height is 0.
package avl

import (
	"errors"
	"math"
)

// ErrArenaExhausted is the panic value raised when the arena cannot hold another node.
var ErrArenaExhausted = errors.New("avl: node arena exhausted")

// nilNode is the reserved handle of the absent node.
const nilNode uint32 = 0

// maxNodes bounds the arena so that every handle fits in uint32.
const maxNodes uint64 = math.MaxUint32 - 1

// Entry is a value copy of one aggregated station.
type Entry struct {
	Key         int
	Capacity    int64
	Consumption float64
}

type node struct {
	entry       Entry
	left, right uint32
	height      int32
}

// Index is the aggregation tree. The zero value is an empty index; the arena
// is allocated on the first Insert.
type Index struct {
	nodes []node
	root  uint32
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

// Len returns the number of distinct keys in the index.
func (idx *Index) Len() int {
	if len(idx.nodes) == 0 {
		return 0
	}

	return len(idx.nodes) - 1
}

// Height returns the height of the whole tree; 0 when empty.
func (idx *Index) Height() int {
	return int(idx.height(idx.root))
}

// Insert adds capacity and consumption to the station identified by key.
// A new node is created when the key is absent, and the path back to the root
// is rebalanced. A present key only accumulates; the tree shape is unchanged.
// It reports whether a node was created.
func (idx *Index) Insert(key int, capacity int64, consumption float64) bool {
	before := len(idx.nodes)
	idx.root = idx.insert(idx.root, key, capacity, consumption)

	return len(idx.nodes) != before
}

// Search returns a copy of the entry stored under key.
func (idx *Index) Search(key int) (Entry, bool) {
	cur := idx.root

	for cur != nilNode {
		nd := &idx.nodes[cur]

		switch {
		case key < nd.entry.Key:
			cur = nd.left
		case key > nd.entry.Key:
			cur = nd.right
		default:
			return nd.entry, true
		}
	}

	return Entry{}, false
}

// Release drops every node. The index is empty afterwards and may be reused.
func (idx *Index) Release() {
	idx.nodes = nil
	idx.root = nilNode
}

func (idx *Index) malloc(key int, capacity int64, consumption float64) uint32 {
	if idx.nodes == nil {
		idx.nodes = make([]node, 1)
	}

	if uint64(len(idx.nodes)) > maxNodes {
		panic(ErrArenaExhausted)
	}

	idx.nodes = append(idx.nodes, node{
		entry:  Entry{Key: key, Capacity: capacity, Consumption: consumption},
		height: 1,
	})

	return uint32(len(idx.nodes) - 1) //nolint:gosec // bounded by maxNodes above.
}

// insert places key below the subtree rooted at h and returns the new subtree root.
func (idx *Index) insert(h uint32, key int, capacity int64, consumption float64) uint32 {
	if h == nilNode {
		return idx.malloc(key, capacity, consumption)
	}

	// The arena may grow during the recursive call, so nodes are re-indexed after it.
	switch k := idx.nodes[h].entry.Key; {
	case key < k:
		child := idx.insert(idx.nodes[h].left, key, capacity, consumption)
		idx.nodes[h].left = child
	case key > k:
		child := idx.insert(idx.nodes[h].right, key, capacity, consumption)
		idx.nodes[h].right = child
	default:
		idx.nodes[h].entry.Capacity += capacity
		idx.nodes[h].entry.Consumption += consumption

		return h
	}

	idx.updateHeight(h)

	return idx.rebalance(h, key)
}

// rebalance restores the AVL property at h after key was inserted below it.
func (idx *Index) rebalance(h uint32, key int) uint32 {
	balance := idx.balanceFactor(h)

	switch {
	case balance > 1:
		left := idx.nodes[h].left
		if key > idx.nodes[left].entry.Key {
			idx.nodes[h].left = idx.rotateLeft(left)
		}

		return idx.rotateRight(h)
	case balance < -1:
		right := idx.nodes[h].right
		if key < idx.nodes[right].entry.Key {
			idx.nodes[h].right = idx.rotateRight(right)
		}

		return idx.rotateLeft(h)
	default:
		return h
	}
}

func (idx *Index) height(h uint32) int32 {
	if h == nilNode {
		return 0
	}

	return idx.nodes[h].height
}

// balanceFactor is height(left) - height(right); 0 for the absent node.
func (idx *Index) balanceFactor(h uint32) int32 {
	if h == nilNode {
		return 0
	}

	return idx.height(idx.nodes[h].left) - idx.height(idx.nodes[h].right)
}

func (idx *Index) updateHeight(h uint32) {
	nd := &idx.nodes[h]
	nd.height = 1 + max(idx.height(nd.left), idx.height(nd.right))
}

// rotateLeft and rotateRight only touch child links and the heights of the
// two nodes involved; payloads never move.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (idx *Index) rotateLeft(x uint32) uint32 {
	y := idx.nodes[x].right
	idx.nodes[x].right = idx.nodes[y].left
	idx.nodes[y].left = x

	idx.updateHeight(x)
	idx.updateHeight(y)

	return y
}

func (idx *Index) rotateRight(y uint32) uint32 {
	x := idx.nodes[y].left
	idx.nodes[y].left = idx.nodes[x].right
	idx.nodes[x].right = y

	idx.updateHeight(y)
	idx.updateHeight(x)

	return x
}

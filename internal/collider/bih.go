package collider

import (
	"math"

	"github.com/san-kum/flexsim/internal/geometry"
)

const bihLeafSize = 4

type bihNode struct {
	// leaf: items[first:first+count]
	first, count int32
	// inner: children and clip planes along axis
	left, right int32
	axis        int8
	leftMax     float32
	rightMin    float32
}

func (n *bihNode) leaf() bool { return n.count > 0 || n.left < 0 }

// BIH is a bounding interval hierarchy over item bounds. Each inner node
// stores two clip planes along one axis instead of full child boxes.
type BIH struct {
	nodes []bihNode
	items []int32
}

// BuildBIH builds a hierarchy over bounds.
func BuildBIH(bounds []geometry.Aabb) *BIH {
	h := &BIH{items: make([]int32, len(bounds))}
	for i := range h.items {
		h.items[i] = int32(i)
	}
	if len(bounds) == 0 {
		return h
	}
	h.build(bounds, 0, int32(len(bounds)), 0)
	return h
}

func (h *BIH) build(bounds []geometry.Aabb, first, count int32, depth int) int32 {
	idx := int32(len(h.nodes))
	h.nodes = append(h.nodes, bihNode{first: first, count: count, left: -1, right: -1})
	if count <= bihLeafSize || depth > 32 {
		return idx
	}

	box := geometry.EmptyAabb()
	for _, it := range h.items[first : first+count] {
		box = box.EncapsulateBounds(bounds[it])
	}
	size := box.Size()
	axis := 0
	if size[1] > size[axis] {
		axis = 1
	}
	if size[2] > size[axis] {
		axis = 2
	}
	split := box.Center()[axis]

	// partition by centroid
	items := h.items[first : first+count]
	l, r := 0, len(items)-1
	for l <= r {
		if bounds[items[l]].Center()[axis] < split {
			l++
		} else {
			items[l], items[r] = items[r], items[l]
			r--
		}
	}
	if l == 0 || l == len(items) {
		l = len(items) / 2
	}

	leftMax := float32(math.Inf(-1))
	for _, it := range items[:l] {
		leftMax = float32(math.Max(float64(leftMax), float64(bounds[it].Max[axis])))
	}
	rightMin := float32(math.Inf(1))
	for _, it := range items[l:] {
		rightMin = float32(math.Min(float64(rightMin), float64(bounds[it].Min[axis])))
	}

	left := h.build(bounds, first, int32(l), depth+1)
	right := h.build(bounds, first+int32(l), count-int32(l), depth+1)

	n := &h.nodes[idx]
	n.count = 0
	n.left, n.right = left, right
	n.axis = int8(axis)
	n.leftMax, n.rightMin = leftMax, rightMin
	return idx
}

// Query calls fn for every item whose interval could overlap q. Returning
// false from fn stops the traversal.
func (h *BIH) Query(q geometry.Aabb, fn func(item int) bool) {
	if len(h.nodes) == 0 {
		return
	}
	stack := make([]int32, 0, 32)
	stack = append(stack, 0)
	for len(stack) > 0 {
		n := &h.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if n.leaf() {
			for _, it := range h.items[n.first : n.first+n.count] {
				if !fn(int(it)) {
					return
				}
			}
			continue
		}
		if q.Min[n.axis] <= n.leftMax {
			stack = append(stack, n.left)
		}
		if q.Max[n.axis] >= n.rightMin {
			stack = append(stack, n.right)
		}
	}
}

// NodeCount is the number of nodes in the hierarchy.
func (h *BIH) NodeCount() int { return len(h.nodes) }

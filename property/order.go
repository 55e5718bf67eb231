package property

import (
	"sort"
	"unicode"
	"unicode/utf16"

	"github.com/outofforest/oledoc/blocks/entry"
)

// Compare orders siblings the way the format requires: shorter names first, names of equal length
// compared code unit by code unit after mapping to upper case.
func Compare(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	if len(ua) != len(ub) {
		if len(ua) < len(ub) {
			return -1
		}
		return 1
	}
	for i := range ua {
		ca, cb := upper(ua[i]), upper(ub[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func upper(c uint16) uint16 {
	if utf16.IsSurrogate(rune(c)) {
		return c
	}
	u := unicode.ToUpper(rune(c))
	if u > 0xFFFF {
		return c
	}
	return uint16(u)
}

// node is the position of the sibling in the flattened tree.
type node struct {
	left, right int
	color       entry.Color
}

// balance builds balanced tree of n sorted siblings. It returns the index of the root and the nodes
// addressed by sibling indices. Nodes on the deepest level are red if that level is incomplete,
// all the others are black.
func balance(n int) (int, []node) {
	nodes := make([]node, n)
	if n == 0 {
		return -1, nodes
	}

	depth := 0
	for (1<<(depth+1))-1 < n {
		depth++
	}
	deepestColor := entry.Black
	if n != (1<<(depth+1))-1 {
		deepestColor = entry.Red
	}

	var build func(lo, hi, level int) int
	build = func(lo, hi, level int) int {
		if lo >= hi {
			return -1
		}
		mid := (lo + hi) / 2
		nodes[mid] = node{
			left:  build(lo, mid, level+1),
			right: build(mid+1, hi, level+1),
			color: entry.Black,
		}
		if level == depth {
			nodes[mid].color = deepestColor
		}
		return mid
	}
	return build(0, n, 0), nodes
}

// sortedChildren returns children of the directory ordered by Compare.
func (t *Table) sortedChildren(p *Property) []Handle {
	children := append([]Handle{}, p.children...)
	sort.SliceStable(children, func(i, j int) bool {
		return Compare(t.props[children[i]].Name, t.props[children[j]].Name) < 0
	})
	return children
}

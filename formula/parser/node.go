package parser

import (
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

// node is the element of the parse tree. Children are operands of the token.
type node struct {
	token    ptg.Token
	children []*node
}

func leaf(t ptg.Token) *node {
	return &node{token: t}
}

func branch(t ptg.Token, children ...*node) *node {
	return &node{token: t, children: children}
}

// size returns the size of the subexpression in the token stream.
func (n *node) size() int {
	size := n.token.Size()
	for _, c := range n.children {
		size += c.size()
	}
	return size
}

// appendTokens flattens the tree to reverse polish notation. Mem tokens precede their subexpression.
func (n *node) appendTokens(tokens []ptg.Token) []ptg.Token {
	switch n.token.(type) {
	case *ptg.MemArea, *ptg.MemFunc:
		tokens = append(tokens, n.token)
		for _, c := range n.children {
			tokens = c.appendTokens(tokens)
		}
		return tokens
	}
	for _, c := range n.children {
		tokens = c.appendTokens(tokens)
	}
	return append(tokens, n.token)
}

// withMem wraps reference subexpression with the mem token announcing its length.
func withMem(root *node) *node {
	length := root.size()
	if needsMemFunc(root) {
		return branch(&ptg.MemFunc{Length: length}, root)
	}
	return branch(&ptg.MemArea{Length: length}, root)
}

// needsMemFunc tells if reference subexpression contains function call, defined name or 3-D reference.
func needsMemFunc(n *node) bool {
	switch n.token.(type) {
	case *ptg.Func, *ptg.FuncVar, *ptg.Ref3D, *ptg.Area3D, *ptg.Name, *ptg.NameX:
		return true
	case ptg.Operator, ptg.Paren:
		for _, c := range n.children {
			if needsMemFunc(c) {
				return true
			}
		}
	}
	return false
}

// isValidRangeOperand tells if the subexpression may appear on either side of reference operators.
func isValidRangeOperand(n *node, functions functionLookup) bool {
	switch t := n.token.(type) {
	case *ptg.Ref, *ptg.Area, *ptg.Ref3D, *ptg.Area3D, *ptg.Name, *ptg.NameX, *ptg.RefErr, *ptg.AreaErr,
		*ptg.MemArea, *ptg.MemFunc, *ptg.MemErr:
		return true
	case *ptg.Func:
		m, exists := functions.ByIndex(t.Index)
		return exists && m.ReturnClass == ptg.ClassRef
	case *ptg.FuncVar:
		m, exists := functions.ByIndex(t.Index)
		return exists && m.ReturnClass == ptg.ClassRef
	case ptg.Operator:
		return !t.IsValueOperator()
	case ptg.Paren:
		return isValidRangeOperand(n.children[0], functions)
	case *ptg.Err:
		return t.Code == value.ErrorRef
	default:
		return false
	}
}

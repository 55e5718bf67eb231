package parser

import (
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/ptg"
)

type functionLookup interface {
	ByIndex(index int) (*function.Metadata, bool)
}

// classTransformer assigns operand classes to the tokens of the parse tree. Class tells if the operand
// is consumed as reference, as single value or as array.
type classTransformer struct {
	functions functionLookup
}

func (ct classTransformer) transformFormula(root *node, formulaType FormulaType) error {
	var class ptg.Class
	switch formulaType {
	case CellFormula:
		class = ptg.ClassValue
	case ArrayFormula:
		class = ptg.ClassArray
	case NamedRangeFormula:
		class = ptg.ClassRef
	default:
		return errors.Errorf("unknown formula type %d", formulaType)
	}
	return ct.transformNode(root, class, false)
}

func (ct classTransformer) transformNode(n *node, desired ptg.Class, callerForceArray bool) error {
	if ct.isSimpleValueFunction(n.token) {
		localForceArray := desired == ptg.ClassArray
		for _, c := range n.children {
			if err := ct.transformNode(c, desired, localForceArray); err != nil {
				return err
			}
		}
		class := ptg.ClassValue
		if callerForceArray || desired == ptg.ClassArray {
			class = ptg.ClassArray
		}
		n.token.(ptg.Classed).SetOperandClass(class)
		return nil
	}

	if attr, ok := n.token.(*ptg.Attr); ok && attr.Kind == ptg.AttrSum {
		// The attribute itself carries no class, its argument is classified as the argument of SUM.
		sum := &ptg.FuncVar{Index: sumIndex, NumArgs: 1}
		return ct.transformFunction(sum, n.children, desired, callerForceArray)
	}

	switch t := n.token.(type) {
	case ptg.Operator:
		if t == ptg.OpRange {
			return nil
		}
		return ct.transformChildren(n, desired, callerForceArray)
	case ptg.Paren, *ptg.Attr, *ptg.MemArea, *ptg.MemFunc:
		return ct.transformChildren(n, desired, callerForceArray)
	case *ptg.Func:
		return ct.transformFunction(t, n.children, desired, callerForceArray)
	case *ptg.FuncVar:
		return ct.transformFunction(t, n.children, desired, callerForceArray)
	}

	if len(n.children) > 0 {
		return errors.Errorf("unexpected operands of token %T", n.token)
	}
	if c, ok := n.token.(ptg.Classed); ok {
		c.SetOperandClass(transformClass(c.OperandClass(), desired, callerForceArray))
	}
	return nil
}

func (ct classTransformer) transformChildren(n *node, desired ptg.Class, callerForceArray bool) error {
	local := desired
	if local == ptg.ClassRef {
		local = ptg.ClassValue
	}
	for _, c := range n.children {
		if err := ct.transformNode(c, local, callerForceArray); err != nil {
			return err
		}
	}
	return nil
}

// isSimpleValueFunction detects functions returning value and taking values only.
func (ct classTransformer) isSimpleValueFunction(t ptg.Token) bool {
	index := functionIndex(t)
	if index < 0 {
		return false
	}
	m, exists := ct.functions.ByIndex(index)
	if !exists || m.ReturnClass != ptg.ClassValue {
		return false
	}
	for _, c := range m.ParamClasses {
		if c != ptg.ClassValue {
			return false
		}
	}
	return true
}

//nolint:gocyclo
func (ct classTransformer) transformFunction(f ptg.Classed, children []*node, desired ptg.Class,
	callerForceArray bool,
) error {
	index := functionIndex(f)
	m, exists := ct.functions.ByIndex(index)
	if !exists {
		return errors.Errorf("unknown function index %d", index)
	}

	defaultClass := m.ReturnClass
	var localForceArray bool
	switch {
	case callerForceArray:
		switch defaultClass {
		case ptg.ClassRef:
			if desired == ptg.ClassRef {
				f.SetOperandClass(ptg.ClassRef)
			} else {
				f.SetOperandClass(ptg.ClassArray)
			}
		case ptg.ClassArray:
			f.SetOperandClass(ptg.ClassArray)
		case ptg.ClassValue:
			f.SetOperandClass(ptg.ClassArray)
			localForceArray = true
		}
	case defaultClass == desired:
		f.SetOperandClass(defaultClass)
	case desired == ptg.ClassValue:
		f.SetOperandClass(ptg.ClassValue)
	case desired == ptg.ClassArray:
		switch defaultClass {
		case ptg.ClassRef:
			f.SetOperandClass(ptg.ClassRef)
		case ptg.ClassValue:
			f.SetOperandClass(ptg.ClassArray)
			localForceArray = true
		}
	case desired == ptg.ClassRef:
		switch defaultClass {
		case ptg.ClassArray:
			f.SetOperandClass(ptg.ClassArray)
		case ptg.ClassValue:
			f.SetOperandClass(ptg.ClassValue)
		}
	}

	for i, c := range children {
		if err := ct.transformNode(c, m.ParamClass(i), localForceArray); err != nil {
			return err
		}
	}
	return nil
}

func functionIndex(t ptg.Token) int {
	switch f := t.(type) {
	case *ptg.Func:
		return f.Index
	case *ptg.FuncVar:
		return f.Index
	default:
		return -1
	}
}

func transformClass(current, desired ptg.Class, callerForceArray bool) ptg.Class {
	switch desired {
	case ptg.ClassValue:
		if callerForceArray {
			return ptg.ClassArray
		}
		return ptg.ClassValue
	case ptg.ClassArray:
		return ptg.ClassArray
	default:
		if callerForceArray {
			return ptg.ClassRef
		}
		return current
	}
}

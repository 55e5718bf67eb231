package eval

import (
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

// Listener observes the evaluation cache. It is used by tests and diagnostics.
type Listener interface {
	// OnCacheHit is called when cached value of the cell is used.
	OnCacheHit(loc Loc, v value.Value)

	// OnReadPlainValue is called when value of the plain cell is read for the first time.
	OnReadPlainValue(loc Loc, v value.Value)

	// OnStartEvaluate is called before formula of the cell is evaluated.
	OnStartEvaluate(loc Loc, tokens []ptg.Token)

	// OnEndEvaluate is called after formula of the cell is evaluated.
	OnEndEvaluate(loc Loc, result value.Value)

	// OnClearWholeCache is called when all the cached values are dropped.
	OnClearWholeCache()

	// OnClearCachedValue is called when the cell triggering invalidation is processed. Value is nil if the
	// entry has no value.
	OnClearCachedValue(loc Loc, v value.Value)

	// OnChangeFromBlankValue is called when blank cell gets value or formula. Value is nil for formulas.
	OnChangeFromBlankValue(loc Loc, v value.Value)

	// OnClearDependentCachedValue is called for every formula cleared because its input changed.
	// Depth is the distance from the changed cell.
	OnClearDependentCachedValue(loc Loc, v value.Value, depth int)
}

// BaseListener ignores all the events. Embed it to implement only some of them.
type BaseListener struct{}

// OnCacheHit does nothing.
func (BaseListener) OnCacheHit(Loc, value.Value) {}

// OnReadPlainValue does nothing.
func (BaseListener) OnReadPlainValue(Loc, value.Value) {}

// OnStartEvaluate does nothing.
func (BaseListener) OnStartEvaluate(Loc, []ptg.Token) {}

// OnEndEvaluate does nothing.
func (BaseListener) OnEndEvaluate(Loc, value.Value) {}

// OnClearWholeCache does nothing.
func (BaseListener) OnClearWholeCache() {}

// OnClearCachedValue does nothing.
func (BaseListener) OnClearCachedValue(Loc, value.Value) {}

// OnChangeFromBlankValue does nothing.
func (BaseListener) OnChangeFromBlankValue(Loc, value.Value) {}

// OnClearDependentCachedValue does nothing.
func (BaseListener) OnClearDependentCachedValue(Loc, value.Value, int) {}

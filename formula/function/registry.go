package function

import (
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

// Clock provides current time to volatile functions.
type Clock interface {
	Now() time.Time
}

// WallClock is the clock returning system time.
type WallClock struct{}

// Now returns current time.
func (WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator provides random numbers to RAND.
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library generator.
type DefaultRandomGenerator struct{}

// Float64 returns number in [0, 1).
func (DefaultRandomGenerator) Float64() float64 {
	return rand.Float64() //nolint:gosec
}

// Context is passed to the function being called.
type Context struct {
	// Row and Col are the coordinates of the cell being evaluated, used by implicit intersection.
	Row   int
	Col   int
	Clock Clock
	Rand  RandomGenerator
}

// Impl is the implementation of the function. Arguments are not dereferenced.
type Impl func(ctx *Context, args []value.Value) value.Value

// Metadata describes the function.
type Metadata struct {
	Index        int
	Name         string
	MinArgs      int
	MaxArgs      int
	ReturnClass  ptg.Class
	ParamClasses []ptg.Class
	Volatile     bool
	Impl         Impl
}

// IsFixed tells if function takes fixed number of arguments.
func (m *Metadata) IsFixed() bool {
	return m.MinArgs == m.MaxArgs
}

// ParamClass returns operand class expected for argument. The last class repeats.
func (m *Metadata) ParamClass(i int) ptg.Class {
	if len(m.ParamClasses) == 0 {
		return ptg.ClassValue
	}
	if i >= len(m.ParamClasses) {
		return m.ParamClasses[len(m.ParamClasses)-1]
	}
	return m.ParamClasses[i]
}

// Call runs the function. Wrong number of arguments gives #VALUE!.
func (m *Metadata) Call(ctx *Context, args []value.Value) value.Value {
	if len(args) < m.MinArgs || len(args) > m.MaxArgs || m.Impl == nil {
		return value.ErrorValue
	}
	return m.Impl(ctx, args)
}

// External is the metadata of the call to user defined function.
var External = &Metadata{
	Index:        ptg.ExternalFunctionIndex,
	Name:         "#external#",
	MinArgs:      1,
	MaxArgs:      30,
	ReturnClass:  ptg.ClassValue,
	ParamClasses: []ptg.Class{ptg.ClassRef},
}

// Registry holds functions available to the parser and the evaluator.
type Registry struct {
	byName  map[string]*Metadata
	byIndex map[int]*Metadata
	udfs    map[string]Impl
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  map[string]*Metadata{},
		byIndex: map[int]*Metadata{},
		udfs:    map[string]Impl{},
	}
}

// Register adds builtin function.
func (r *Registry) Register(m Metadata) error {
	name := strings.ToUpper(m.Name)
	if m.Index == ptg.ExternalFunctionIndex {
		return errors.Errorf("index %d is reserved for external functions", m.Index)
	}
	if _, exists := r.byName[name]; exists {
		return errors.Errorf("function %s is already registered", name)
	}
	if _, exists := r.byIndex[m.Index]; exists {
		return errors.Errorf("function index %d is already registered", m.Index)
	}
	if m.MinArgs > m.MaxArgs {
		return errors.Errorf("function %s accepts at least %d but at most %d arguments", name, m.MinArgs, m.MaxArgs)
	}
	m.Name = name
	r.byName[name] = &m
	r.byIndex[m.Index] = &m
	return nil
}

// RegisterUDF adds user defined function. It is called through the external function index.
func (r *Registry) RegisterUDF(name string, impl Impl) error {
	name = strings.ToUpper(name)
	if _, exists := r.byName[name]; exists {
		return errors.Errorf("function %s is a builtin", name)
	}
	if _, exists := r.udfs[name]; exists {
		return errors.Errorf("user defined function %s is already registered", name)
	}
	r.udfs[name] = impl
	return nil
}

// Lookup returns builtin function by name.
func (r *Registry) Lookup(name string) (*Metadata, bool) {
	m, exists := r.byName[strings.ToUpper(name)]
	return m, exists
}

// ByIndex returns builtin function by index.
func (r *Registry) ByIndex(index int) (*Metadata, bool) {
	if index == ptg.ExternalFunctionIndex {
		return External, true
	}
	m, exists := r.byIndex[index]
	return m, exists
}

// UDF returns user defined function.
func (r *Registry) UDF(name string) (Impl, bool) {
	impl, exists := r.udfs[strings.ToUpper(name)]
	return impl, exists
}

// FunctionName returns name of the builtin function.
func (r *Registry) FunctionName(index int) (string, bool) {
	m, exists := r.ByIndex(index)
	if !exists {
		return "", false
	}
	return m.Name, true
}

// FixedArgs returns number of arguments of fixed-arity function.
func (r *Registry) FixedArgs(index int) (int, bool) {
	m, exists := r.ByIndex(index)
	if !exists || !m.IsFixed() {
		return 0, false
	}
	return m.MinArgs, true
}

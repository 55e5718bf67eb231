package eval

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateWorkbook is returned if the same workbook name or evaluator is used twice.
	ErrDuplicateWorkbook = errors.New("duplicate workbook")

	// ErrWorkbookNotFound is returned if there is no workbook of the name in the environment.
	ErrWorkbookNotFound = errors.New("workbook not found")
)

// Environment links evaluators of workbooks referencing each other. Evaluators in the environment
// share the cache, so change in one workbook invalidates dependent formulas in others.
type Environment struct {
	names      []string
	evaluators []*Evaluator
	byName     map[string]*Evaluator
	unhooked   bool
}

// Setup links evaluators into new environment. Names are the workbook names used by external references,
// they are compared case-insensitively. Evaluators which were part of other environments are detached
// from them first, together with all the other members of those environments.
func Setup(names []string, evaluators []*Evaluator) (*Environment, error) {
	if len(names) != len(evaluators) {
		return nil, errors.Errorf("number of names (%d) does not match number of evaluators (%d)",
			len(names), len(evaluators))
	}
	if len(names) == 0 {
		return nil, errors.New("at least one workbook is required")
	}

	env := &Environment{
		names:      names,
		evaluators: evaluators,
		byName:     make(map[string]*Evaluator, len(names)),
	}
	seen := make(map[*Evaluator]string, len(evaluators))
	for i, name := range names {
		key := strings.ToUpper(name)
		if _, exists := env.byName[key]; exists {
			return nil, errors.Wrapf(ErrDuplicateWorkbook, "workbook name %q", name)
		}
		ev := evaluators[i]
		if prev, exists := seen[ev]; exists {
			return nil, errors.Wrapf(ErrDuplicateWorkbook, "evaluator registered under names %q and %q",
				prev, name)
		}
		if ev.listener != evaluators[0].listener {
			return nil, errors.Errorf("evaluator of workbook %q uses different listener", name)
		}
		seen[ev] = name
		env.byName[key] = ev
	}

	for _, ev := range evaluators {
		if ev.env != nil {
			ev.env.Unhook()
		}
	}
	c := newCache(evaluators[0].listener)
	for i, ev := range evaluators {
		ev.attach(env, c, i)
	}
	return env, nil
}

// Evaluator returns evaluator of the workbook.
func (env *Environment) Evaluator(name string) (*Evaluator, error) {
	if env.unhooked {
		return nil, errors.Wrapf(ErrWorkbookNotFound, "environment has been unhooked, requested %q", name)
	}
	ev, exists := env.byName[strings.ToUpper(name)]
	if !exists {
		names := append([]string{}, env.names...)
		sort.Strings(names)
		return nil, errors.Wrapf(ErrWorkbookNotFound, "requested %q, available: %s", name,
			strings.Join(names, ", "))
	}
	return ev, nil
}

// Unhook detaches all the evaluators. Each of them gets its own empty cache.
func (env *Environment) Unhook() {
	if env.unhooked {
		return
	}
	env.unhooked = true
	for _, ev := range env.evaluators {
		if ev.env == env {
			ev.detach()
		}
	}
}

package eval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/book"
	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/value"
)

type collaboration struct {
	main     *book.Workbook
	other    *book.Workbook
	evMain   *eval.Evaluator
	evOther  *eval.Evaluator
	listener *logListener
}

func newCollaboration(t *testing.T) collaboration {
	requireT := require.New(t)

	main := book.New(book.DefaultConfig())
	_, err := main.AddSheet("Sheet1")
	requireT.NoError(err)
	requireT.NoError(main.SetFormula(0, 0, 0, "[other.xls]Data!A1*2"))
	requireT.NoError(main.SetFormula(0, 1, 0, "[missing.xls]Data!A1"))

	other := book.New(book.DefaultConfig())
	_, err = other.AddSheet("Data")
	requireT.NoError(err)
	requireT.NoError(other.SetValue(0, 0, 0, value.Number(21)))

	listener := &logListener{wb: main}
	return collaboration{
		main:     main,
		other:    other,
		evMain:   eval.New(main, eval.Config{Listener: listener}),
		evOther:  eval.New(other, eval.Config{Listener: listener}),
		listener: listener,
	}
}

func TestCollaboratingWorkbooks(t *testing.T) {
	requireT := require.New(t)

	c := newCollaboration(t)
	requireT.Equal(value.ErrorRef, c.evMain.Evaluate(0, 0, 0))

	env, err := eval.Setup([]string{"main.xls", "other.xls"}, []*eval.Evaluator{c.evMain, c.evOther})
	requireT.NoError(err)
	c.listener.take()

	requireT.Equal(value.Number(42), c.evMain.Evaluate(0, 0, 0))
	requireT.Equal([]string{
		"start A1 [other.xls]Data!A1*2",
		"value [1]A1 21",
		"end A1 42",
	}, c.listener.take())

	requireT.NoError(c.other.SetValue(0, 0, 0, value.Number(50)))
	c.evOther.NotifyUpdateCell(0, 0, 0)
	requireT.Equal([]string{"clear [1]A1 50", "clear1 A1 42"}, c.listener.take())
	requireT.Equal(value.Number(100), c.evMain.Evaluate(0, 0, 0))

	requireT.Equal(value.ErrorRef, c.evMain.Evaluate(0, 1, 0))

	ev, err := env.Evaluator("OTHER.XLS")
	requireT.NoError(err)
	requireT.Same(c.evOther, ev)
	_, err = env.Evaluator("nothing.xls")
	requireT.ErrorIs(err, eval.ErrWorkbookNotFound)

	env.Unhook()
	_, err = env.Evaluator("other.xls")
	requireT.ErrorIs(err, eval.ErrWorkbookNotFound)
	requireT.Equal(value.ErrorRef, c.evMain.Evaluate(0, 0, 0))
	requireT.Equal(value.Number(50), c.evOther.Evaluate(0, 0, 0))
}

func TestSharedCacheClear(t *testing.T) {
	requireT := require.New(t)

	c := newCollaboration(t)
	_, err := eval.Setup([]string{"main.xls", "other.xls"}, []*eval.Evaluator{c.evMain, c.evOther})
	requireT.NoError(err)

	requireT.Equal(value.Number(42), c.evMain.Evaluate(0, 0, 0))
	c.listener.take()

	c.evOther.ClearAllCachedResultValues()
	requireT.Equal([]string{"clearAll"}, c.listener.take())
	requireT.Equal(value.Number(42), c.evMain.Evaluate(0, 0, 0))
	requireT.Equal("start A1 [other.xls]Data!A1*2", c.listener.take()[0])
}

func TestSetupReplacesEnvironment(t *testing.T) {
	requireT := require.New(t)

	c := newCollaboration(t)
	first, err := eval.Setup([]string{"other.xls"}, []*eval.Evaluator{c.evOther})
	requireT.NoError(err)

	_, err = eval.Setup([]string{"main.xls", "other.xls"}, []*eval.Evaluator{c.evMain, c.evOther})
	requireT.NoError(err)
	_, err = first.Evaluator("other.xls")
	requireT.ErrorIs(err, eval.ErrWorkbookNotFound)

	requireT.Equal(value.Number(42), c.evMain.Evaluate(0, 0, 0))
}

func TestSetupValidation(t *testing.T) {
	requireT := require.New(t)

	c := newCollaboration(t)

	_, err := eval.Setup([]string{"main.xls", "MAIN.XLS"}, []*eval.Evaluator{c.evMain, c.evOther})
	requireT.ErrorIs(err, eval.ErrDuplicateWorkbook)

	_, err = eval.Setup([]string{"main.xls", "other.xls"}, []*eval.Evaluator{c.evMain, c.evMain})
	requireT.ErrorIs(err, eval.ErrDuplicateWorkbook)

	_, err = eval.Setup([]string{"main.xls"}, []*eval.Evaluator{c.evMain, c.evOther})
	requireT.Error(err)

	_, err = eval.Setup(nil, nil)
	requireT.Error(err)

	silent := eval.New(c.other, eval.Config{})
	_, err = eval.Setup([]string{"main.xls", "other.xls"}, []*eval.Evaluator{c.evMain, silent})
	requireT.Error(err)

	// Failed setup leaves evaluators untouched.
	requireT.Equal(value.ErrorRef, c.evMain.Evaluate(0, 0, 0))
}

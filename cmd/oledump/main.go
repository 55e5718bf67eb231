package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/outofforest/oledoc"
	"github.com/outofforest/oledoc/formula/book"
	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "oledump: %v\n", err)
		return 1
	}
	return 0
}

func rootCmd() *cobra.Command {
	var logPattern string
	var undoLog func()

	root := &cobra.Command{
		Use:   "oledump",
		Short: "Compound document inspection tool",
		Long: `Inspect and rewrite OLE2 compound documents (.xls, .doc, .msg).

Examples:
  oledump list report.xls
  oledump cat report.xls Workbook > workbook.bin
  oledump calc A1=2 A2=3 "B1==A1*A2"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logPattern != "" {
				undoLog = mlog.SetPattern(logPattern)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if undoLog != nil {
				undoLog()
			}
		},
	}
	root.PersistentFlags().StringVar(&logPattern, "mlog", "",
		"Enable logging of source files matching the regular expression")

	root.AddCommand(
		&cobra.Command{
			Use:   "list FILE",
			Short: "Print the directory tree of the compound file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOutput(cmd, func(w io.Writer) error {
					return withFile(args[0], func(f *oledoc.FileSystem) error {
						return list(w, f.Root(), "")
					})
				})
			},
		},
		&cobra.Command{
			Use:   "cat FILE PATH",
			Short: "Write the content of the document to standard output, PATH is slash separated",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOutput(cmd, func(w io.Writer) error {
					return withFile(args[0], func(f *oledoc.FileSystem) error {
						return cat(w, f, args[1])
					})
				})
			},
		},
		&cobra.Command{
			Use:   "check FILE",
			Short: "Verify the block chains of the compound file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOutput(cmd, func(w io.Writer) error {
					return withFile(args[0], func(f *oledoc.FileSystem) error {
						if err := f.CheckIntegrity(); err != nil {
							return err
						}
						_, err := fmt.Fprintln(w, "ok")
						return errors.WithStack(err)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "rewrite FILE OUTPUT",
			Short: "Write linearized copy of the compound file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withFile(args[0], func(f *oledoc.FileSystem) error {
					return rewrite(f, args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "calc CELL=CONTENT...",
			Short: "Evaluate the cells of the single sheet workbook, formulas start with '='",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withOutput(cmd, func(w io.Writer) error {
					return calc(w, args)
				})
			},
		},
	)
	return root
}

func withOutput(cmd *cobra.Command, fn func(w io.Writer) error) error {
	w := bufio.NewWriter(cmd.OutOrStdout())
	if err := fn(w); err != nil {
		return err
	}
	return errors.WithStack(w.Flush())
}

func withFile(path string, fn func(f *oledoc.FileSystem) error) (retErr error) {
	f, err := oledoc.OpenFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); retErr == nil {
			retErr = err
		}
	}()
	return fn(f)
}

func list(w io.Writer, dir *oledoc.DirectoryEntry, prefix string) error {
	entries, err := dir.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := prefix + "/" + e.Name()
		switch entry := e.(type) {
		case *oledoc.DirectoryEntry:
			if _, err := fmt.Fprintf(w, "%s/\n", path); err != nil {
				return errors.WithStack(err)
			}
			if err := list(w, entry, path); err != nil {
				return err
			}
		case *oledoc.DocumentEntry:
			if _, err := fmt.Fprintf(w, "%s\t%d\n", path, entry.Size()); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	return nil
}

func cat(w io.Writer, f *oledoc.FileSystem, path string) error {
	e, err := f.Find(splitPath(path)...)
	if err != nil {
		return err
	}
	doc, ok := e.(*oledoc.DocumentEntry)
	if !ok {
		return errors.Errorf("%q is a directory", path)
	}
	r, err := doc.OpenReadStream()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return errors.WithStack(err)
}

func rewrite(f *oledoc.FileSystem, output string) (retErr error) {
	file, err := os.Create(output)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err := file.Close(); retErr == nil {
			retErr = errors.WithStack(err)
		}
	}()

	w := bufio.NewWriter(file)
	if err := f.Write(w); err != nil {
		return err
	}
	return errors.WithStack(w.Flush())
}

func calc(w io.Writer, cells []string) error {
	wb := book.New(book.DefaultConfig())
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		return err
	}
	for _, c := range cells {
		address, content, ok := strings.Cut(c, "=")
		if !ok {
			return errors.Errorf("cell %q has no content", c)
		}
		ref, ok := ptg.ParseCell(strings.ToUpper(strings.TrimSpace(address)))
		if !ok {
			return errors.Errorf("invalid cell address %q", address)
		}
		if strings.HasPrefix(content, "=") {
			if err := wb.SetFormula(0, ref.Row, ref.Col, content); err != nil {
				return errors.WithMessagef(err, "cell %s", ref)
			}
			continue
		}
		if err := wb.SetValue(0, ref.Row, ref.Col, literal(content)); err != nil {
			return err
		}
	}

	for _, r := range wb.EvaluateAll(eval.New(wb, eval.Config{})) {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", ptg.CellName(r.Row, r.Col), value.Format(r.Value)); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func literal(text string) value.Value {
	if text == "" {
		return value.Blank{}
	}
	if n, ok := value.ParseNumber(text); ok {
		return value.Number(n)
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return value.Bool(true)
	case "FALSE":
		return value.Bool(false)
	}
	if e, ok := value.ParseError(text); ok {
		return e
	}
	return value.String(text)
}

func splitPath(path string) []string {
	var names []string
	for _, name := range strings.Split(path, "/") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-renderbridge/pkg/safety"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

type lintOptions struct {
	strict bool
	quiet  bool
}

func lintCmd(root *rootOptions) *cobra.Command {
	opts := &lintOptions{}

	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Report trusted call sites and compile errors",
		Long: `Compile templates and list every trusted URL call with its verdict.

Without arguments every template under the configured directories is
checked. Compile errors fail the run; with --strict so do calls that
will be escaped at render time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			files := args
			if len(files) == 0 {
				files, err = templateFiles(existingDirs(a.cfg.Templates.Dirs, a.logger), a.cfg.Templates.Extension)
				if err != nil {
					return err
				}
			}
			report, err := lintFiles(a.engine.Compiler(), files)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout(), opts.quiet)

			if report.failed > 0 {
				return fmt.Errorf("%d template(s) failed to compile", report.failed)
			}
			if opts.strict && report.unsafe > 0 {
				return fmt.Errorf("%d trusted call(s) will be escaped", report.unsafe)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when a trusted call is classified unsafe")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print unsafe calls and errors")

	return cmd
}

type lintEntry struct {
	file  string
	sites []pongo.Site
	err   error
}

type lintReport struct {
	entries []lintEntry
	failed  int
	unsafe  int
}

func lintFiles(compiler *pongo.Compiler, files []string) (lintReport, error) {
	var report lintReport
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return lintReport{}, fmt.Errorf("read %s: %w", file, err)
		}
		entry := lintEntry{file: file}
		if _, err := compiler.Compile(string(src)); err != nil {
			entry.err = err
			report.failed++
		} else if entry.sites, err = compiler.Sites(string(src)); err != nil {
			entry.err = err
			report.failed++
		}
		for _, site := range entry.sites {
			if site.Verdict == safety.Unsafe {
				report.unsafe++
			}
		}
		report.entries = append(report.entries, entry)
	}
	return report, nil
}

func (r lintReport) print(w io.Writer, quiet bool) {
	for _, entry := range r.entries {
		if entry.err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", entry.file, entry.err)
			continue
		}
		for _, site := range entry.sites {
			if quiet && site.Verdict != safety.Unsafe {
				continue
			}
			fmt.Fprintf(w, "%s:%d: %s %s\n", entry.file, site.Line, site.Verdict, site.Expr)
		}
	}
	if !quiet {
		fmt.Fprintf(w, "%d file(s), %d unsafe call(s), %d error(s)\n", len(r.entries), r.unsafe, r.failed)
	}
}

func templateFiles(dirs []string, ext string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ext) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/template"
)

type renderOptions struct {
	dataFile string
	outFile  string
	inline   bool
	headers  bool
}

func renderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template and print its markup",
		Long: `Render a named template, or template source with --string.

Data is read from a JSON or YAML file. With --headers the cache
metadata bubbled by the render is printed as HTTP headers to stderr.`,
		Example: `  renderbridge render page --data page.yaml
  renderbridge render --string "{{ items|safe_join(', ') }}" --data items.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			data, err := readData(opts.dataFile)
			if err != nil {
				return err
			}

			var result template.Result
			if opts.inline {
				result, err = a.engine.RenderString(cmd.Context(), args[0], data)
			} else {
				result, err = a.engine.RenderTemplate(cmd.Context(), args[0], data)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.outFile != "" {
				f, err := os.Create(opts.outFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", opts.outFile, err)
				}
				defer f.Close()
				out = f
			}
			if _, err := io.WriteString(out, string(result.Markup)); err != nil {
				return err
			}
			if opts.headers {
				printHeaders(cmd.ErrOrStderr(), result.Metadata)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.dataFile, "data", "d", "", "JSON or YAML file with template data")
	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "write markup to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.inline, "string", false, "treat the argument as template source")
	cmd.Flags().BoolVar(&opts.headers, "headers", false, "print cache headers to stderr")

	return cmd
}

// readData decodes a data file. JSON is read by the YAML decoder.
func readData(path string) (map[string]any, error) {
	data := map[string]any{}
	if path == "" {
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func printHeaders(w io.Writer, b cache.Bubbleable) {
	h := make(map[string][]string)
	cache.WriteHeaders(h, b)
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s: %s\n", key, strings.Join(h[key], ", "))
	}
}

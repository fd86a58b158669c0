// Command renderbridge renders, lints and serves templates through the
// safety bridge.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultConfigFile is picked up from the working directory when --config is
// not given.
const defaultConfigFile = "renderbridge.yaml"

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "renderbridge",
		Short: "Render templates with context-aware escaping and cache metadata",
		Long: `renderbridge renders twig-style templates through an escaping bridge.

Every printed value is escaped for its output context unless it is
already safe markup or a call the compile pass classified as safe.
Rendered fragments bubble cache tags, contexts, max-age and asset
attachments up to the response.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default ./"+defaultConfigFile+" when present)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		renderCmd(opts),
		lintCmd(opts),
		serveCmd(opts),
		initCmd(),
		versionCmd(),
	)
	return rootCmd
}

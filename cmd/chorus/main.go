package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "chorus",
		Short:         "Chorus: multi-model agent coordination layer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "chorus.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&opts.fake, "fake", false, "use the in-process fake backend instead of real providers")

	root.AddCommand(
		newServeCmd(&opts),
		newMCPCmd(&opts),
		newCallCmd(&opts),
		newModelsCmd(&opts),
		newCacheCmd(&opts),
		newStatsCmd(&opts),
	)
	return root
}

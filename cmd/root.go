package cmd

import (
	goflag "flag"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rosetta-cardano-check",
	Short: "Construction checks for cardano rosetta endpoints",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// glog registers its flags on the standard library set.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Gridprobe %s

Differential testing for LLM-backed workflows.

Describe a workflow call template and the parameters to sweep in a JSON or
HCL configuration, then let gridprobe generate probing inputs, execute every
parameter combination in a sandbox, and score how much the outputs disagree.

Get started:
  gridprobe run --create-sample config.json  Write a starter configuration
  gridprobe verify <path>                    Validate your configuration
  gridprobe run --config <path>              Run the comparison
  gridprobe runs list                        Browse past runs`, Version)
}

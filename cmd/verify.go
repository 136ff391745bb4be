package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gridprobe/config"
	"gridprobe/grid"
	"gridprobe/synth"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that a configuration is valid",
	Long: `Verify parses and validates a configuration file, expands the parameter
grid, and dry-runs template substitution on the first combination to check
that the call example instantiates cleanly. No LLM calls are made.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := args[0]
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		combos, err := grid.Expand(cfg.Parameters)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error expanding parameter grid: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Task: %s\n", cfg.TaskDescription)
		fmt.Printf("Found %d parameter(s), %d combination(s) per iteration\n", len(cfg.Parameters), len(combos))
		for _, p := range cfg.Parameters {
			fmt.Printf("  - %s (%d options: %v)\n", p.Name, len(p.Options), p.Options)
		}
		fmt.Printf("LLM: %s / %s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Printf("Storage: %s", cfg.Storage.Backend)
		if cfg.Storage.Path != "" {
			fmt.Printf(" (%s)", cfg.Storage.Path)
		}
		fmt.Println()
		fmt.Printf("Budget: %d iteration(s), %ds overall, %ds per execution\n",
			cfg.MaxExamples, cfg.TimeoutSeconds, cfg.ExecutionTimeoutSeconds)

		// Dry-run the deterministic synthesizer against the first grid cell
		// so template problems surface before any tokens are spent.
		sampleInput := map[string]any{}
		code, err := synth.NewTemplateSynthesizer().Synthesize(context.Background(), cfg.CallExample, sampleInput, combos[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error instantiating call example: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Call example instantiates cleanly (%d lines)\n", strings.Count(code, "\n")+1)

		var warnings []string
		if cfg.LLM.APIKey == "" || cfg.LLM.APIKey == "YOUR_API_KEY_HERE" {
			warnings = append(warnings, fmt.Sprintf("no API key in config; %s or --api-key will be needed at run time", cfg.LLM.Provider.EnvVar()))
		}
		if cfg.TimeoutSeconds == 0 {
			warnings = append(warnings, "timeout_seconds is 0: the run will stop before the first iteration")
		}

		if len(warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

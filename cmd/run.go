package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"gridprobe/analyze"
	"gridprobe/compare"
	"gridprobe/config"
	"gridprobe/llm"
	"gridprobe/sandbox"
	"gridprobe/store"
	"gridprobe/streamers"
	"gridprobe/streamers/cli"
	"gridprobe/synth"
	"gridprobe/wsbridge"
)

var (
	runConfigPath   string
	runCreateSample string
	runAPIKey       string
	runMaxExamples  int
	runTimeout      int
	runOutput       string
	runVerbose      bool
	runQuiet        bool
	runLivePort     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workflow parameter comparison",
	Long: `Run iterates the comparison loop: generate an input example, execute the
workflow across every parameter combination in a sandbox, and score how much
the outputs disagree. Results are written as a JSON report.`,
	Run: func(cmd *cobra.Command, args []string) {
		if runCreateSample != "" {
			if err := config.WriteSample(runCreateSample); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating sample configuration: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Sample configuration saved to %s\n", runCreateSample)
			fmt.Println("Please edit the configuration file with your specific workflow details.")
			return
		}

		if runConfigPath == "" {
			fmt.Fprintln(os.Stderr, "Error: either --config or --create-sample is required")
			cmd.Usage()
			os.Exit(1)
		}

		cfg, err := config.LoadAndValidate(runConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration from %s: %v\n", runConfigPath, err)
			os.Exit(1)
		}

		applyOverrides(cmd, cfg)

		if err := cfg.ResolveAPIKey(runAPIKey); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := runComparison(cfg); err != nil {
			os.Exit(1)
		}
	},
}

// applyOverrides layers command-line flags over the loaded config. Only
// flags the user actually set are applied.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-examples") {
		cfg.MaxExamples = runMaxExamples
		if cfg.TargetFindings > cfg.MaxExamples {
			cfg.TargetFindings = cfg.MaxExamples
		}
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSeconds = runTimeout
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputFile = runOutput
	}
	if cmd.Flags().Changed("live-port") {
		cfg.LivePort = runLivePort
	}
	if runVerbose {
		cfg.Verbose = true
	}
	if runQuiet {
		cfg.Verbose = false
	}
}

func runComparison(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level := hclog.Warn
	if cfg.Verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "gridprobe", Level: level})

	provider, closeProvider, err := llm.NewProvider(ctx, string(cfg.LLM.Provider), cfg.LLM.APIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s client: %v\n", cfg.LLM.Provider, err)
		return err
	}
	defer closeProvider()
	tracked := llm.TrackUsage(provider)

	stores, err := store.NewBundle(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history store: %v\n", err)
		return err
	}
	defer stores.Close()

	var progress streamers.CompareHandler = cli.NewCompareHandler(cfg.Verbose)
	if runQuiet {
		progress = streamers.NopCompareHandler{}
	}

	if cfg.LivePort > 0 {
		broadcaster := wsbridge.NewBroadcaster()
		if err := broadcaster.Start(cfg.LivePort); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting live progress server: %v\n", err)
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			broadcaster.Stop(shutdownCtx)
		}()
		progress = streamers.MultiCompareHandler{progress, wsbridge.NewWSCompareHandler(broadcaster)}
	}

	configJSON, _ := json.Marshal(cfg.ToJSON())
	handler := streamers.NewStoringCompareHandler(progress, stores.History, string(configJSON))

	generator := compare.NewLLMInputGenerator(tracked, cfg, logger)
	synthesizer := synth.NewLLMSynthesizer(tracked, cfg.LLM.Model, cfg.LLM.Temperature, cfg.TaskDescription)
	executor := sandbox.NewExecutor(synthesizer, cfg.CallExample,
		time.Duration(cfg.ExecutionTimeoutSeconds)*time.Second, logger)
	judge := analyze.NewLLMJudge(tracked, cfg.LLM.Model, cfg.LLM.Temperature)
	analyzer := analyze.NewAnalyzer(judge, cfg.InconsistencyThreshold, logger)

	orchestrator := compare.NewOrchestrator(cfg, generator, executor, analyzer, handler, tracked, logger)
	report, runErr := orchestrator.Run(ctx)

	// The report is written on both paths so partial results survive a
	// failed or interrupted run.
	if report != nil {
		if err := writeReport(report, cfg.OutputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving results: %v\n", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Println("\nOperation interrupted by user")
		} else {
			fmt.Fprintf(os.Stderr, "\nError during comparison: %v\n", runErr)
		}
		return runErr
	}

	if runQuiet {
		fmt.Printf("Results saved to: %s\n", cfg.OutputFile)
	} else {
		cli.PrintFinalSummary(report, cfg.OutputFile)
	}
	return nil
}

func writeReport(report *compare.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to configuration file (JSON or HCL)")
	runCmd.Flags().StringVar(&runCreateSample, "create-sample", "", "Write a sample configuration to the given path and exit")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "LLM API key (overrides config and environment)")
	runCmd.Flags().IntVar(&runMaxExamples, "max-examples", config.DefaultMaxExamples, "Maximum number of iterations")
	runCmd.Flags().IntVar(&runTimeout, "timeout", config.DefaultTimeoutSeconds, "Overall time budget in seconds")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Path for the JSON report")
	runCmd.Flags().IntVar(&runLivePort, "live-port", 0, "Serve live progress events over WebSocket on this port")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose progress output")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress output")
}

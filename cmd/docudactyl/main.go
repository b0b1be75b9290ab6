package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyperpolymath/docudactyl/internal/config"
	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"

	configFile string
	cliConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docudactyl",
	Short: "Docudactyl - distributed document processing engine",
	Long: `Docudactyl parses a manifest of documents across a worker pool,
runs a configurable battery of analysis stages over each one, and emits
sharded output plus a global run report.

Run "docudactyl run --help" for the full flag surface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every document in the manifest",
	RunE:  runRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docudactyl %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage docudactyl config files",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file seeded from the built-in defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "docudactyl.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefaultConfig(path, configInitForce); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&configFile, "config", "", "optional YAML config file layered under these flags")

	flags.StringVar(&cliConfig.ManifestPath, "manifestPath", "", "path to input manifest")
	flags.StringVar(&cliConfig.OutputDir, "outputDir", "", "root output directory")
	flags.StringVar((*string)(&cliConfig.OutputFormat), "outputFormat", "", "scheme|json|csv")
	flags.IntVar(&cliConfig.ChunkSize, "chunkSize", 0, "work-stealing chunk size")
	flags.IntVar(&cliConfig.MaxRetriesPerDoc, "maxRetriesPerDoc", -1, "retry budget per document")
	flags.Float64Var(&cliConfig.FailureThresholdPct, "failureThresholdPct", -1, "abort threshold percentage")
	flags.IntVar(&cliConfig.ProgressIntervalSec, "progressIntervalSec", 0, "progress reporter period in seconds")
	flags.IntVar(&cliConfig.TimeoutPerDocMs, "timeoutPerDocMs", 0, "straggler threshold in milliseconds")
	flags.StringVar((*string)(&cliConfig.ManifestMode), "manifestMode", "", "shared|broadcast")
	flags.StringVar(&cliConfig.CacheDir, "cacheDir", "", "L1 cache root (empty disables)")
	flags.Int64Var(&cliConfig.CacheSizeMB, "cacheSizeMB", 0, "L1 cache max size per worker, in MB")
	flags.StringVar((*string)(&cliConfig.CacheMode), "cacheMode", "", "off|read|write|readwrite")
	flags.StringVar(&cliConfig.L2Addr, "l2Addr", "", "L2 cache address (empty disables)")
	flags.IntVar(&cliConfig.L2TTLSec, "l2TTLSec", 0, "L2 cache entry TTL in seconds (0 = unlimited)")
	flags.StringVar(&cliConfig.StagesConfig, "stagesConfig", "", "stages preset name, comma list, or 0xHEX bitmask")
	flags.BoolVar(&cliConfig.Resume, "resume", false, "resume from existing checkpoints")
	flags.IntVar(&cliConfig.CheckpointIntervalDocs, "checkpointIntervalDocs", 0, "checkpoint flush cadence")
	flags.IntVar(&cliConfig.WorkerCount, "nl", 0, "worker count")
	flags.StringVar(&cliConfig.DebugAddr, "debugAddr", "", "optional debug/status HTTP address")
	flags.BoolVar(&cliConfig.MergeShards, "mergeShards", false, "merge shard directories after the run")
	flags.BoolVar(&cliConfig.StreamNDJSON, "streamNDJSON", false, "stream one NDJSON row per processed document")
	flags.IntVar(&cliConfig.PrefetchWindow, "prefetchWindow", 0, "I/O prefetcher window size")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd, versionCmd, configCmd)
}

func main() {
	logLevel := os.Getenv("DOCUDACTYL_LOG_LEVEL")
	switch strings.ToLower(logLevel) {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn", "warning":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed: %v", err)
		os.Exit(1)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	if configFile != "" {
		loaded, err := config.LoadYAMLFile(configFile, cfg)
		if err != nil {
			return fmt.Errorf("docudactyl: %w", err)
		}
		cfg = loaded
	}
	cfg = overlayFlags(cfg, cliConfig)

	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationError(errs)
	}

	o, err := orchestrator.New(cfg)
	if err != nil {
		return fmt.Errorf("docudactyl: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := o.Run(ctx)
	if err != nil {
		return fmt.Errorf("docudactyl: %w", err)
	}

	logger.Info("run complete: %d docs, %d successes, %d failures (%.2f%%), %d skipped-resumed, %d skipped-aborted",
		report.TotalDocs, report.TotalSuccesses, report.TotalFailures, report.FailurePct,
		report.TotalSkippedResumed, report.TotalSkippedAborted)
	return nil
}

// overlayFlags layers only the flags the user actually set onto base,
// mirroring the teacher's priority-merge config sources (ConfigLoader in
// internal/config/loader.go) generalized from named sources to "cobra flag
// explicitly set, or not".
func overlayFlags(base config.Config, flagValues config.Config) config.Config {
	set := func(name string) bool { return runCmd.Flags().Changed(name) }

	out := base
	if set("manifestPath") {
		out.ManifestPath = flagValues.ManifestPath
	}
	if set("outputDir") {
		out.OutputDir = flagValues.OutputDir
	}
	if set("outputFormat") {
		out.OutputFormat = flagValues.OutputFormat
	}
	if set("chunkSize") {
		out.ChunkSize = flagValues.ChunkSize
	}
	if set("maxRetriesPerDoc") {
		out.MaxRetriesPerDoc = flagValues.MaxRetriesPerDoc
	}
	if set("failureThresholdPct") {
		out.FailureThresholdPct = flagValues.FailureThresholdPct
	}
	if set("progressIntervalSec") {
		out.ProgressIntervalSec = flagValues.ProgressIntervalSec
	}
	if set("timeoutPerDocMs") {
		out.TimeoutPerDocMs = flagValues.TimeoutPerDocMs
	}
	if set("manifestMode") {
		out.ManifestMode = flagValues.ManifestMode
	}
	if set("cacheDir") {
		out.CacheDir = flagValues.CacheDir
	}
	if set("cacheSizeMB") {
		out.CacheSizeMB = flagValues.CacheSizeMB
	}
	if set("cacheMode") {
		out.CacheMode = flagValues.CacheMode
	}
	if set("l2Addr") {
		out.L2Addr = flagValues.L2Addr
	}
	if set("l2TTLSec") {
		out.L2TTLSec = flagValues.L2TTLSec
	}
	if set("stagesConfig") {
		out.StagesConfig = flagValues.StagesConfig
	}
	if set("resume") {
		out.Resume = flagValues.Resume
	}
	if set("checkpointIntervalDocs") {
		out.CheckpointIntervalDocs = flagValues.CheckpointIntervalDocs
	}
	if set("nl") {
		out.WorkerCount = flagValues.WorkerCount
	}
	if set("debugAddr") {
		out.DebugAddr = flagValues.DebugAddr
	}
	if set("mergeShards") {
		out.MergeShards = flagValues.MergeShards
	}
	if set("streamNDJSON") {
		out.StreamNDJSON = flagValues.StreamNDJSON
	}
	if set("prefetchWindow") {
		out.PrefetchWindow = flagValues.PrefetchWindow
	}
	return out
}

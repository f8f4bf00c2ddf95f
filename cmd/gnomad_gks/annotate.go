package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theferrit32/gnomad-gks/internal/config"
	"github.com/theferrit32/gnomad-gks/internal/naming"
	"github.com/theferrit32/gnomad-gks/internal/pipeline"
	"github.com/theferrit32/gnomad-gks/internal/storage"
)

var annotateCommand = &cobra.Command{
	Use:   "annotate",
	Short: "Run the annotation pipeline for one chromosome/source pair",
	Long: `Runs the streaming pipeline for a single work unit: resolve the stripped-artifact cache, then fetch -> strip -> annotate -> compress -> upload.

This is the in-container entry point of each batch job. Configuration can be loaded from a JSON file using --config; command-line arguments override config file values, and the environment bindings set by the submit command (GNOMAD_SOURCE, GNOMAD_CONTIG, GNOMAD_VERSION, GKS_BUCKET, SEQREPO_ROOT) fill any values still missing.`,
	RunE: runAnnotateCmd,
}

var (
	annotateConfigPath       string
	annotateSource           string
	annotateContig           string
	annotateVersion          string
	annotateBucket           string
	annotateSeqRepoRoot      string
	annotateWorkDir          string
	annotateStaged           bool
	annotateSkipCount        bool
	annotateProgressInterval int
	annotateStripFields      []string
	annotateVerbose          bool
)

func init() {
	annotateCommand.Flags().StringVar(&annotateConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	annotateCommand.Flags().StringVarP(&annotateSource, "source", "s", "", "gnomAD callset: exomes or genomes")
	annotateCommand.Flags().StringVarP(&annotateContig, "contig", "c", "", "Chromosome to process (chr1..chr22, chrX, chrY)")
	annotateCommand.Flags().StringVar(&annotateVersion, "version", "", "gnomAD release version (default 4.1)")
	annotateCommand.Flags().StringVarP(&annotateBucket, "bucket", "b", "", "Output bucket for stripped and annotated artifacts")
	annotateCommand.Flags().StringVar(&annotateSeqRepoRoot, "seqrepo-root", "", "SeqRepo root directory for reference sequence lookups")
	annotateCommand.Flags().StringVar(&annotateWorkDir, "work-dir", "", "Local directory for the stripped intermediate (default: temp dir)")
	annotateCommand.Flags().BoolVar(&annotateStaged, "staged", false, "Write each stage to local disk and produce a tabix index sidecar")
	annotateCommand.Flags().BoolVar(&annotateSkipCount, "skip-count", false, "Skip the record pre-count pass")
	annotateCommand.Flags().IntVar(&annotateProgressInterval, "progress-interval", 0, "Records between annotator progress reports (0 disables)")
	annotateCommand.Flags().StringSliceVar(&annotateStripFields, "strip-fields", nil, "Annotation fields to drop before annotation (default INFO)")
	annotateCommand.Flags().BoolVarP(&annotateVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(annotateCommand)
}

// envDefault returns value, or the named environment variable when value
// is empty. The submit command binds these variables into each job.
func envDefault(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}

func runAnnotateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if annotateConfigPath != "" {
		loadedCfg, err := config.LoadConfig(annotateConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
	}

	// Command-line args take priority; only override if the flag was
	// explicitly set.
	if cmd.Flags().Changed("source") {
		cfg.Source = annotateSource
	}
	if cmd.Flags().Changed("contig") {
		cfg.Contig = annotateContig
	}
	if cmd.Flags().Changed("version") {
		cfg.Version = annotateVersion
	}
	if cmd.Flags().Changed("bucket") {
		cfg.Bucket = annotateBucket
	}
	if cmd.Flags().Changed("seqrepo-root") {
		cfg.SeqRepoRoot = annotateSeqRepoRoot
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir = annotateWorkDir
	}
	if cmd.Flags().Changed("staged") {
		cfg.Staged = annotateStaged
	}
	if cmd.Flags().Changed("skip-count") {
		cfg.SkipCount = annotateSkipCount
	}
	if cmd.Flags().Changed("progress-interval") {
		cfg.ProgressInterval = annotateProgressInterval
	}
	if cmd.Flags().Changed("strip-fields") {
		cfg.StripFields = annotateStripFields
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = annotateVerbose
	}

	// Environment bindings from the job definition fill remaining gaps.
	cfg.Source = envDefault(cfg.Source, "GNOMAD_SOURCE")
	cfg.Contig = envDefault(cfg.Contig, "GNOMAD_CONTIG")
	cfg.Version = envDefault(cfg.Version, "GNOMAD_VERSION")
	cfg.Bucket = envDefault(cfg.Bucket, "GKS_BUCKET")
	cfg.SeqRepoRoot = envDefault(cfg.SeqRepoRoot, "SEQREPO_ROOT")

	if err := cfg.ValidateAnnotate(); err != nil {
		return err
	}

	source, err := naming.ParseSource(cfg.Source)
	if err != nil {
		return err
	}

	store, err := storage.NewClient(ctx)
	if err != nil {
		return err
	}

	result, err := pipeline.RunPipeline(ctx, pipeline.RunOptions{
		Unit:             naming.NewWorkUnit(source, cfg.Contig, cfg.Version),
		Bucket:           cfg.Bucket,
		SeqRepoRoot:      cfg.SeqRepoRoot,
		WorkDir:          cfg.WorkDir,
		StripFields:      cfg.StripFields,
		Staged:           cfg.Staged,
		SkipCount:        cfg.SkipCount,
		ProgressInterval: cfg.ProgressInterval,
		Store:            store,
	})
	if err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Printf("[VERBOSE] run %s finished: %d records, %d stage(s), output %s\n",
			result.RunID, result.RecordCount, len(result.Stages), result.Address)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theferrit32/gnomad-gks/internal/config"
	"github.com/theferrit32/gnomad-gks/internal/jobs"
	"github.com/theferrit32/gnomad-gks/internal/naming"
)

var submitCommand = &cobra.Command{
	Use:   "submit",
	Short: "Create-or-update and execute one annotation job per chromosome",
	Long: `For each requested chromosome, ensures a named Cloud Run job exists with the desired parameters (creating or updating it as needed), then triggers one execution.

Jobs are named vrs-annotate-{source}-{contig}, so re-submitting targets the same jobs instead of creating duplicates. A failure for one chromosome is logged and the batch continues; the exit status reflects whether any submission failed.`,
	RunE: runSubmitCmd,
}

var (
	submitConfigPath       string
	submitSource           string
	submitContigs          []string
	submitVersion          string
	submitBucket           string
	submitSeqRepoRoot      string
	submitProject          string
	submitRegion           string
	submitImage            string
	submitImageTag         string
	submitImageRepo        string
	submitImageVersionFile string
	submitCPU              string
	submitMemory           string
	submitTaskTimeoutHours int
	submitMaxRetries       int
	submitDelaySeconds     int
	submitWait             bool
	submitDryRun           bool
)

func init() {
	submitCommand.Flags().StringVar(&submitConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	submitCommand.Flags().StringVarP(&submitSource, "source", "s", "", "gnomAD callset: exomes or genomes")
	submitCommand.Flags().StringSliceVar(&submitContigs, "contigs", nil, "Chromosomes to submit (default: all of chr1..chr22, chrX, chrY)")
	submitCommand.Flags().StringVar(&submitVersion, "version", "", "gnomAD release version (default 4.1)")
	submitCommand.Flags().StringVarP(&submitBucket, "bucket", "b", "", "Output bucket bound into each job")
	submitCommand.Flags().StringVar(&submitSeqRepoRoot, "seqrepo-root", "", "SeqRepo root directory bound into each job")
	submitCommand.Flags().StringVar(&submitProject, "project", "", "Cloud project hosting the jobs")
	submitCommand.Flags().StringVar(&submitRegion, "region", "", "Cloud region hosting the jobs")
	submitCommand.Flags().StringVar(&submitImage, "image", "", "Full container image reference (overrides --image-tag and the version file)")
	submitCommand.Flags().StringVar(&submitImageTag, "image-tag", "", "Image tag, combined with --image-repo")
	submitCommand.Flags().StringVar(&submitImageRepo, "image-repo", "", "Image repository used with --image-tag or --image-version-file")
	submitCommand.Flags().StringVar(&submitImageVersionFile, "image-version-file", "", "File whose content is the image tag (fallback after --image and --image-tag)")
	submitCommand.Flags().StringVar(&submitCPU, "cpu", "", "CPU limit per job task (default "+jobs.DefaultCPU+")")
	submitCommand.Flags().StringVar(&submitMemory, "memory", "", "Memory limit per job task (default "+jobs.DefaultMemory+")")
	submitCommand.Flags().IntVar(&submitTaskTimeoutHours, "task-timeout-hours", 0, "Task timeout in hours (default 10)")
	submitCommand.Flags().IntVar(&submitMaxRetries, "max-retries", 0, "Maximum task retries (default 1)")
	submitCommand.Flags().IntVar(&submitDelaySeconds, "delay", int(jobs.DefaultDelay.Seconds()), "Seconds to wait between submissions (0 disables throttling)")
	submitCommand.Flags().BoolVar(&submitWait, "wait", false, "Block until each execution reaches a terminal state")
	submitCommand.Flags().BoolVar(&submitDryRun, "dry-run", false, "Trace every action without calling the job platform")

	rootCmd.AddCommand(submitCommand)
}

func runSubmitCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if submitConfigPath != "" {
		loadedCfg, err := config.LoadConfig(submitConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
	}

	if cmd.Flags().Changed("source") {
		cfg.Source = submitSource
	}
	if cmd.Flags().Changed("contigs") {
		cfg.Contigs = submitContigs
	}
	if cmd.Flags().Changed("version") {
		cfg.Version = submitVersion
	}
	if cmd.Flags().Changed("bucket") {
		cfg.Bucket = submitBucket
	}
	if cmd.Flags().Changed("seqrepo-root") {
		cfg.SeqRepoRoot = submitSeqRepoRoot
	}
	if cmd.Flags().Changed("project") {
		cfg.Project = submitProject
	}
	if cmd.Flags().Changed("region") {
		cfg.Region = submitRegion
	}
	if cmd.Flags().Changed("image") {
		cfg.Image = submitImage
	}
	if cmd.Flags().Changed("image-tag") {
		cfg.ImageTag = submitImageTag
	}
	if cmd.Flags().Changed("image-repo") {
		cfg.ImageRepo = submitImageRepo
	}
	if cmd.Flags().Changed("image-version-file") {
		cfg.ImageVersionFile = submitImageVersionFile
	}
	if cmd.Flags().Changed("cpu") {
		cfg.CPU = submitCPU
	}
	if cmd.Flags().Changed("memory") {
		cfg.Memory = submitMemory
	}
	if cmd.Flags().Changed("task-timeout-hours") {
		cfg.TaskTimeoutHours = submitTaskTimeoutHours
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = submitMaxRetries
	}
	// The flag default keeps throttling on unless the config file or an
	// explicit --delay=0 turns it off.
	if cmd.Flags().Changed("delay") || cfg.DelaySeconds == 0 {
		cfg.DelaySeconds = submitDelaySeconds
	}
	if cmd.Flags().Changed("wait") {
		cfg.Wait = submitWait
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = submitDryRun
	}

	if err := cfg.ValidateSubmit(); err != nil {
		return err
	}

	source, err := naming.ParseSource(cfg.Source)
	if err != nil {
		return err
	}

	// Resolve the image once, up front: an unresolvable image aborts the
	// whole run before anything is submitted.
	image, err := jobs.ResolveImage(jobs.ImageSelection{
		Image:       cfg.Image,
		Tag:         cfg.ImageTag,
		VersionFile: cfg.ImageVersionFile,
		Repo:        cfg.ImageRepo,
	})
	if err != nil {
		return err
	}

	units := buildUnits(source, cfg.Contigs, cfg.Version)

	var platform jobs.Platform
	if !cfg.DryRun {
		cloudRun, err := jobs.NewCloudRun(ctx, cfg.Project, cfg.Region)
		if err != nil {
			return err
		}
		platform = cloudRun
	}

	controller := jobs.NewController(platform, jobs.SubmitOptions{
		Units:       units,
		Image:       image,
		Bucket:      cfg.Bucket,
		SeqRepoRoot: cfg.SeqRepoRoot,
		CPU:         cfg.CPU,
		Memory:      cfg.Memory,
		TaskTimeout: time.Duration(cfg.TaskTimeoutHours) * time.Hour,
		MaxRetries:  int64(cfg.MaxRetries),
		Delay:       time.Duration(cfg.DelaySeconds) * time.Second,
		Wait:        cfg.Wait,
		DryRun:      cfg.DryRun,
	})

	summary := controller.Submit(ctx)
	if summary.AnyFailed() {
		return fmt.Errorf("%d of %d submissions failed", summary.Failed, len(units))
	}
	return nil
}

// buildUnits expands the configured contig list (default: the full
// canonical set, in canonical order) into work units.
func buildUnits(source naming.Source, contigs []string, version string) []naming.WorkUnit {
	if len(contigs) == 0 {
		contigs = naming.CanonicalContigs()
	}
	units := make([]naming.WorkUnit, 0, len(contigs))
	for _, contig := range contigs {
		units = append(units, naming.NewWorkUnit(source, contig, version))
	}
	return units
}

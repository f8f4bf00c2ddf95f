// Package pipeline executes the per-work-unit annotation pipeline:
// raw source → strip → annotate → compress → object store, wired as
// concurrent external processes connected by pipes so no full-size
// artifact is ever buffered locally.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theferrit32/gnomad-gks/internal/cache"
	"github.com/theferrit32/gnomad-gks/internal/fetch"
	"github.com/theferrit32/gnomad-gks/internal/naming"
	"github.com/theferrit32/gnomad-gks/internal/observability"
	"github.com/theferrit32/gnomad-gks/internal/storage"
)

// DefaultStripFields is what the strip stage drops before annotation.
// Removing the whole INFO column leaves positional/allele data only.
var DefaultStripFields = []string{"INFO"}

// RunOptions holds configuration for one pipeline execution.
type RunOptions struct {
	Unit        naming.WorkUnit
	Bucket      string
	SeqRepoRoot string

	// WorkDir holds the stripped intermediate; a temp dir is created when
	// empty.
	WorkDir string
	// StripFields are the annotation fields dropped by the strip stage.
	StripFields []string
	// Staged selects the local-disk topology: every stage writes a full
	// file, and the final artifact gets a tabix index sidecar.
	Staged bool
	// SkipCount disables the record pre-count.
	SkipCount bool
	// ProgressInterval is forwarded to the annotator (records between
	// progress reports); 0 disables it.
	ProgressInterval int

	// Store is the object store for cache probes and uploads.
	Store storage.ObjectStore
	// Tools overrides external program names; zero value means defaults.
	Tools Toolchain
	// SourceURL overrides the raw release URL, mainly for tests.
	SourceURL string
	// FetchOptions overrides HTTP fetch behavior, mainly for tests.
	FetchOptions *fetch.Options
	// Out receives progress output; defaults to os.Stdout.
	Out io.Writer
}

// RunResult is the ephemeral state of one pipeline execution. It lives in
// logs and process exit codes only, never in storage.
type RunResult struct {
	RunID           uuid.UUID
	Unit            naming.WorkUnit
	CacheHit        bool
	CacheConvention string
	// ProducedLocally is true when the stripped intermediate was computed
	// this run (and therefore uploaded to the shared cache).
	ProducedLocally bool
	// RecordCount is the pre-pass record total, or -1 when not counted.
	RecordCount int64
	Stages      []StageTiming
	// OutputBytes is the stored size of the final artifact.
	OutputBytes int64
	// Address is the gs:// URL of the final artifact.
	Address string
	Elapsed time.Duration
}

// RunPipeline executes the full pipeline for one work unit.
func RunPipeline(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("pipeline error: no object store configured")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("pipeline error: no bucket configured")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if len(opts.StripFields) == 0 {
		opts.StripFields = DefaultStripFields
	}
	if (opts.Tools == Toolchain{}) {
		opts.Tools = DefaultToolchain()
	}

	workDir := opts.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "gnomad-gks-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	printer := observability.NewPrinter(opts.Out)
	started := time.Now()
	result := &RunResult{
		RunID:       uuid.New(),
		Unit:        opts.Unit,
		RecordCount: -1,
		Address:     naming.GSURL(opts.Bucket, opts.Unit.AnnotatedKey()),
	}

	// Step 1: resolve the stripped-intermediate cache.
	fmt.Fprintf(opts.Out, "Step 1/4: Resolving stripped-artifact cache for %s...\n", opts.Unit)
	resolver := cache.NewResolver(opts.Store, opts.Bucket)
	resolution, err := resolver.Resolve(ctx, opts.Unit)
	if err != nil {
		return nil, err
	}
	result.CacheHit = resolution.Hit
	result.CacheConvention = resolution.Convention
	result.ProducedLocally = !resolution.Hit

	strippedPath := filepath.Join(workDir, opts.Unit.Basename()+".stripped.vcf.bgz")

	// Step 2: materialize the stripped intermediate.
	if resolution.Hit {
		fmt.Fprintf(opts.Out, "Step 2/4: Cache hit (%s convention), fetching %s...\n",
			resolution.Convention, naming.GSURL(opts.Bucket, resolution.Key))
		timing, err := timed("cache-fetch", func() error {
			_, err := resolver.Fetch(ctx, resolution, strippedPath)
			return err
		})
		result.Stages = append(result.Stages, timing)
		if err != nil {
			printer.StageFailed(timing.Name, timing.Elapsed, err)
			return nil, err
		}
		printer.StageDone(timing.Name, timing.Elapsed, fileSize(strippedPath))
	} else {
		fmt.Fprintf(opts.Out, "Step 2/4: Cache miss, streaming raw source through strip...\n")
		if err := produceStripped(ctx, &opts, strippedPath, printer, result); err != nil {
			return nil, err
		}

		// Freshly produced, so publish it to the shared cache. A cache-hit
		// run must never re-upload.
		timing, err := timed("cache-upload", func() error {
			f, err := os.Open(strippedPath)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = opts.Store.Upload(ctx, opts.Bucket, opts.Unit.StrippedKey(), f)
			return err
		})
		result.Stages = append(result.Stages, timing)
		if err != nil {
			printer.StageFailed(timing.Name, timing.Elapsed, err)
			return nil, fmt.Errorf("failed to upload stripped intermediate: %w", err)
		}
		printer.StageDone(timing.Name, timing.Elapsed, fileSize(strippedPath))
	}

	// Step 3: optional record pre-count, for progress totals only.
	if !opts.SkipCount {
		if count, err := CountRecordsInFile(strippedPath); err != nil {
			fmt.Fprintf(opts.Out, "Warning: record count failed (continuing): %v\n", err)
		} else {
			result.RecordCount = count
			fmt.Fprintf(opts.Out, "Step 3/4: Counted %d records to annotate\n", count)
		}
	}

	// Step 4: annotate, compress, and upload.
	fmt.Fprintf(opts.Out, "Step 4/4: Annotating and uploading %s...\n", result.Address)
	if opts.Staged {
		err = runStagedTopology(ctx, &opts, strippedPath, printer, result)
	} else {
		err = runStreamedTopology(ctx, &opts, strippedPath, printer, result)
	}
	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	cacheStatus := "freshly produced"
	if result.CacheHit {
		cacheStatus = fmt.Sprintf("from cache (%s)", result.CacheConvention)
	}
	printer.RunSummary(opts.Unit.String(), cacheStatus, result.Address, result.Elapsed)
	return result, nil
}

// produceStripped derives the stripped intermediate from the raw source,
// streaming the multi-gigabyte download straight into the strip tool so
// only the (much smaller) stripped output touches disk.
func produceStripped(ctx context.Context, opts *RunOptions, strippedPath string, printer *observability.Printer, result *RunResult) error {
	sourceURL := opts.SourceURL
	if sourceURL == "" {
		sourceURL = opts.Unit.ReleaseURL()
	}

	body, _, err := fetch.Stream(ctx, sourceURL, opts.FetchOptions)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(strippedPath)
	if err != nil {
		return fmt.Errorf("failed to create stripped output file: %w", err)
	}

	timings, chainErr := RunChain(ctx, []Stage{opts.Tools.StripStage(opts.StripFields)}, body, out)
	result.Stages = append(result.Stages, timings...)
	if closeErr := out.Close(); chainErr == nil && closeErr != nil {
		chainErr = closeErr
	}
	if chainErr != nil {
		for _, timing := range timings {
			printer.StageFailed(timing.Name, timing.Elapsed, chainErr)
		}
		// Do not leave a truncated intermediate where a retry could
		// mistake it for a complete one.
		_ = os.Remove(strippedPath)
		return chainErr
	}
	for _, timing := range timings {
		printer.StageDone(timing.Name, timing.Elapsed, fileSize(strippedPath))
	}
	return nil
}

// runStreamedTopology pipes annotate → compress directly into a streaming
// upload. The store commits the object only when the upload completes, so
// a stage failure leaves nothing at the final address.
func runStreamedTopology(ctx context.Context, opts *RunOptions, strippedPath string, printer *observability.Printer, result *RunResult) error {
	in, err := os.Open(strippedPath)
	if err != nil {
		return fmt.Errorf("failed to open stripped intermediate: %w", err)
	}
	defer in.Close()

	stages := []Stage{
		opts.Tools.AnnotateStage(opts.SeqRepoRoot, opts.ProgressInterval),
		opts.Tools.CompressStage(),
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	uploadStart := time.Now()
	var uploaded int64
	var uploadErr error
	g.Go(func() error {
		uploaded, uploadErr = opts.Store.Upload(gctx, opts.Bucket, opts.Unit.AnnotatedKey(), pr)
		if uploadErr != nil {
			// Unblock the chain writing into the pipe.
			pr.CloseWithError(uploadErr)
			return uploadErr
		}
		return nil
	})

	var timings []StageTiming
	var chainErr error
	g.Go(func() error {
		timings, chainErr = RunChain(gctx, stages, in, pw)
		// Propagate chain failure to the uploader; a clean close signals
		// end-of-stream.
		pw.CloseWithError(chainErr)
		return chainErr
	})

	err = g.Wait()
	result.Stages = append(result.Stages, timings...)
	uploadTiming := StageTiming{Name: "upload", Elapsed: time.Since(uploadStart)}
	result.Stages = append(result.Stages, uploadTiming)
	if err != nil {
		// A failed chain cancels the upload too; report the root cause.
		if chainErr != nil {
			err = chainErr
		}
		printer.StageFailed("upload", uploadTiming.Elapsed, err)
		return err
	}

	for _, timing := range timings {
		printer.StageDone(timing.Name, timing.Elapsed, -1)
	}
	printer.StageDone("upload", uploadTiming.Elapsed, uploaded)
	result.OutputBytes = uploaded
	return nil
}

// runStagedTopology writes each stage's output to local disk before the
// next starts, then indexes the final artifact with tabix and uploads both
// the artifact and its index sidecar. Used when local disk is generous and
// a random-access index is wanted; the annotator cannot produce one from a
// stream.
func runStagedTopology(ctx context.Context, opts *RunOptions, strippedPath string, printer *observability.Printer, result *RunResult) error {
	workDir := filepath.Dir(strippedPath)
	annotatedPath := filepath.Join(workDir, opts.Unit.Basename()+".VRS.vcf")
	finalPath := filepath.Join(workDir, opts.Unit.Basename()+".VRS.vcf.bgz")

	steps := []struct {
		stage   Stage
		in, out string
	}{
		{opts.Tools.AnnotateStage(opts.SeqRepoRoot, opts.ProgressInterval), strippedPath, annotatedPath},
		{opts.Tools.CompressStage(), annotatedPath, finalPath},
	}
	for _, step := range steps {
		timing, err := runFileStage(ctx, step.stage, step.in, step.out)
		result.Stages = append(result.Stages, timing)
		if err != nil {
			printer.StageFailed(timing.Name, timing.Elapsed, err)
			return err
		}
		printer.StageDone(timing.Name, timing.Elapsed, fileSize(step.out))
	}

	program, args := opts.Tools.IndexArgs(finalPath)
	timing, err := RunCommand(ctx, "index", program, args...)
	result.Stages = append(result.Stages, timing)
	if err != nil {
		printer.StageFailed(timing.Name, timing.Elapsed, err)
		return err
	}
	printer.StageDone(timing.Name, timing.Elapsed, fileSize(finalPath+".tbi"))

	uploads := []struct {
		name string
		path string
		key  string
	}{
		{"upload", finalPath, opts.Unit.AnnotatedKey()},
		{"index-upload", finalPath + ".tbi", opts.Unit.IndexKey()},
	}
	for _, up := range uploads {
		var n int64
		timing, err := timed(up.name, func() error {
			f, err := os.Open(up.path)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err = opts.Store.Upload(ctx, opts.Bucket, up.key, f)
			return err
		})
		result.Stages = append(result.Stages, timing)
		if err != nil {
			printer.StageFailed(timing.Name, timing.Elapsed, err)
			return err
		}
		printer.StageDone(timing.Name, timing.Elapsed, n)
		if up.name == "upload" {
			result.OutputBytes = n
		}
	}
	return nil
}

// runFileStage runs one stage with file input and file output.
func runFileStage(ctx context.Context, stage Stage, inPath, outPath string) (StageTiming, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return StageTiming{Name: stage.Name}, fmt.Errorf("failed to open %s input: %w", stage.Name, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return StageTiming{Name: stage.Name}, fmt.Errorf("failed to create %s output: %w", stage.Name, err)
	}

	timings, chainErr := RunChain(ctx, []Stage{stage}, in, out)
	if closeErr := out.Close(); chainErr == nil && closeErr != nil {
		chainErr = closeErr
	}
	timing := StageTiming{Name: stage.Name}
	if len(timings) > 0 {
		timing = timings[0]
	}
	if chainErr != nil {
		_ = os.Remove(outPath)
		return timing, chainErr
	}
	return timing, nil
}

// timed measures one non-chain step as a stage timing.
func timed(name string, fn func() error) (StageTiming, error) {
	started := time.Now()
	err := fn()
	return StageTiming{Name: name, Elapsed: time.Since(started)}, err
}

// fileSize returns the size of path, or -1 when unknown.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

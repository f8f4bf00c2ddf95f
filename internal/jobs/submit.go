package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/theferrit32/gnomad-gks/internal/naming"
	"github.com/theferrit32/gnomad-gks/internal/observability"
)

// Default job resource shape and policies. gnomAD genomes chromosomes are
// the sizing driver; smaller contigs simply finish earlier.
const (
	DefaultCPU         = "4"
	DefaultMemory      = "16Gi"
	DefaultTaskTimeout = 10 * time.Hour
	DefaultMaxRetries  = 1
	DefaultDelay       = 2 * time.Second
)

// SubmitOptions configures one controller run over a set of work units.
type SubmitOptions struct {
	Units []naming.WorkUnit
	// Image is the already-resolved container reference (see ResolveImage).
	Image       string
	Bucket      string
	SeqRepoRoot string

	CPU         string
	Memory      string
	TaskTimeout time.Duration
	MaxRetries  int64

	// Delay is inserted between successive submissions to avoid hammering
	// the platform's control plane; zero disables throttling.
	Delay time.Duration
	// Wait blocks on each execution reaching a terminal state before
	// moving to the next unit.
	Wait bool
	// DryRun replaces every platform call with a trace of what would
	// happen.
	DryRun bool

	// Out receives progress output; defaults to os.Stdout.
	Out io.Writer
}

// UnitOutcome records what happened to one work unit's submission.
type UnitOutcome struct {
	Unit    naming.WorkUnit
	JobName string
	// Action is "create", "update", or "plan" (dry-run).
	Action string
	Err    error
}

// Summary aggregates a controller run. Any failed unit makes the overall
// run report failure, but never stops the remaining units.
type Summary struct {
	Outcomes  []UnitOutcome
	Submitted int
	Failed    int
	Elapsed   time.Duration
}

// AnyFailed reports whether at least one unit failed.
func (s *Summary) AnyFailed() bool {
	return s.Failed > 0
}

// Controller performs the create-or-update-then-execute sequence for each
// work unit, sequentially and with throttling.
type Controller struct {
	platform Platform
	opts     SubmitOptions
}

// NewController builds a controller. platform may be nil only in dry-run
// mode.
func NewController(platform Platform, opts SubmitOptions) *Controller {
	if opts.CPU == "" {
		opts.CPU = DefaultCPU
	}
	if opts.Memory == "" {
		opts.Memory = DefaultMemory
	}
	if opts.TaskTimeout == 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Controller{platform: platform, opts: opts}
}

// definition derives the job parameters for one work unit. Labels carry
// the source and contig for later filtering; env bindings tell the
// in-container pipeline what to process.
func (c *Controller) definition(unit naming.WorkUnit) Definition {
	return Definition{
		Image:       c.opts.Image,
		CPU:         c.opts.CPU,
		Memory:      c.opts.Memory,
		TaskTimeout: c.opts.TaskTimeout,
		MaxRetries:  c.opts.MaxRetries,
		Labels: map[string]string{
			"source": string(unit.Source),
			"contig": unit.Contig,
		},
		Env: map[string]string{
			"GNOMAD_SOURCE":  string(unit.Source),
			"GNOMAD_CONTIG":  unit.Contig,
			"GNOMAD_VERSION": unit.Version,
			"GKS_BUCKET":     c.opts.Bucket,
			"SEQREPO_ROOT":   c.opts.SeqRepoRoot,
		},
	}
}

// Submit runs the controller over every configured work unit in order.
func (c *Controller) Submit(ctx context.Context) *Summary {
	started := time.Now()
	summary := &Summary{}

	for i, unit := range c.opts.Units {
		if i > 0 && c.opts.Delay > 0 && !c.opts.DryRun {
			time.Sleep(c.opts.Delay)
		}

		outcome := c.submitOne(ctx, unit)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Err != nil {
			summary.Failed++
			fmt.Fprintf(c.opts.Out, "Error: submission failed for %s: %v\n", unit, outcome.Err)
			continue
		}
		summary.Submitted++
	}

	summary.Elapsed = time.Since(started)
	observability.NewPrinter(c.opts.Out).SubmissionSummary(summary.Submitted, summary.Failed, summary.Elapsed)
	return summary
}

// submitOne walks one unit through the state machine:
// check-exists → create-or-update → execute → optional wait.
func (c *Controller) submitOne(ctx context.Context, unit naming.WorkUnit) UnitOutcome {
	name := unit.JobName()
	def := c.definition(unit)

	if c.opts.DryRun {
		// No existence check is made in dry-run, so describe both
		// branches rather than pretending to have chosen one.
		fmt.Fprintf(c.opts.Out, "[dry-run] %s: would create or update job %q with image %s, then execute\n",
			unit, name, def.Image)
		return UnitOutcome{Unit: unit, JobName: name, Action: "plan"}
	}

	exists, err := c.platform.Exists(ctx, name)
	if err != nil {
		return UnitOutcome{Unit: unit, JobName: name, Err: err}
	}

	action := "create"
	if exists {
		action = "update"
	}

	if !exists {
		err = c.platform.Create(ctx, name, def)
		if IsConflict(err) {
			// Another controller created it between our existence check
			// and the create; the name is the idempotency key, so fall
			// back to updating it.
			action = "update"
			err = nil
			exists = true
		}
		if err != nil {
			return UnitOutcome{Unit: unit, JobName: name, Action: action, Err: err}
		}
	}
	if exists {
		if err := c.platform.Update(ctx, name, def); err != nil {
			return UnitOutcome{Unit: unit, JobName: name, Action: action, Err: err}
		}
	}
	fmt.Fprintf(c.opts.Out, "%s: %sd job %q\n", unit, action, name)

	operation, err := c.platform.Execute(ctx, name)
	if err != nil {
		return UnitOutcome{Unit: unit, JobName: name, Action: action, Err: err}
	}
	fmt.Fprintf(c.opts.Out, "%s: execution started (%s)\n", unit, operation)

	if c.opts.Wait {
		if err := c.platform.WaitForCompletion(ctx, operation); err != nil {
			return UnitOutcome{Unit: unit, JobName: name, Action: action, Err: err}
		}
		fmt.Fprintf(c.opts.Out, "%s: execution finished\n", unit)
	}

	return UnitOutcome{Unit: unit, JobName: name, Action: action}
}

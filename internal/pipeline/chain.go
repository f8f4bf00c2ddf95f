package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// StageTiming records the wall time one stage of a chain was running.
// Timings are observability data only; they never feed control decisions.
type StageTiming struct {
	Name    string
	Elapsed time.Duration
}

// RunChain connects stages into a single pipe chain reading from src and
// writing to dst, runs every stage concurrently, and waits for the chain to
// drain. Backpressure comes from the pipes themselves: a slow consumer
// blocks its producer instead of forcing buffering.
//
// If any stage exits non-zero the chain's context is cancelled, which kills
// the remaining stages rather than letting them run against a dead chain.
// The first stage failure is returned as a *StageError.
func RunChain(ctx context.Context, stages []Stage, src io.Reader, dst io.Writer) ([]StageTiming, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline chain requires at least one stage")
	}

	g, ctx := errgroup.WithContext(ctx)

	cmds := make([]*exec.Cmd, len(stages))
	stderrs := make([]*limitedBuffer, len(stages))

	var next io.Reader = src
	for i, stage := range stages {
		cmd := exec.CommandContext(ctx, stage.Program, stage.Args...)
		cmd.Stdin = next
		stderrs[i] = &limitedBuffer{limit: maxStderrBytes}
		cmd.Stderr = stderrs[i]

		if i == len(stages)-1 {
			cmd.Stdout = dst
		} else {
			stdout, err := cmd.StdoutPipe()
			if err != nil {
				return nil, fmt.Errorf("failed to open pipe after stage %s: %w", stage.Name, err)
			}
			next = stdout
		}
		cmds[i] = cmd
	}

	timings := make([]StageTiming, len(stages))
	started := time.Now()

	for i := range cmds {
		if err := cmds[i].Start(); err != nil {
			// Tear down anything already running.
			for j := 0; j < i; j++ {
				_ = cmds[j].Process.Kill()
				_ = cmds[j].Wait()
			}
			return nil, &StageError{Stage: stages[i].Name, Cause: err}
		}
	}

	stageErrs := make([]error, len(cmds))
	for i := range cmds {
		g.Go(func() error {
			err := cmds[i].Wait()
			timings[i] = StageTiming{Name: stages[i].Name, Elapsed: time.Since(started)}
			if err != nil {
				stageErrs[i] = &StageError{Stage: stages[i].Name, Stderr: stderrs[i].String(), Cause: err}
				return stageErrs[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// A failing stage gets its neighbors killed via context
		// cancellation; report the stage that actually failed, not a
		// kill victim.
		for _, stageErr := range stageErrs {
			if stageErr != nil && !isKilled(stageErr) {
				return timings, stageErr
			}
		}
		return timings, err
	}
	return timings, nil
}

// isKilled reports whether a stage error is a SIGKILL from chain teardown.
func isKilled(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return ws.Signaled() && ws.Signal() == syscall.SIGKILL
		}
	}
	return false
}

// RunCommand executes a single non-streaming external command (such as the
// indexer, which needs random access to its input file) and times it.
func RunCommand(ctx context.Context, name, program string, args ...string) (StageTiming, error) {
	stderr := &limitedBuffer{limit: maxStderrBytes}
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stderr = stderr

	started := time.Now()
	err := cmd.Run()
	timing := StageTiming{Name: name, Elapsed: time.Since(started)}
	if err != nil {
		return timing, &StageError{Stage: name, Stderr: stderr.String(), Cause: err}
	}
	return timing, nil
}

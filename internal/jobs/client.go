// Package jobs drives the remote job platform: it ensures one named job
// definition exists per work unit with the desired parameters, triggers
// executions, and optionally waits for them to finish.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	runapi "google.golang.org/api/run/v2"
)

// Definition describes the remote execution parameters of one job.
type Definition struct {
	Image       string
	CPU         string
	Memory      string
	TaskTimeout time.Duration
	MaxRetries  int64
	Labels      map[string]string
	Env         map[string]string
}

// Platform is the narrow job-platform interface the controller needs.
// The production implementation targets Cloud Run jobs; tests use fakes.
type Platform interface {
	// Exists reports whether a job with the given short name exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Create registers a new named job. A conflict with a concurrently
	// created job surfaces as an error satisfying IsConflict.
	Create(ctx context.Context, name string, def Definition) error

	// Update replaces the parameters of an existing named job.
	Update(ctx context.Context, name string, def Definition) error

	// Execute triggers one execution and returns an operation handle
	// without waiting for the execution to be scheduled.
	Execute(ctx context.Context, name string) (operation string, err error)

	// WaitForCompletion blocks until the operation reaches a terminal
	// state, returning an error if the execution failed.
	WaitForCompletion(ctx context.Context, operation string) error
}

// Error represents a failed job-platform operation.
type Error struct {
	Op    string
	Job   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("job %s %s: %v", e.Op, e.Job, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsConflict reports whether err is an "already exists"-shaped platform
// error. Two controllers racing the same absent job both attempt a create;
// the loser recovers by taking the update path instead.
func IsConflict(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 409
	}
	return false
}

// isNotFound reports a 404-shaped platform error.
func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 404
	}
	return false
}

// pollInterval is how often a waited-on execution operation is re-checked.
const pollInterval = 15 * time.Second

// CloudRun implements Platform against the Cloud Run Admin API v2.
type CloudRun struct {
	svc    *runapi.Service
	parent string // projects/{project}/locations/{region}
}

// NewCloudRun constructs a Cloud Run jobs client for one project/region
// using the platform's default credential chain.
func NewCloudRun(ctx context.Context, project, region string, opts ...option.ClientOption) (*CloudRun, error) {
	svc, err := runapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create run service: %w", err)
	}
	return &CloudRun{
		svc:    svc,
		parent: fmt.Sprintf("projects/%s/locations/%s", project, region),
	}, nil
}

// fullName expands a short job name to its resource name.
func (c *CloudRun) fullName(name string) string {
	return c.parent + "/jobs/" + name
}

func (c *CloudRun) Exists(ctx context.Context, name string) (bool, error) {
	_, err := c.svc.Projects.Locations.Jobs.Get(c.fullName(name)).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &Error{Op: "get", Job: name, Cause: err}
	}
	return true, nil
}

func (c *CloudRun) Create(ctx context.Context, name string, def Definition) error {
	_, err := c.svc.Projects.Locations.Jobs.
		Create(c.parent, c.job(def)).
		JobId(name).
		Context(ctx).
		Do()
	if err != nil {
		if IsConflict(err) {
			// Keep the conflict shape detectable through the wrapper.
			return err
		}
		return &Error{Op: "create", Job: name, Cause: err}
	}
	return nil
}

func (c *CloudRun) Update(ctx context.Context, name string, def Definition) error {
	_, err := c.svc.Projects.Locations.Jobs.
		Patch(c.fullName(name), c.job(def)).
		Context(ctx).
		Do()
	if err != nil {
		return &Error{Op: "update", Job: name, Cause: err}
	}
	return nil
}

func (c *CloudRun) Execute(ctx context.Context, name string) (string, error) {
	op, err := c.svc.Projects.Locations.Jobs.
		Run(c.fullName(name), &runapi.GoogleCloudRunV2RunJobRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return "", &Error{Op: "execute", Job: name, Cause: err}
	}
	return op.Name, nil
}

// WaitForCompletion polls the execution's long-running operation. The
// controller itself has no deadline here; the job's own task timeout is
// the bound on how long an execution can run.
func (c *CloudRun) WaitForCompletion(ctx context.Context, operation string) error {
	for {
		op, err := c.svc.Projects.Locations.Operations.Get(operation).Context(ctx).Do()
		if err != nil {
			return &Error{Op: "poll", Job: operation, Cause: err}
		}
		if op.Done {
			if op.Error != nil {
				return &Error{
					Op:    "wait",
					Job:   operation,
					Cause: fmt.Errorf("execution failed: %s (code %d)", op.Error.Message, op.Error.Code),
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// job translates a Definition into the Cloud Run job shape: a single-task
// execution template with resource limits, retry policy, and env bindings.
func (c *CloudRun) job(def Definition) *runapi.GoogleCloudRunV2Job {
	env := make([]*runapi.GoogleCloudRunV2EnvVar, 0, len(def.Env))
	for name, value := range def.Env {
		env = append(env, &runapi.GoogleCloudRunV2EnvVar{Name: name, Value: value})
	}

	return &runapi.GoogleCloudRunV2Job{
		Labels: def.Labels,
		Template: &runapi.GoogleCloudRunV2ExecutionTemplate{
			TaskCount:   1,
			Parallelism: 1,
			Template: &runapi.GoogleCloudRunV2TaskTemplate{
				MaxRetries: def.MaxRetries,
				Timeout:    strconv.FormatInt(int64(def.TaskTimeout.Seconds()), 10) + "s",
				Containers: []*runapi.GoogleCloudRunV2Container{
					{
						Image: def.Image,
						Env:   env,
						Resources: &runapi.GoogleCloudRunV2ResourceRequirements{
							Limits: map[string]string{
								"cpu":    def.CPU,
								"memory": def.Memory,
							},
						},
					},
				},
				ForceSendFields: []string{"MaxRetries"},
			},
		},
	}
}

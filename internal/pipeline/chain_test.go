package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChainSingleStage(t *testing.T) {
	var out bytes.Buffer
	stages := []Stage{{Name: "passthrough", Program: "cat"}}

	timings, err := RunChain(context.Background(), stages, strings.NewReader("hello\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", out.String())
	require.Len(t, timings, 1)
	assert.Equal(t, "passthrough", timings[0].Name)
}

func TestRunChainMultipleStages(t *testing.T) {
	var out bytes.Buffer
	stages := []Stage{
		{Name: "upper", Program: "tr", Args: []string{"a-z", "A-Z"}},
		{Name: "passthrough", Program: "cat"},
	}

	timings, err := RunChain(context.Background(), stages, strings.NewReader("chr21\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "CHR21\n", out.String())
	require.Len(t, timings, 2)
	assert.Equal(t, "upper", timings[0].Name)
	assert.Equal(t, "passthrough", timings[1].Name)
}

func TestRunChainStageFailure(t *testing.T) {
	var out bytes.Buffer
	stages := []Stage{
		{Name: "boom", Program: "sh", Args: []string{"-c", "echo diagnostics >&2; exit 3"}},
	}

	_, err := RunChain(context.Background(), stages, strings.NewReader("input"), &out)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "boom", stageErr.Stage)
	assert.Contains(t, stageErr.Stderr, "diagnostics")
}

func TestRunChainReportsFailingStageNotVictims(t *testing.T) {
	var out bytes.Buffer
	stages := []Stage{
		{Name: "ok", Program: "cat"},
		{Name: "broken", Program: "sh", Args: []string{"-c", "exit 1"}},
		{Name: "downstream", Program: "cat"},
	}

	_, err := RunChain(context.Background(), stages, strings.NewReader("x\n"), &out)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "broken", stageErr.Stage)
}

func TestRunChainNoStages(t *testing.T) {
	var out bytes.Buffer
	_, err := RunChain(context.Background(), nil, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestRunChainMissingProgram(t *testing.T) {
	var out bytes.Buffer
	stages := []Stage{{Name: "ghost", Program: "definitely-not-a-real-program-xyz"}}

	_, err := RunChain(context.Background(), stages, strings.NewReader(""), &out)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "ghost", stageErr.Stage)
}

func TestRunChainCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	stages := []Stage{{Name: "sleep", Program: "sleep", Args: []string{"60"}}}

	_, err := RunChain(ctx, stages, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	timing, err := RunCommand(context.Background(), "noop", "true")
	require.NoError(t, err)
	assert.Equal(t, "noop", timing.Name)

	_, err = RunCommand(context.Background(), "failing", "sh", "-c", "echo bad >&2; exit 2")
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "failing", stageErr.Stage)
	assert.Contains(t, stageErr.Stderr, "bad")
}

func TestLimitedBuffer(t *testing.T) {
	lb := &limitedBuffer{limit: 4}

	n, err := lb.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n, "writes past the limit are accepted and discarded")
	assert.Equal(t, "abcd", lb.String())

	_, err = lb.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", lb.String())
}

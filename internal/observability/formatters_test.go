package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{"bytes", 512, "512 B"},
		{"kibibytes", 2048, "2.0 KiB"},
		{"mebibytes", 5 * 1024 * 1024, "5.0 MiB"},
		{"gibibytes", 3 * 1024 * 1024 * 1024, "3.0 GiB"},
		{"zero", 0, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatBytes(tt.input)
			if result != tt.expected {
				t.Errorf("FormatBytes(%d) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStageDone(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.StageDone("strip", 1500*time.Millisecond, 2048)
	out := buf.String()

	if !strings.Contains(out, "[strip]") {
		t.Errorf("expected stage name in output, got %q", out)
	}
	if !strings.Contains(out, "1.5s") {
		t.Errorf("expected elapsed time in output, got %q", out)
	}
	if !strings.Contains(out, "2.0 KiB") {
		t.Errorf("expected byte count in output, got %q", out)
	}
}

func TestStageDoneUnknownSize(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.StageDone("annotate", time.Second, -1)
	if strings.Contains(buf.String(), "-1") {
		t.Errorf("unknown size should be omitted, got %q", buf.String())
	}
}

func TestStageFailed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.StageFailed("annotate", 2*time.Second, errors.New("exit status 1"))
	out := buf.String()

	if !strings.Contains(out, "FAILED") {
		t.Errorf("expected failure marker, got %q", out)
	}
	if !strings.Contains(out, "exit status 1") {
		t.Errorf("expected cause in output, got %q", out)
	}
}

func TestRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.RunSummary("genomes/chr21", "from cache", "gs://b/vcf-vrs/a.vcf.bgz", 90*time.Second)
	out := buf.String()

	for _, want := range []string{"genomes/chr21", "from cache", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary, got %q", want, out)
		}
	}
}

// Package observability provides formatted progress output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
)

// Printer handles formatted progress output.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// StageStart announces the start of a pipeline stage.
func (p *Printer) StageStart(name string) {
	fmt.Fprintf(p.out, "  [%s] started\n", name)
}

// StageDone reports a completed stage with its elapsed time and, when
// known, the number of bytes it produced (pass -1 when unknown).
func (p *Printer) StageDone(name string, elapsed time.Duration, bytes int64) {
	if bytes >= 0 {
		fmt.Fprintf(p.out, "  [%s] done in %s (%s)\n", name, elapsed.Round(time.Millisecond), FormatBytes(bytes))
		return
	}
	fmt.Fprintf(p.out, "  [%s] done in %s\n", name, elapsed.Round(time.Millisecond))
}

// StageFailed reports a failed stage with the elapsed time up to failure.
func (p *Printer) StageFailed(name string, elapsed time.Duration, err error) {
	fmt.Fprintf(p.out, "  [%s] FAILED after %s: %v\n", name, elapsed.Round(time.Millisecond), err)
}

// RunSummary prints the final per-work-unit outcome box: whether the
// stripped intermediate came from cache, and the final artifact address.
func (p *Printer) RunSummary(unit, cacheStatus, address string, elapsed time.Duration) {
	content := fmt.Sprintf("unit:     %s\nstripped: %s\noutput:   %s\nelapsed:  %s",
		unit, cacheStatus, address, elapsed.Round(time.Second))
	p.printBox("Pipeline run complete", content)
}

// SubmissionSummary prints the end-of-batch submission outcome.
func (p *Printer) SubmissionSummary(submitted, failed int, elapsed time.Duration) {
	content := fmt.Sprintf("submitted: %d\nfailed:    %d\nelapsed:   %s",
		submitted, failed, elapsed.Round(time.Second))
	p.printBox("Submission run complete", content)
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

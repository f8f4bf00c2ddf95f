package pipeline

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Stage is one external transform in a pipeline chain. A stage reads its
// input on stdin and writes its output on stdout; the pipeline owns wiring
// and failure propagation, never the transform logic itself.
type Stage struct {
	Name    string
	Program string
	Args    []string
}

// Toolchain names the external programs the pipeline shells out to.
// Overridable for tests and for images that install tools off PATH.
type Toolchain struct {
	Bcftools    string
	VRSAnnotate string
	Bgzip       string
	Tabix       string
}

// DefaultToolchain returns the PATH-resolved tool names.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Bcftools:    "bcftools",
		VRSAnnotate: "vrs-annotate",
		Bgzip:       "bgzip",
		Tabix:       "tabix",
	}
}

// StripStage drops the given annotation fields from a VCF stream, emitting
// bgzipped output. Stripping everything but positional/allele fields keeps
// the cached intermediate small.
func (t Toolchain) StripStage(fields []string) Stage {
	return Stage{
		Name:    "strip",
		Program: t.Bcftools,
		Args:    []string{"annotate", "-x", strings.Join(fields, ","), "-O", "z", "-"},
	}
}

// AnnotateStage runs the VRS annotator over a VCF stream. seqRepoRoot
// points at the reference-sequence resolver; progressInterval (records)
// enables the annotator's periodic progress reports when positive.
func (t Toolchain) AnnotateStage(seqRepoRoot string, progressInterval int) Stage {
	args := []string{"vcf", "--vcf_in", "-", "--vcf_out", "-", "--seqrepo_root_dir", seqRepoRoot}
	if progressInterval > 0 {
		args = append(args, "--progress_interval", strconv.Itoa(progressInterval))
	}
	return Stage{Name: "annotate", Program: t.VRSAnnotate, Args: args}
}

// CompressStage block-compresses a stream into the seekable bgzip format.
func (t Toolchain) CompressStage() Stage {
	return Stage{Name: "compress", Program: t.Bgzip, Args: []string{"-c"}}
}

// IndexArgs returns the tabix invocation for a final on-disk artifact.
// Indexing needs random access, so it only runs in the staged topology.
func (t Toolchain) IndexArgs(path string) (program string, args []string) {
	return t.Tabix, []string{"-p", "vcf", path}
}

// StageError reports which stage of a chain failed, with a bounded tail of
// its stderr.
type StageError struct {
	Stage  string
	Stderr string
	Cause  error
}

func (e *StageError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("stage %s failed: %v: %s", e.Stage, e.Cause, e.Stderr)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// maxStderrBytes caps captured stage stderr so a chatty tool cannot
// exhaust memory.
const maxStderrBytes = 16 * 1024

// limitedBuffer is a bytes.Buffer that silently discards writes past a
// limit, keeping the head of the output.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = lb.buf.Write(p[:remaining])
		return len(p), nil
	}
	return lb.buf.Write(p)
}

func (lb *limitedBuffer) String() string {
	return strings.TrimSpace(lb.buf.String())
}

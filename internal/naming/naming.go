// Package naming derives artifact basenames, object-store addresses, job
// names, and release URLs for gnomAD VRS annotation work units. Every name
// is a pure function of (source, contig, version) so that repeated runs of
// the same work unit target the same addresses.
package naming

import (
	"fmt"
	"strings"
)

// DefaultVersion is the gnomAD release version processed by default.
const DefaultVersion = "4.1"

// Source identifies which gnomAD callset a work unit belongs to.
type Source string

const (
	SourceExomes  Source = "exomes"
	SourceGenomes Source = "genomes"
)

// ParseSource validates and normalizes a source string.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceExomes:
		return SourceExomes, nil
	case SourceGenomes:
		return SourceGenomes, nil
	default:
		return "", fmt.Errorf("invalid source %q: must be one of %q, %q", s, SourceExomes, SourceGenomes)
	}
}

// CanonicalContigs returns the full chromosome set in canonical order.
// This is the default submission order; it is a determinism property, not a
// correctness one.
func CanonicalContigs() []string {
	contigs := make([]string, 0, 24)
	for i := 1; i <= 22; i++ {
		contigs = append(contigs, fmt.Sprintf("chr%d", i))
	}
	contigs = append(contigs, "chrX", "chrY")
	return contigs
}

// ValidContig reports whether contig is a member of the canonical set.
// Caller-supplied contigs outside the set are rejected at config time.
func ValidContig(contig string) bool {
	for _, c := range CanonicalContigs() {
		if c == contig {
			return true
		}
	}
	return false
}

// WorkUnit identifies one chromosome/source combination to process.
type WorkUnit struct {
	Source  Source `json:"source"`
	Contig  string `json:"contig"`
	Version string `json:"version"`
}

// NewWorkUnit builds a WorkUnit, applying the default release version when
// version is empty.
func NewWorkUnit(source Source, contig, version string) WorkUnit {
	if version == "" {
		version = DefaultVersion
	}
	return WorkUnit{Source: source, Contig: contig, Version: version}
}

// Basename is the shared stem of every artifact derived from this unit,
// e.g. "genomes.v4.1.sites.chr21".
func (u WorkUnit) Basename() string {
	return fmt.Sprintf("%s.v%s.sites.%s", u.Source, u.Version, u.Contig)
}

// String implements fmt.Stringer for log lines.
func (u WorkUnit) String() string {
	return fmt.Sprintf("%s/%s", u.Source, u.Contig)
}

// JobName is the deterministic job-platform resource name for this unit.
// Re-submission targets the same named job, which is what makes
// create-or-update idempotent.
func (u WorkUnit) JobName() string {
	return fmt.Sprintf("vrs-annotate-%s-%s", u.Source, u.Contig)
}

// releaseURLBase is the public gnomAD release bucket.
const releaseURLBase = "https://storage.googleapis.com/gcp-public-data--gnomad/release"

// ReleaseURL is the HTTP address of the raw sites VCF for this unit.
func (u WorkUnit) ReleaseURL() string {
	return fmt.Sprintf("%s/%s/vcf/%s/gnomad.%s.v%s.sites.%s.vcf.bgz",
		releaseURLBase, u.Version, u.Source, u.Source, u.Version, u.Contig)
}

// AnnotatedKey is the object key of the final VRS-annotated artifact.
func (u WorkUnit) AnnotatedKey() string {
	return "vcf-vrs/" + u.Basename() + ".VRS.vcf.bgz"
}

// IndexKey is the object key of the tabix index sidecar, produced only by
// the staged topology.
func (u WorkUnit) IndexKey() string {
	return u.AnnotatedKey() + ".tbi"
}

// StrippedKey is the object key of the stripped intermediate under the
// current naming convention.
func (u WorkUnit) StrippedKey() string {
	return StrippedConventions()[0].Key(u)
}

// Convention is one naming scheme for the stripped intermediate. Cache
// probes try conventions in the order returned by StrippedConventions;
// retiring or adding a scheme means editing that list, not branching logic.
type Convention struct {
	Name string
	Key  func(u WorkUnit) string
}

// StrippedConventions returns the known stripped-artifact naming schemes in
// priority order: the current layout first, then the historical layout that
// prefixed basenames with "gnomad.". The legacy scheme was never retired,
// so artifacts produced by old runs remain usable.
func StrippedConventions() []Convention {
	return []Convention{
		{
			Name: "current",
			Key: func(u WorkUnit) string {
				return "vcf-stripped/" + u.Basename() + ".stripped.vcf.bgz"
			},
		},
		{
			Name: "legacy",
			Key: func(u WorkUnit) string {
				return "vcf-stripped/gnomad." + u.Basename() + ".stripped.vcf.bgz"
			},
		},
	}
}

// GSURL renders a bucket/key pair as a gs:// URL for display.
func GSURL(bucket, key string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, key)
}

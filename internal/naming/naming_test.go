package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Source
		wantErr bool
	}{
		{"exomes", "exomes", SourceExomes, false},
		{"genomes", "genomes", SourceGenomes, false},
		{"uppercase", "GENOMES", SourceGenomes, false},
		{"whitespace", " exomes ", SourceExomes, false},
		{"invalid", "joint", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalContigs(t *testing.T) {
	contigs := CanonicalContigs()

	require.Len(t, contigs, 24)
	assert.Equal(t, "chr1", contigs[0])
	assert.Equal(t, "chr22", contigs[21])
	assert.Equal(t, "chrX", contigs[22])
	assert.Equal(t, "chrY", contigs[23])

	for _, c := range contigs {
		assert.True(t, ValidContig(c), "contig %s should be valid", c)
	}
	assert.False(t, ValidContig("chrM"))
	assert.False(t, ValidContig("21"))
}

func TestWorkUnitBasename(t *testing.T) {
	u := NewWorkUnit(SourceGenomes, "chr21", "")
	assert.Equal(t, "genomes.v4.1.sites.chr21", u.Basename())

	u2 := NewWorkUnit(SourceExomes, "chrX", "4.0")
	assert.Equal(t, "exomes.v4.0.sites.chrX", u2.Basename())
}

// Two logically different units must never collapse to the same basename.
func TestWorkUnitBasenameUnique(t *testing.T) {
	seen := make(map[string]WorkUnit)
	for _, source := range []Source{SourceExomes, SourceGenomes} {
		for _, contig := range CanonicalContigs() {
			u := NewWorkUnit(source, contig, "")
			prev, dup := seen[u.Basename()]
			require.False(t, dup, "basename %q produced by both %s and %s", u.Basename(), prev, u)
			seen[u.Basename()] = u
		}
	}
}

func TestWorkUnitAddressesDeterministic(t *testing.T) {
	a := NewWorkUnit(SourceGenomes, "chr21", "")
	b := NewWorkUnit(SourceGenomes, "chr21", "")

	assert.Equal(t, a.AnnotatedKey(), b.AnnotatedKey())
	assert.Equal(t, a.StrippedKey(), b.StrippedKey())
	assert.Equal(t, "vcf-vrs/genomes.v4.1.sites.chr21.VRS.vcf.bgz", a.AnnotatedKey())
	assert.Equal(t, "vcf-stripped/genomes.v4.1.sites.chr21.stripped.vcf.bgz", a.StrippedKey())
	assert.Equal(t, "vcf-vrs/genomes.v4.1.sites.chr21.VRS.vcf.bgz.tbi", a.IndexKey())
}

func TestStrippedConventionsPriority(t *testing.T) {
	u := NewWorkUnit(SourceExomes, "chr1", "")
	conventions := StrippedConventions()

	require.Len(t, conventions, 2)
	assert.Equal(t, "current", conventions[0].Name)
	assert.Equal(t, "legacy", conventions[1].Name)
	assert.Equal(t, "vcf-stripped/exomes.v4.1.sites.chr1.stripped.vcf.bgz", conventions[0].Key(u))
	assert.Equal(t, "vcf-stripped/gnomad.exomes.v4.1.sites.chr1.stripped.vcf.bgz", conventions[1].Key(u))
}

func TestJobName(t *testing.T) {
	u := NewWorkUnit(SourceGenomes, "chr21", "")
	assert.Equal(t, "vrs-annotate-genomes-chr21", u.JobName())
}

func TestReleaseURL(t *testing.T) {
	u := NewWorkUnit(SourceGenomes, "chr21", "")
	assert.Equal(t,
		"https://storage.googleapis.com/gcp-public-data--gnomad/release/4.1/vcf/genomes/gnomad.genomes.v4.1.sites.chr21.vcf.bgz",
		u.ReleaseURL())
}

func TestGSURL(t *testing.T) {
	assert.Equal(t, "gs://my-bucket/vcf-vrs/a.vcf.bgz", GSURL("my-bucket", "vcf-vrs/a.vcf.bgz"))
}

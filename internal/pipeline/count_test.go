package pipeline

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipVCF(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, line := range lines {
		_, err := gz.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestCountRecords(t *testing.T) {
	data := gzipVCF(t,
		"##fileformat=VCFv4.2",
		"##contig=<ID=chr21>",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
		"chr21\t5030088\t.\tA\tG\t.\tPASS\t.",
		"chr21\t5030105\t.\tC\tT\t.\tPASS\t.",
		"chr21\t5030240\t.\tG\tA\t.\tPASS\t.",
	)

	count, err := CountRecords(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCountRecordsHeaderOnly(t *testing.T) {
	data := gzipVCF(t, "##fileformat=VCFv4.2", "#CHROM\tPOS")

	count, err := CountRecords(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCountRecordsLongLines(t *testing.T) {
	// Records longer than the internal read buffer must still count once.
	longInfo := strings.Repeat("AC=1;", 500_000)
	data := gzipVCF(t,
		"#CHROM\tPOS",
		"chr1\t100\t.\tA\tG\t.\tPASS\t"+longInfo,
		"chr1\t200\t.\tC\tT\t.\tPASS\t.",
	)

	count, err := CountRecords(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCountRecordsNoTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("#CHROM\tPOS\nchr1\t100"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	count, err := CountRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCountRecordsNotGzip(t *testing.T) {
	_, err := CountRecords(strings.NewReader("plain text, not gzip"))
	assert.Error(t, err)
}

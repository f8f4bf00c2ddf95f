package pipeline

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
)

// CountRecords counts the variant records in a bgzip-compressed VCF
// stream, skipping header lines. bgzip output is valid multi-member gzip,
// so the standard decompressor can read it.
//
// The count exists purely for progress reporting; callers treat failures
// as non-fatal.
func CountRecords(r io.Reader) (int64, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	br := bufio.NewReaderSize(gz, 1024*1024)
	var count int64
	atLineStart := true
	isRecord := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart {
				isRecord = chunk[0] != '#'
			}
			if chunk[len(chunk)-1] == '\n' {
				if isRecord {
					count++
				}
				atLineStart = true
			} else {
				// Long line split across reads; only the first piece
				// decides whether it is a record.
				atLineStart = false
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			// Count a final record without a trailing newline.
			if !atLineStart && isRecord {
				count++
			}
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}

// CountRecordsInFile opens path and counts its records.
func CountRecordsInFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return CountRecords(f)
}

// Package ingest reads new, complete JSONL lines from a growing session
// file and watches a set of such files for changes.
package ingest

import (
	"bytes"
	"io"
	"os"
)

// ReadResult is the outcome of one incremental read.
type ReadResult struct {
	Lines          [][]byte // complete, newline-terminated-on-disk lines, newline stripped
	NewOffset      int64
	MalformedCount int // lines that failed downstream JSON parsing are counted by the caller; this reader only reports lines read
	Truncated      bool
}

// ReadNewLines reads every complete newline-terminated line appended to
// path since offset. A trailing partial line (no terminating newline) is
// left unconsumed and does not advance the offset. If the file is shorter
// than offset (truncation or rotation), the offset resets to 0 and the
// whole file is read.
func ReadNewLines(path string, offset int64) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ReadResult{}, err
	}

	truncated := false
	if info.Size() < offset {
		offset = 0
		truncated = true
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ReadResult{}, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return ReadResult{}, err
	}

	lines, consumed := splitCompleteLines(data)
	return ReadResult{
		Lines:     lines,
		NewOffset: offset + int64(consumed),
		Truncated: truncated,
	}, nil
}

// splitCompleteLines splits data on '\n', returning only lines that had a
// terminating newline, and the number of bytes consumed by those lines
// (including their newline).
func splitCompleteLines(data []byte) ([][]byte, int) {
	var lines [][]byte
	consumed := 0
	rest := data
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		line := rest[:idx]
		// Strip a trailing \r for CRLF-terminated files.
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
		consumed += idx + 1
		rest = rest[idx+1:]
	}
	return lines, consumed
}

// SeekToLastNLines returns the byte offset of the start of the nth-from-last
// complete line in path, for catch-up reads. If the file has
// fewer than n lines, it returns 0 (start of file).
func SeekToLastNLines(path string, n int) (int64, error) {
	if n <= 0 {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	const chunkSize = 64 * 1024
	size := info.Size()
	pos := size
	newlines := 0
	buf := make([]byte, chunkSize)

	for pos > 0 && newlines <= n {
		readSize := int64(chunkSize)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize
		if _, err := f.ReadAt(buf[:readSize], pos); err != nil && err != io.EOF {
			return 0, err
		}
		chunk := buf[:readSize]
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] == '\n' {
				// Ignore a trailing newline exactly at EOF (empty final line).
				if pos+int64(i) == size-1 {
					continue
				}
				newlines++
				if newlines >= n {
					return pos + int64(i) + 1, nil
				}
			}
		}
	}
	return 0, nil
}

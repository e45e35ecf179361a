// Package journal implements the Worker's local, append-only record of
// successful mints (spec.md §4.7). It is a forensic projection only:
// the Monitor's Ledger remains authoritative.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record is one successful mint, matching spec.md §4.6 step 8's
// {txid, inscription_id, destination, timestamp} shape.
type Record struct {
	TxID          string `json:"txid"`
	InscriptionID string `json:"inscription_id"`
	Destination   string `json:"destination"`
	TimestampMs   int64  `json:"timestamp"`
}

// Journal is a newline-delimited-JSON append log. Each Append is a
// single os.File.Write of one complete, newline-terminated record, so a
// crash can only ever leave a partial trailing line, never a corrupted
// earlier one; Records tolerates and drops such a trailing fragment
// rather than failing the whole read (spec.md §4.7 crash-safety
// requirement).
type Journal struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	file        *os.File
	size        int64
}

// Open opens or creates the journal file at path, appending to any
// existing contents. rotateBytes is the size threshold past which
// Append triggers a rotation to a compressed archive; zero disables
// rotation.
func Open(path string, rotateBytes int64) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat journal %s: %w", path, err)
	}
	return &Journal{
		path:        path,
		rotateBytes: rotateBytes,
		file:        f,
		size:        info.Size(),
	}, nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Append writes one record as a single line and rotates the journal if
// it has grown past the configured threshold.
func (j *Journal) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling journal record for %s: %w", rec.TxID, err)
	}
	line = append(line, '\n')

	n, err := j.file.Write(line)
	if err != nil {
		return fmt.Errorf("appending journal record for %s: %w", rec.TxID, err)
	}
	j.size += int64(n)

	if j.rotateBytes > 0 && j.size >= j.rotateBytes {
		if err := j.rotateLocked(); err != nil {
			// The mint is already durably recorded; a failed rotation
			// must not surface as an Append failure.
			return nil
		}
	}
	return nil
}

// Records returns every complete record currently in the journal,
// oldest first. A partial trailing line (the crash-recovery case) is
// silently dropped.
func (j *Journal) Records() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking journal %s: %w", j.path, err)
	}
	defer j.file.Seek(0, io.SeekEnd)

	var out []Record
	scanner := bufio.NewScanner(j.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// Partial or corrupt trailing record: tolerated, not fatal.
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", j.path, err)
	}
	return out, nil
}

// rotateLocked compresses the current journal contents to a timestamped
// .jsonl.zst archive next to the journal file and truncates it to
// start fresh. Caller must hold j.mu.
func (j *Journal) rotateLocked() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking journal for rotation: %w", err)
	}
	data, err := io.ReadAll(j.file)
	if err != nil {
		return fmt.Errorf("reading journal for rotation: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer encoder.Close()
	compressed := encoder.EncodeAll(data, nil)

	archivePath := j.path + "." + time.Now().UTC().Format("20060102T150405") + ".jsonl.zst"
	if err := os.WriteFile(archivePath, compressed, 0644); err != nil {
		return fmt.Errorf("writing journal archive %s: %w", archivePath, err)
	}

	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating journal after rotation: %w", err)
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking journal after truncation: %w", err)
	}
	j.size = 0
	return nil
}

// ArchivePattern returns the glob pattern for this journal's rotated
// archives, for operator inspection.
func (j *Journal) ArchivePattern() string {
	return filepath.Join(filepath.Dir(j.path), filepath.Base(j.path)+".*.jsonl.zst")
}

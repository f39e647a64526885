package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/axiom/internal/canon"
)

// HashPrefixLength is the number of hash characters in a record file name.
const HashPrefixLength = 12

// RecordExt is the file extension of persisted records.
const RecordExt = ".json"

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// Record is the signed, persisted form of one logged payload.
type Record struct {
	Label     string `json:"label"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

// FileName returns the content-addressed file name for r.
func (r Record) FileName() string {
	prefix := r.Hash
	if len(prefix) > HashPrefixLength {
		prefix = prefix[:HashPrefixLength]
	}
	return r.Label + "_" + prefix + RecordExt
}

// CanonicalValue implements canon.Valuer.
func (r Record) CanonicalValue() (canon.Value, error) {
	return canon.Object{
		"label":     canon.String(r.Label),
		"hash":      canon.String(r.Hash),
		"signature": canon.String(r.Signature),
	}, nil
}

// ValidateLabel rejects labels that could escape the log directory or
// produce hidden files.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("audit: invalid label %q: want [A-Za-z0-9._-] without a leading dot", label)
	}
	return nil
}

// writeRecord stores r under dir atomically and returns the final path.
func writeRecord(dir string, r Record) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	final := filepath.Join(dir, r.FileName())
	tmp, err := os.CreateTemp(dir, "."+r.Label+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("rename record: %w", err)
	}
	committed = true
	return final, nil
}

// ReadRecord loads one record file.
func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("audit: read record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("audit: decode record %s: %w", filepath.Base(path), err)
	}
	if r.Label == "" || r.Hash == "" || r.Signature == "" {
		return Record{}, fmt.Errorf("audit: record %s is missing fields", filepath.Base(path))
	}
	return r, nil
}

// StoredRecord is a record together with the file it was read from.
type StoredRecord struct {
	Record
	Path string `json:"path"`
}

// UnreadableRecord is a record file that could not be loaded.
type UnreadableRecord struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// ListRecords reads every record in dir, sorted by file name. Temp files
// left by interrupted writes are ignored. A missing dir yields no records.
// The first unreadable record file aborts the listing.
func ListRecords(dir string) ([]StoredRecord, error) {
	records, unreadable, err := ScanRecords(dir)
	if err != nil {
		return nil, err
	}
	if len(unreadable) > 0 {
		return nil, unreadable[0].Err
	}
	return records, nil
}

// ScanRecords is ListRecords without the abort: record files that cannot
// be read or decoded are returned separately, sorted by path. The error is
// non-nil only when dir itself cannot be listed.
func ScanRecords(dir string) ([]StoredRecord, []UnreadableRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("audit: list records: %w", err)
	}

	var (
		out        []StoredRecord
		unreadable []UnreadableRecord
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != RecordExt {
			continue
		}
		path := filepath.Join(dir, name)
		r, err := ReadRecord(path)
		if err != nil {
			unreadable = append(unreadable, UnreadableRecord{Path: path, Err: err})
			continue
		}
		out = append(out, StoredRecord{Record: r, Path: path})
	}
	slices.SortFunc(out, func(a, b StoredRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	slices.SortFunc(unreadable, func(a, b UnreadableRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, unreadable, nil
}

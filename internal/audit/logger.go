package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/axiom/internal/canon"
)

// DefaultDir is the log directory used when none is configured.
const DefaultDir = "logs/c0"

// Options configures a Logger.
type Options struct {
	// Dir is the directory records are written to. Defaults to DefaultDir.
	Dir string
	// Key is the HMAC secret. Required.
	Key Key
	// Logger receives persistence warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// Mirror, if set, receives every signed record.
	Mirror Mirror
}

// Entry is the outcome of one SignAndLog call. Record is always populated;
// Persisted and Mirrored report whether the best-effort side effects landed.
type Entry struct {
	Record     Record
	Path       string
	Persisted  bool
	PersistErr error
	Mirrored   bool
	MirrorErr  error
}

// Logger signs payloads and persists the resulting records.
// It is safe for concurrent use.
type Logger struct {
	dir    string
	signer *Signer
	logger *slog.Logger
	mirror Mirror

	mu      sync.Mutex
	history []Entry
}

// New creates a Logger. The key is copied and fixed for the logger's life.
func New(opts Options) (*Logger, error) {
	signer, err := NewSigner(opts.Key)
	if err != nil {
		return nil, err
	}
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		dir:    dir,
		signer: signer,
		logger: logger,
		mirror: opts.Mirror,
	}, nil
}

// Dir returns the directory records are written to.
func (l *Logger) Dir() string {
	return l.dir
}

// Signer returns the signer backing this logger.
func (l *Logger) Signer() *Signer {
	return l.signer
}

// SignAndLog canonicalizes payload, signs its hash and persists the record.
//
// An invalid label or a payload without canonical form is returned as an
// error and nothing is written. Disk and mirror failures are logged at WARN
// and reported in the Entry; the signed record is still returned.
func (l *Logger) SignAndLog(ctx context.Context, label string, payload any) (Entry, error) {
	if err := ValidateLabel(label); err != nil {
		return Entry{}, err
	}
	hash, err := canon.Hash(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: payload: %w", err)
	}

	entry := Entry{
		Record: Record{
			Label:     label,
			Hash:      hash,
			Signature: l.signer.SignHash(hash),
		},
	}

	path, err := writeRecord(l.dir, entry.Record)
	if err != nil {
		entry.PersistErr = err
		l.logger.Warn("audit record not persisted",
			"label", label,
			"hash", hash,
			"dir", l.dir,
			"error", err)
	} else {
		entry.Path = path
		entry.Persisted = true
		l.logger.Debug("audit record persisted",
			"label", label,
			"hash", hash,
			"path", path)
	}

	if l.mirror != nil {
		if err := l.mirror.Publish(ctx, entry.Record); err != nil {
			entry.MirrorErr = err
			l.logger.Warn("audit record not mirrored",
				"label", label,
				"hash", hash,
				"error", err)
		} else {
			entry.Mirrored = true
		}
	}

	l.mu.Lock()
	l.history = append(l.history, entry)
	l.mu.Unlock()

	return entry, nil
}

// History returns the entries logged by this Logger in call order.
func (l *Logger) History() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.history)
}

// TamperedRecord is a record file that failed verification.
type TamperedRecord struct {
	Path      string `json:"path"`
	Label     string `json:"label,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Signature string `json:"signature,omitempty"`
	Reason    string `json:"reason"`
}

// Tamper reasons.
const (
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonUnreadable        = "unreadable"
)

// VerifyReport summarises a VerifyDir pass.
type VerifyReport struct {
	Dir      string           `json:"dir"`
	Records  int              `json:"records"`
	Valid    int              `json:"valid"`
	Tampered []TamperedRecord `json:"tampered"`
}

// OK reports whether every record verified.
func (r VerifyReport) OK() bool {
	return len(r.Tampered) == 0
}

// VerifyDir re-reads every record under dir and checks its signature.
// Files that cannot be read or decoded are reported as tampered with
// ReasonUnreadable instead of aborting the pass. Tampered entries are
// sorted by path.
func (l *Logger) VerifyDir(dir string) (VerifyReport, error) {
	records, unreadable, err := ScanRecords(dir)
	if err != nil {
		return VerifyReport{}, err
	}
	report := VerifyReport{
		Dir:      dir,
		Records:  len(records) + len(unreadable),
		Tampered: []TamperedRecord{},
	}
	for _, u := range unreadable {
		l.logger.Warn("unreadable audit record", "path", u.Path, "error", u.Err)
		report.Tampered = append(report.Tampered, TamperedRecord{Path: u.Path, Reason: ReasonUnreadable})
	}
	for _, r := range records {
		if l.signer.VerifyRecord(r.Record) {
			report.Valid++
			continue
		}
		report.Tampered = append(report.Tampered, TamperedRecord{
			Path:      r.Path,
			Label:     r.Label,
			Hash:      r.Hash,
			Signature: r.Signature,
			Reason:    ReasonSignatureMismatch,
		})
	}
	slices.SortFunc(report.Tampered, func(a, b TamperedRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return report, nil
}

// ErrNoRecords is returned by Root when dir holds no records.
var ErrNoRecords = errors.New("audit: no records")

// Root returns the Merkle root over every record in dir, in file name order.
func Root(dir string) (string, int, error) {
	stored, err := ListRecords(dir)
	if err != nil {
		return "", 0, err
	}
	if len(stored) == 0 {
		return "", 0, ErrNoRecords
	}
	records := make([]Record, len(stored))
	for i, s := range stored {
		records[i] = s.Record
	}
	root, err := MerkleRoot(records)
	if err != nil {
		return "", 0, err
	}
	return root, len(records), nil
}

// Package lockfile reads, writes and verifies fsb.lock files.
// The lock pins the exact library code scripts run against (one hash per
// dependency bundle) and the form definitions being served (one SHA-256
// per file), so a deployment can prove it runs what was reviewed.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hlop3z/formsandbox/internal/bundle"
	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Entry name prefixes.
const (
	BundlePrefix = "bundle/"
	FormPrefix   = "form/"
)

// Entry is one pinned item.
type Entry struct {
	Name     string // "bundle/<name>" or "form/<file>"
	Checksum string
}

// LockFile is the parsed contents of an fsb.lock file.
type LockFile struct {
	Aggregate string  // SHA-256 of all entry checksums combined
	Entries   []Entry // Sorted by name
}

// DefaultPath returns the lock file path, next to fsb.yaml.
func DefaultPath() string {
	return "fsb.lock"
}

// Compute builds the lock for a bundle fingerprint and a forms directory.
// A missing forms directory pins bundles only.
func Compute(fp *bundle.Fingerprint, formsDir string) (*LockFile, error) {
	var entries []Entry
	if fp != nil {
		for name, hash := range fp.Bundles {
			entries = append(entries, Entry{Name: BundlePrefix + name, Checksum: hash})
		}
	}

	forms, err := formEntries(formsDir)
	if err != nil {
		return nil, err
	}
	entries = append(entries, forms...)

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return &LockFile{Aggregate: aggregate(entries), Entries: entries}, nil
}

// Read parses a lock file. It returns nil if the file does not exist.
func Read(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to read lock file").With("file", path)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fserr.New(fserr.ErrConfigInvalid, "lock file is empty").With("file", path)
	}

	lf := &LockFile{Aggregate: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		sum, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		lf.Entries = append(lf.Entries, Entry{Name: strings.TrimSpace(name), Checksum: sum})
	}
	return lf, nil
}

// Write stores lf at path.
func Write(lf *LockFile, path string) error {
	var sb strings.Builder
	sb.WriteString(lf.Aggregate + "\n")
	for _, e := range lf.Entries {
		sb.WriteString(e.Checksum + " " + e.Name + "\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to create lock file directory").With("file", path)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to write lock file").With("file", path)
	}
	return nil
}

// VerificationResult holds detailed results of lock file verification.
type VerificationResult struct {
	Valid          bool     // Overall validity
	LockFileExists bool     // Whether lock file exists
	AggregateMatch bool     // Whether aggregate checksum matches
	New            []string // Entries present now but not locked
	Removed        []string // Entries locked but gone
	Modified       []string // Entries whose checksum changed
	Verified       []string // Entries that match
}

// Verify compares the current state with the lock at path.
func Verify(current *LockFile, path string) (*VerificationResult, error) {
	result := &VerificationResult{Valid: true, LockFileExists: true, AggregateMatch: true}

	lf, err := Read(path)
	if err != nil {
		return nil, err
	}
	if lf == nil {
		result.LockFileExists = false
		result.Valid = false
		return result, nil
	}

	if current.Aggregate != lf.Aggregate {
		result.AggregateMatch = false
		result.Valid = false
	}

	locked := make(map[string]string, len(lf.Entries))
	for _, e := range lf.Entries {
		locked[e.Name] = e.Checksum
	}
	seen := make(map[string]bool, len(current.Entries))
	for _, e := range current.Entries {
		seen[e.Name] = true
		want, ok := locked[e.Name]
		switch {
		case !ok:
			result.New = append(result.New, e.Name)
			result.Valid = false
		case want != e.Checksum:
			result.Modified = append(result.Modified, e.Name)
			result.Valid = false
		default:
			result.Verified = append(result.Verified, e.Name)
		}
	}
	for _, e := range lf.Entries {
		if !seen[e.Name] {
			result.Removed = append(result.Removed, e.Name)
			result.Valid = false
		}
	}
	return result, nil
}

// formEntries hashes every form definition file in dir.
func formEntries(dir string) ([]Entry, error) {
	if dir == "" {
		return nil, nil
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to read forms directory").With("file", dir)
	}

	var entries []Entry
	for _, de := range des {
		if de.IsDir() || !isFormFile(de.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, fserr.Wrap(fserr.ErrConfigInvalid, err, "failed to read form").With("file", de.Name())
		}
		sum := sha256.Sum256(data)
		entries = append(entries, Entry{Name: FormPrefix + de.Name(), Checksum: hex.EncodeToString(sum[:])})
	}
	return entries, nil
}

func isFormFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// aggregate computes the SHA-256 over all entry checksums in order.
func aggregate(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}

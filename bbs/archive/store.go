package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Granularity selects how archive files are partitioned.
type Granularity int

const (
	Daily   Granularity = iota // one file per calendar day, YYYYMMDD.<ext>
	Monthly                    // one file per calendar month, YYYYMM.<ext>
)

var (
	// ErrArchiveFull means the period file hit its byte cap. The caller's
	// main-log write has usually already succeeded; surface this as a
	// warning, never roll the post back.
	ErrArchiveFull = errors.New("archive file full")

	// ErrArchiveUnavailable means the archive file cannot be opened.
	ErrArchiveUnavailable = errors.New("archive storage unavailable")

	// ErrBadFilename rejects read requests outside the period-file naming
	// scheme (path traversal guard).
	ErrBadFilename = errors.New("invalid archive filename")
)

var filenamePattern = regexp.MustCompile(`^[0-9]+\.[A-Za-z0-9]+$`)

// Store owns the period-partitioned secondary log files used for
// long-term search. Files are append-only until they hit MaxBytes, then
// marked read-only as a tripwire against further writes.
type Store struct {
	Dir         string
	Ext         string // filename extension, without the dot
	Granularity Granularity
	MaxBytes    int64 // 0 disables the cap

	mu sync.Mutex
}

func New(dir, ext string, g Granularity, maxBytes int64) *Store {
	if ext == "" {
		ext = "log"
	}
	return &Store{Dir: dir, Ext: ext, Granularity: g, MaxBytes: maxBytes}
}

// Filename returns the period file name for t, e.g. "20260901.log".
func (s *Store) Filename(t time.Time) string {
	if s.Granularity == Monthly {
		return t.Format("200601") + "." + s.Ext
	}
	return t.Format("20060102") + "." + s.Ext
}

// Size returns the current byte size of a period file, 0 if absent.
func (s *Store) Size(filename string) (int64, error) {
	if !filenamePattern.MatchString(filename) {
		return 0, ErrBadFilename
	}
	fi, err := os.Stat(filepath.Join(s.Dir, filename))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	return fi.Size(), nil
}

// Append writes rawLine (already encoded, newline-terminated) to the
// period file for now. Returns the filename written and whether this call
// created the file, so callers that keep a rendered archive can emit a
// header on first write. Fails with ErrArchiveFull once the cap is hit;
// the write that pushes the file over the cap still lands, after which the
// file is chmod'd read-only.
func (s *Store) Append(now time.Time, rawLine string) (filename string, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}

	filename = s.Filename(now)
	path := filepath.Join(s.Dir, filename)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return filename, false, fmt.Errorf("%w: lock: %v", ErrArchiveUnavailable, err)
	}
	defer lock.Unlock()

	var size int64
	fi, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		size = fi.Size()
	case os.IsNotExist(statErr):
		created = true
	default:
		return filename, false, fmt.Errorf("%w: %v", ErrArchiveUnavailable, statErr)
	}

	if s.MaxBytes > 0 && size >= s.MaxBytes {
		return filename, false, ErrArchiveFull
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return filename, created, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	if _, err := f.WriteString(rawLine); err != nil {
		f.Close()
		return filename, created, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return filename, created, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}

	if s.MaxBytes > 0 && size+int64(len(rawLine)) >= s.MaxBytes {
		// Cap reached with this write: freeze the file.
		_ = os.Chmod(path, 0o444)
	}
	return filename, created, nil
}

// GetAll reads every line of a named period file under a shared lock.
// The filename must match the strict period pattern; anything else is
// rejected before touching the filesystem.
func (s *Store) GetAll(filename string) ([]string, error) {
	if !filenamePattern.MatchString(filename) {
		return nil, ErrBadFilename
	}
	path := filepath.Join(s.Dir, filename)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("%w: lock: %v", ErrArchiveUnavailable, err)
	}
	defer lock.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	return splitLines(string(b)), nil
}

// List returns the period filenames present in the archive directory,
// oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !filenamePattern.MatchString(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Delete removes the single record line matching "timestamp,postId," from
// the named period file and rewrites it. A capped (read-only) file is made
// writable for the rewrite and frozen again afterwards. Reports whether a
// matching line was found.
func (s *Store) Delete(filename string, postID, timestamp int64) (bool, error) {
	if !filenamePattern.MatchString(filename) {
		return false, ErrBadFilename
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.Dir, filename)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return false, fmt.Errorf("%w: lock: %v", ErrArchiveUnavailable, err)
	}
	defer lock.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}

	prefix := fmt.Sprintf("%d,%d,", timestamp, postID)
	found := false
	var out strings.Builder
	for _, line := range splitLines(string(b)) {
		if !found && strings.HasPrefix(line, prefix) {
			found = true
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if !found {
		return false, nil
	}

	frozen := false
	if fi, err := os.Stat(path); err == nil && fi.Mode().Perm()&0o200 == 0 {
		frozen = true
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return false, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	if frozen {
		_ = os.Chmod(path, 0o444)
	}
	return true, nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

package logstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

var (
	// ErrStorageUnavailable means the main log cannot be opened. Fatal to
	// the current request; nothing was written.
	ErrStorageUnavailable = errors.New("log storage unavailable")

	// ErrStorageBusy means the advisory lock could not be acquired within
	// the configured wait.
	ErrStorageBusy = errors.New("log storage busy")

	errNotLocked = errors.New("log store: lock not held")
)

// Store owns the main log file. The board runs as many short-lived request
// handlers around one shared file, so every mutation is serialized through
// an advisory lock on a sidecar .lock file. In-process callers additionally
// serialize on a mutex: flock alone does not exclude goroutines sharing
// one handle.
type Store struct {
	path     string
	mu       sync.Mutex
	lock     *flock.Flock
	lockWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockWait bounds how long mutations wait for the advisory lock before
// failing with ErrStorageBusy. Zero means wait forever.
func WithLockWait(d time.Duration) Option {
	return func(s *Store) { s.lockWait = d }
}

func New(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Lock acquires the exclusive advisory lock. Callers that need to compute
// the next post id and write it atomically hold this across the whole
// read-resolve-write sequence and must release it on every exit path.
func (s *Store) Lock(ctx context.Context) error {
	s.mu.Lock()
	if err := s.fileLock(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) fileLock(ctx context.Context) error {
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}
	ok, err := s.lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrStorageBusy
		}
		return fmt.Errorf("%w: lock: %v", ErrStorageUnavailable, err)
	}
	if !ok {
		return ErrStorageBusy
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *Store) Unlock() error {
	err := s.lock.Unlock()
	s.mu.Unlock()
	return err
}

// GetAll returns the raw log lines, newest-first (index 0 is the most
// recent post). A missing or unreadable file is ErrStorageUnavailable:
// the log file is created at deploy time, its absence means the board's
// storage is broken, not empty.
func (s *Store) GetAll() ([]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return splitLines(string(b)), nil
}

// Records returns the decoded log, newest-first, skipping malformed lines.
func (s *Store) Records() ([]*record.Record, error) {
	lines, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	return record.DecodeAll(lines), nil
}

// NextPostID returns the newest post's id plus one, or 1 for an empty log.
// Only meaningful while the write lock is held: two writers computing this
// without the lock would assign the same id.
func (s *Store) NextPostID() (int64, error) {
	lines, err := s.GetAll()
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		r, err := record.Decode(line)
		if err != nil {
			continue
		}
		return r.PostID + 1, nil
	}
	return 1, nil
}

// Prepend inserts rec at the head of the log and evicts entries past
// maxEntries, newest-first order preserved. The caller must hold the lock;
// the current contents are re-read under it rather than trusting any
// earlier snapshot. The file is rewritten from a complete in-memory buffer
// via a temp file and rename so a crash never leaves a half-written log.
func (s *Store) Prepend(rec *record.Record, maxEntries int) error {
	if !s.lock.Locked() {
		return errNotLocked
	}

	lines, err := s.GetAll()
	if err != nil {
		return err
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	if len(lines) > maxEntries-1 {
		lines = lines[:maxEntries-1]
	}

	var b strings.Builder
	b.WriteString(record.Encode(rec))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return s.writeAll(b.String())
}

// DeleteByID removes the single line whose postId field matches id and
// reports whether a match was found. Takes the lock itself.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if err := s.Lock(ctx); err != nil {
		return false, err
	}
	defer s.Unlock()

	lines, err := s.GetAll()
	if err != nil {
		return false, err
	}

	found := false
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !found {
			if r, err := record.Decode(line); err == nil && r.PostID == id {
				found = true
				continue
			}
		}
		kept = append(kept, line)
	}
	if !found {
		return false, nil
	}

	var b strings.Builder
	for _, line := range kept {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return true, s.writeAll(b.String())
}

// Init creates an empty log file if none exists. Deploy-time helper; the
// request path never creates the file implicitly.
func (s *Store) Init() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return f.Close()
}

func (s *Store) writeAll(content string) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

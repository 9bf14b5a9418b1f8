package board

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/logstore"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

// Clock supplies the write timestamp and the rate-limit arithmetic.
// Abstracted so tests can drive the cooldown window deterministically.
type Clock interface {
	Now() int64 // epoch seconds
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// AdminVerifier checks a candidate admin secret against the stored
// credential. Opaque to this package: hashing policy lives in bbs/auth.
type AdminVerifier interface {
	Verify(candidate string) bool
}

// Config holds the board rules the service enforces.
type Config struct {
	MaxEntries  int    // main log bound; oldest entries evicted past this
	CheckCount  int    // duplicate-check window
	CooldownSec int64  // same-host repost cooldown, 0 disables
	AdminWord   string // message body that triggers admin activation
}

// Candidate is a post as it arrives from the form layer, before any id
// assignment. ThreadID may be pre-assigned by trusted callers; normally it
// is zero and resolved here.
type Candidate struct {
	ProtectCode string
	Host        string
	Agent       string
	User        string
	Mail        string
	Title       string
	Message     string
	RefID       int64
	ThreadID    int64
}

// Result is the typed outcome of Submit. ArchiveErr is set when the post
// landed in the main log but the archive write failed; the post is durable
// at that point and the error exists for logging, never for rollback.
type Result struct {
	Status     Status
	PostID     int64
	Record     *record.Record
	ArchiveErr error
}

// Service orchestrates validation, id assignment and the two log writes
// under one continuously held log-store lock.
type Service struct {
	Log     *logstore.Store
	Archive *archive.Store // nil disables archiving
	Admin   AdminVerifier  // nil disables admin activation
	Clock   Clock
	Config  Config
}

func NewService(log *logstore.Store, arch *archive.Store, admin AdminVerifier, clock Clock, cfg Config) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{Log: log, Archive: arch, Admin: admin, Clock: clock, Config: cfg}
}

// Submit validates the candidate, assigns its post id and thread id, and
// writes it to the main log and the archive. The lock is held from before
// the validation snapshot until after the main-log write: releasing it
// between NextPostID and Prepend would let two writers take the same id.
func (s *Service) Submit(ctx context.Context, c Candidate) (Result, error) {
	if err := s.Log.Lock(ctx); err != nil {
		return Result{}, err
	}
	defer s.Log.Unlock()

	if s.Config.AdminWord != "" && c.Message == s.Config.AdminWord &&
		s.Admin != nil && s.Admin.Verify(c.User) {
		return Result{Status: AdminActivation}, nil
	}

	threadID := c.ThreadID
	if threadID == 0 {
		snapshot, err := s.Log.Records()
		if err != nil {
			return Result{}, err
		}
		vr := Validate(candidateRecord(c), snapshot, ValidateConfig{
			CheckCount:  s.Config.CheckCount,
			CooldownSec: s.Config.CooldownSec,
		}, s.Clock.Now())
		if vr.Status != Accepted {
			return Result{Status: vr.Status}, nil
		}
		threadID = vr.ThreadID
	}

	postID, err := s.Log.NextPostID()
	if err != nil {
		return Result{}, err
	}
	if threadID == 0 {
		// New thread root, or a reference that resolved to nothing.
		threadID = postID
	}

	rec := candidateRecord(c)
	rec.Timestamp = s.Clock.Now()
	rec.PostID = postID
	rec.ThreadID = threadID

	if err := s.Log.Prepend(rec, s.Config.MaxEntries); err != nil {
		return Result{}, err
	}

	res := Result{Status: Accepted, PostID: postID, Record: rec}
	if s.Archive != nil {
		if _, _, err := s.Archive.Append(time.Unix(rec.Timestamp, 0), record.Encode(rec)); err != nil {
			res.ArchiveErr = err
		}
	}
	return res, nil
}

// Delete removes a post from the main log and, when present, its line in
// the relevant archive period file. The archive miss is not an error: the
// main log is canonical.
func (s *Service) Delete(ctx context.Context, postID int64) (bool, error) {
	recs, err := s.Log.Records()
	if err != nil {
		return false, err
	}
	var target *record.Record
	for _, r := range recs {
		if r.PostID == postID {
			target = r
			break
		}
	}

	found, err := s.Log.DeleteByID(ctx, postID)
	if err != nil || !found {
		return found, err
	}

	if s.Archive != nil && target != nil {
		name := s.Archive.Filename(time.Unix(target.Timestamp, 0))
		if _, err := s.Archive.Delete(name, postID, target.Timestamp); err != nil {
			return true, nil // post is gone from the canonical log; archive cleanup is best-effort
		}
	}
	return true, nil
}

// NewProtectCode issues the single-use token stamped into the post form.
func NewProtectCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func candidateRecord(c Candidate) *record.Record {
	return &record.Record{
		ProtectCode: c.ProtectCode,
		Host:        c.Host,
		Agent:       c.Agent,
		User:        c.User,
		Mail:        c.Mail,
		Title:       c.Title,
		Message:     normalizeMessage(c.Message),
		RefID:       c.RefID,
		ThreadID:    c.ThreadID,
	}
}

// normalizeMessage keeps '\r' as the in-message line separator so '\n'
// stays reserved for the record terminator.
func normalizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\r")
	return strings.ReplaceAll(msg, "\n", "\r")
}

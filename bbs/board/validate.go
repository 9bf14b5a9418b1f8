package board

import (
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

// Status classifies the outcome of a submission attempt. Validation
// failures are ordinary values, not errors: they are frequent,
// user-recoverable states and the form is simply redisplayed.
type Status int

const (
	Accepted Status = iota
	DuplicateContent
	RateLimited
	AdminActivation
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case DuplicateContent:
		return "duplicateContent"
	case RateLimited:
		return "rateLimited"
	case AdminActivation:
		return "adminActivation"
	}
	return "unknown"
}

// ValidateResult carries the scan verdict and, when the candidate replies
// to an existing post, the thread id resolved for it. ThreadID 0 means the
// reference was absent or pointed at nothing scanned; the caller treats
// the post as a new thread root.
type ValidateResult struct {
	Status   Status
	ThreadID int64
}

// Validate runs the board's anti-abuse checks and thread resolution in one
// forward scan over the log snapshot (newest-first). The scan deliberately
// continues after the reference target is found: duplicate and rate checks
// must cover the whole window regardless of where the reference sits, and
// tightening that into an early exit changes observable behavior.
func Validate(candidate *record.Record, snapshot []*record.Record, cfg ValidateConfig, now int64) ValidateResult {
	var threadID int64

	for i, existing := range snapshot {
		if i < cfg.CheckCount && candidate.Message == existing.Message {
			return ValidateResult{Status: DuplicateContent}
		}
		if cfg.CooldownSec > 0 &&
			now < existing.Timestamp+cfg.CooldownSec &&
			candidate.Host != "" && candidate.Host == existing.Host {
			return ValidateResult{Status: RateLimited}
		}
		if candidate.ProtectCode != "" && candidate.ProtectCode == existing.ProtectCode {
			// A protect code is single-use; seeing it again means the
			// same form was submitted twice (double-click, back button).
			return ValidateResult{Status: RateLimited}
		}
		if candidate.RefID != 0 && existing.PostID == candidate.RefID {
			threadID = existing.Thread()
		}
	}
	return ValidateResult{Status: Accepted, ThreadID: threadID}
}

// ValidateConfig is the slice of board configuration the validator needs.
type ValidateConfig struct {
	CheckCount  int   // how many recent posts the duplicate check covers
	CooldownSec int64 // same-host repost cooldown; 0 disables rate limiting
}

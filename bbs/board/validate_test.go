package board

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

func snap(recs ...*record.Record) []*record.Record { return recs }

var defaultRules = ValidateConfig{CheckCount: 5, CooldownSec: 60}

func TestValidate_Accepted(t *testing.T) {
	existing := &record.Record{Timestamp: 100, PostID: 1, ThreadID: 1, Host: "a.example", Message: "hi", ProtectCode: "p1"}
	cand := &record.Record{Host: "b.example", Message: "different", ProtectCode: "p2"}

	res := Validate(cand, snap(existing), defaultRules, 1000)
	assert.Equal(t, Accepted, res.Status)
	assert.Zero(t, res.ThreadID)
}

func TestValidate_DuplicateWithinWindow(t *testing.T) {
	existing := &record.Record{Timestamp: 100, PostID: 1, ThreadID: 1, Message: "same text"}
	cand := &record.Record{Message: "same text", ProtectCode: "p2"}

	res := Validate(cand, snap(existing), defaultRules, 1000)
	assert.Equal(t, DuplicateContent, res.Status)
}

func TestValidate_DuplicateOutsideWindowPasses(t *testing.T) {
	// Six posts; the matching text sits at scan position 5, just past a
	// CheckCount of 5, so the duplicate check no longer sees it.
	var recs []*record.Record
	for i := int64(6); i >= 1; i-- {
		msg := "filler"
		if i == 1 {
			msg = "same text"
		}
		recs = append(recs, &record.Record{Timestamp: 100, PostID: i, ThreadID: i, Message: msg, ProtectCode: "p" + string(rune('0'+i))})
	}
	cand := &record.Record{Message: "same text", ProtectCode: "pX"}

	res := Validate(cand, recs, ValidateConfig{CheckCount: 5}, 1000)
	assert.Equal(t, Accepted, res.Status)
}

func TestValidate_SameHostCooldown(t *testing.T) {
	existing := &record.Record{Timestamp: 980, PostID: 1, ThreadID: 1, Host: "a.example", Message: "hi"}
	cand := &record.Record{Host: "a.example", Message: "other"}

	res := Validate(cand, snap(existing), defaultRules, 1000)
	assert.Equal(t, RateLimited, res.Status, "within cooldown")

	res = Validate(cand, snap(existing), defaultRules, 980+60)
	assert.Equal(t, Accepted, res.Status, "cooldown elapsed")

	res = Validate(cand, snap(existing), ValidateConfig{CheckCount: 5}, 1000)
	assert.Equal(t, Accepted, res.Status, "rate limiting disabled")
}

func TestValidate_ProtectCodeReuse(t *testing.T) {
	existing := &record.Record{Timestamp: 100, PostID: 1, ThreadID: 1, Message: "hi", ProtectCode: "tok"}
	cand := &record.Record{Message: "other", ProtectCode: "tok"}

	res := Validate(cand, snap(existing), defaultRules, 10_000)
	assert.Equal(t, RateLimited, res.Status)
}

func TestValidate_EmptyHostAndProtectCodeExempt(t *testing.T) {
	// An empty host or protect code means the value was never captured
	// (proxy, legacy line). Two such posts share nothing, so neither the
	// cooldown nor the reuse check may match empty against empty.
	existing := &record.Record{Timestamp: 990, PostID: 1, ThreadID: 1, Message: "hi"}
	cand := &record.Record{Message: "other"}

	res := Validate(cand, snap(existing), defaultRules, 1000)
	assert.Equal(t, Accepted, res.Status)
}

func TestValidate_ResolvesThreadThroughReply(t *testing.T) {
	root := &record.Record{Timestamp: 100, PostID: 5, ThreadID: 5, Message: "root"}
	reply := &record.Record{Timestamp: 200, PostID: 6, ThreadID: 5, RefID: 5, Message: "reply"}

	// Reply to the root resolves to the root's thread.
	res := Validate(&record.Record{RefID: 5, Message: "x"}, snap(reply, root), defaultRules, 10_000)
	assert.Equal(t, Accepted, res.Status)
	assert.Equal(t, int64(5), res.ThreadID)

	// Reply to the reply flattens to the same root thread.
	res = Validate(&record.Record{RefID: 6, Message: "y"}, snap(reply, root), defaultRules, 10_000)
	assert.Equal(t, Accepted, res.Status)
	assert.Equal(t, int64(5), res.ThreadID)
}

func TestValidate_UnresolvedRefIsAccepted(t *testing.T) {
	existing := &record.Record{Timestamp: 100, PostID: 1, ThreadID: 1, Message: "hi"}
	res := Validate(&record.Record{RefID: 99, Message: "x"}, snap(existing), defaultRules, 10_000)
	assert.Equal(t, Accepted, res.Status)
	assert.Zero(t, res.ThreadID, "dangling reference resolves to nothing")
}

func TestValidate_ViolationAfterReferenceStillRejects(t *testing.T) {
	// The reference target sits at the top of the scan; the duplicate is
	// older. The scan must keep going past the resolved reference and
	// still reject.
	root := &record.Record{Timestamp: 100, PostID: 5, ThreadID: 5, Message: "same text"}
	newest := &record.Record{Timestamp: 200, PostID: 6, ThreadID: 6, Message: "unrelated"}

	res := Validate(&record.Record{RefID: 6, Message: "same text"}, snap(newest, root), defaultRules, 10_000)
	assert.Equal(t, DuplicateContent, res.Status)
}

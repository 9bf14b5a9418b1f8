package record

import (
	"errors"
	"strconv"
	"strings"
)

// Log line layout (11 fixed fields, comma-separated, '\n' terminated):
//
//	timestamp,postId,protectCode,threadId,host,agent,user,mail,title,message,refId
//
// Free-text fields (agent..message) escape literal commas to the sentinel
// "&#44;" before the join. Encode additionally escapes '&' to "&amp;" so a
// message that contains the sentinel text itself survives a round trip;
// legacy lines written without the amp-escape still decode correctly
// because a bare '&' is left untouched on the way out.
const (
	commaSentinel = "&#44;"
	ampSentinel   = "&amp;"

	// minFields is the smallest field count a line may have and still be
	// a post. Shorter lines are corrupt and skipped by readers.
	minFields = 10

	fixedFields = 11
)

var ErrMalformed = errors.New("malformed log line")

// Encode renders r as a single log line including the trailing newline.
// A record never spans lines: the caller keeps '\r' as the in-message
// line separator, and Encode strips any stray '\n' from free text so the
// record terminator stays unambiguous.
func Encode(r *Record) string {
	fields := make([]string, 0, fixedFields+len(r.Reserved))
	fields = append(fields,
		strconv.FormatInt(r.Timestamp, 10),
		strconv.FormatInt(r.PostID, 10),
		r.ProtectCode,
		strconv.FormatInt(r.ThreadID, 10),
		r.Host,
		escapeField(r.Agent),
		escapeField(r.User),
		escapeField(r.Mail),
		escapeField(r.Title),
		escapeField(r.Message),
		encodeRef(r.RefID),
	)
	for _, s := range r.Reserved {
		fields = append(fields, escapeField(s))
	}
	return strings.Join(fields, ",") + "\n"
}

// Decode parses one log line (with or without the trailing newline) into a
// Record. Lines with fewer than 10 fields return ErrMalformed; callers
// reading whole files skip those lines and keep going.
func Decode(line string) (*Record, error) {
	line = strings.TrimSuffix(line, "\n")
	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		return nil, ErrMalformed
	}

	r := &Record{
		Timestamp:   parseInt(fields[0]),
		PostID:      parseInt(fields[1]),
		ProtectCode: fields[2],
		ThreadID:    parseInt(fields[3]),
		Host:        fields[4],
		Agent:       unescapeField(fields[5]),
		User:        unescapeField(fields[6]),
		Mail:        unescapeField(fields[7]),
		Title:       unescapeField(fields[8]),
		Message:     unescapeField(fields[9]),
	}
	if len(fields) > 10 {
		r.RefID = parseInt(fields[10])
	}
	if len(fields) > fixedFields {
		for _, s := range fields[fixedFields:] {
			r.Reserved = append(r.Reserved, unescapeField(s))
		}
	}
	return r, nil
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "&", ampSentinel)
	s = strings.ReplaceAll(s, ",", commaSentinel)
	return strings.ReplaceAll(s, "\n", "\r")
}

func unescapeField(s string) string {
	s = strings.ReplaceAll(s, commaSentinel, ",")
	return strings.ReplaceAll(s, ampSentinel, "&")
}

func encodeRef(ref int64) string {
	if ref <= 0 {
		return ""
	}
	return strconv.FormatInt(ref, 10)
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// DecodeAll parses many lines, silently dropping malformed ones. The main
// log tolerates corrupt lines rather than failing the whole read.
func DecodeAll(lines []string) []*Record {
	out := make([]*Record, 0, len(lines))
	for _, line := range lines {
		r, err := Decode(line)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

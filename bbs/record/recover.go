package record

import "unicode/utf8"

// RecoverLegacyText repairs free text that was UTF-8 on disk but got read
// through a latin1 round trip (old log files migrated from pre-Unicode
// deployments show up this way). Returns the repaired string and whether
// anything changed.
func RecoverLegacyText(s string) (string, bool) {
	if s == "" {
		return s, false
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s, false
		}
		b = append(b, byte(r))
	}
	if !utf8.Valid(b) {
		return s, false
	}
	recovered := string(b)
	if recovered == s {
		return s, false
	}
	return recovered, true
}

// RecoverLegacyFields applies RecoverLegacyText to every free-text field
// of r in place. Used when reading archive files written by the old board.
func RecoverLegacyFields(r *Record) bool {
	changed := false
	for _, p := range []*string{&r.Agent, &r.User, &r.Mail, &r.Title, &r.Message} {
		if fixed, ok := RecoverLegacyText(*p); ok {
			*p = fixed
			changed = true
		}
	}
	return changed
}

package record

// A Record is one board post, stored as one comma-separated line in the
// main log and in archive files. The main log is newest-first: the line
// at index 0 is the most recent post.
type Record struct {
	Timestamp   int64  // epoch seconds, set at write time
	PostID      int64  // positive, unique, assigned under the log lock
	ProtectCode string // single-use resubmission token
	ThreadID    int64  // root's PostID; equals PostID for a root post
	Host        string // poster origin host, may be empty
	Agent       string
	User        string
	Mail        string
	Title       string
	Message     string // '\r' is the in-message line separator; '\n' never appears
	RefID       int64  // PostID this post replies to; 0 means new thread root

	// Trailing slots some deployments append after RefID. Preserved as-is
	// so rewriting a file does not drop them.
	Reserved []string
}

// IsRoot reports whether the record starts its own thread.
func (r *Record) IsRoot() bool {
	return r.RefID == 0
}

// Thread returns the record's thread id, falling back to its own PostID
// for records written before thread ids were stamped.
func (r *Record) Thread() int64 {
	if r.ThreadID > 0 {
		return r.ThreadID
	}
	return r.PostID
}

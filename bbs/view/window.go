// Package view computes which slice of the newest-first log a request
// should display. Pure index arithmetic: nothing here touches storage.
package view

// Params are the client-visible paging inputs.
type Params struct {
	LogLength    int   // number of records currently in the log
	NewestPostID int64 // post id at index 0, 0 for an empty log
	LastSeenID   int64 // the viewer's unread pointer (last post id seen)
	Unread       bool  // show only posts newer than LastSeenID
	Begin        int   // requested start offset into the log
	Count        int   // requested page size
}

// Window is a half-open index range [Begin, End) over the newest-first
// log, plus Last, the inclusive index of the final displayed record (-1
// when the window is empty).
type Window struct {
	Begin int
	End   int
	Last  int
}

// Compute clamps the request to the log. Total over all inputs: negative
// or zero page sizes mean "show nothing", out-of-range offsets collapse
// to an empty window at the log edge, and an unread request covers
// exactly the posts assigned after the viewer's pointer.
func Compute(p Params) Window {
	if p.Count <= 0 || p.LogLength <= 0 {
		return empty(clampIndex(p.Begin, p.LogLength))
	}

	begin := clampIndex(p.Begin, p.LogLength)
	end := begin + p.Count

	if p.Unread {
		// Posts are newest-first and ids dense enough that the count of
		// unseen posts is the id distance to the pointer.
		unseen := int(p.NewestPostID - p.LastSeenID)
		if unseen <= 0 {
			return empty(0)
		}
		begin = 0
		end = unseen
	}

	if end > p.LogLength {
		end = p.LogLength
	}
	if end <= begin {
		return empty(begin)
	}
	return Window{Begin: begin, End: end, Last: end - 1}
}

// Empty reports whether the window selects nothing.
func (w Window) Empty() bool { return w.End <= w.Begin }

// Len returns the number of records the window selects.
func (w Window) Len() int {
	if w.Empty() {
		return 0
	}
	return w.End - w.Begin
}

func empty(at int) Window {
	return Window{Begin: at, End: at, Last: -1}
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

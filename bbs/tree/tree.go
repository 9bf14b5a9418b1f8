// Package tree reconstructs reply trees from the flat, newest-first log.
// The log stores no structure beyond each post's refId, so the tree is
// rebuilt transiently on every request. Worst case is quadratic in the
// number of records, which is fine only because the main log is bounded;
// callers must not feed unbounded inputs through this.
package tree

import (
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

// Node is one post with its direct replies, in input order.
type Node struct {
	Post     *record.Record
	Children []*Node
}

// Build groups records into threads and builds each thread's reply tree.
// Roots come out in the order their most recent constituent post appears
// in the input (for a newest-first log: most recently active thread
// first). A thread whose structural root fell out of the window is
// dropped, as is any record whose refId cannot be found within its own
// thread; neither is an error.
func Build(records []*record.Record) []*Node {
	remaining := make([]*record.Record, len(records))
	copy(remaining, records)

	var roots []*Node
	for len(remaining) > 0 {
		anchor := remaining[0]
		threadID := anchor.Thread()

		bag, rest := collectThread(remaining, threadID)
		remaining = rest

		root, bag := detach(bag, threadID)
		if root == nil {
			continue
		}
		roots = append(roots, buildNode(root, &bag))
	}
	return roots
}

// collectThread splits remaining into the records belonging to threadID
// (the bag, input order preserved) and everything else. Collection stops
// at the structural root: a record whose postId equals the thread id.
// The anchor itself is exempt from the stop scan, so anchoring on the
// root (an oldest-first window, or a root-only thread) still collects
// the whole thread; the early stop only fires when a reply-anchored
// scan reaches the root deeper in the list.
func collectThread(remaining []*record.Record, threadID int64) (bag, rest []*record.Record) {
	stop := len(remaining)
	for i, r := range remaining[1:] {
		if r.PostID == threadID {
			stop = i + 2
			break
		}
	}
	for i, r := range remaining {
		if i < stop && (r.Thread() == threadID || r.PostID == threadID) {
			bag = append(bag, r)
		} else {
			rest = append(rest, r)
		}
	}
	return bag, rest
}

// detach removes the record with the given post id from the bag.
func detach(bag []*record.Record, postID int64) (*record.Record, []*record.Record) {
	for i, r := range bag {
		if r.PostID == postID {
			return r, append(bag[:i:i], bag[i+1:]...)
		}
	}
	return nil, bag
}

// buildNode attaches the direct replies of parent from the bag and
// recurses into each. The bag shrinks as records are claimed, so a record
// is attached at most once even if ids repeat.
func buildNode(parent *record.Record, bag *[]*record.Record) *Node {
	node := &Node{Post: parent}

	var children []*record.Record
	kept := (*bag)[:0]
	for _, r := range *bag {
		if r.RefID == parent.PostID {
			children = append(children, r)
		} else {
			kept = append(kept, r)
		}
	}
	*bag = kept

	for _, c := range children {
		node.Children = append(node.Children, buildNode(c, bag))
	}
	return node
}

// Count returns the number of posts in the subtree rooted at n.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Flatten returns the subtree's records in depth-first order, root first.
func (n *Node) Flatten() []*record.Record {
	out := []*record.Record{n.Post}
	for _, c := range n.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}

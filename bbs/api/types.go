package api

import (
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/tree"
)

// PostItem is the JSON shape of one log record. The protect code never
// leaves the server.
type PostItem struct {
	PostID    int64  `json:"postId"`
	ThreadID  int64  `json:"threadId"`
	Timestamp int64  `json:"timestamp"`
	Host      string `json:"host,omitempty"`
	Agent     string `json:"agent,omitempty"`
	User      string `json:"user"`
	Mail      string `json:"mail,omitempty"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RefID     int64  `json:"refId,omitempty"`
}

func toPostItem(r *record.Record) PostItem {
	return PostItem{
		PostID:    r.PostID,
		ThreadID:  r.Thread(),
		Timestamp: r.Timestamp,
		Host:      r.Host,
		Agent:     r.Agent,
		User:      r.User,
		Mail:      r.Mail,
		Title:     r.Title,
		Message:   r.Message,
		RefID:     r.RefID,
	}
}

func toPostItems(recs []*record.Record) []PostItem {
	out := make([]PostItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, toPostItem(r))
	}
	return out
}

// ThreadNode is a reply tree rendered to JSON.
type ThreadNode struct {
	Post     PostItem     `json:"post"`
	Children []ThreadNode `json:"children,omitempty"`
}

func toThreadNodes(nodes []*tree.Node) []ThreadNode {
	out := make([]ThreadNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ThreadNode{
			Post:     toPostItem(n.Post),
			Children: toThreadNodes(n.Children),
		})
	}
	return out
}

type submitRequest struct {
	ProtectCode string `json:"protectCode"`
	User        string `json:"user"`
	Mail        string `json:"mail"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	RefID       int64  `json:"refId"`
}

type submitResponse struct {
	Status string `json:"status"`
	PostID int64  `json:"postId,omitempty"`
}

type postsResponse struct {
	Posts  []PostItem `json:"posts"`
	Begin  int        `json:"begin"`
	End    int        `json:"end"`
	Total  int        `json:"total"`
	Newest int64      `json:"newestPostId"`
}

type threadsResponse struct {
	Threads []ThreadNode `json:"threads"`
	Total   int          `json:"total"`
}

type formResponse struct {
	ProtectCode string `json:"protectCode"`
}

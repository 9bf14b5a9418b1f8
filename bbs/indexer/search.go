package indexer

import (
	"context"
	"strings"
)

type SearchPostsParams struct {
	Query    string // substring match over title and message
	User     string
	Host     string
	ThreadID int64
	SinceTS  int64
	UntilTS  int64
	Limit    int
	Offset   int
}

type SearchPostResult struct {
	PostID      int64  `json:"postId"`
	ThreadID    int64  `json:"threadId"`
	Timestamp   int64  `json:"timestamp"`
	Host        string `json:"host"`
	User        string `json:"user"`
	Mail        string `json:"mail"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	RefID       int64  `json:"refId"`
	ArchiveFile string `json:"archiveFile"`
}

func (i *Indexer) SearchPosts(ctx context.Context, p SearchPostsParams) ([]SearchPostResult, error) {
	if i.db == nil {
		return nil, ErrIndexerClosed
	}

	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	where = append(where, "1=1")
	if p.Query != "" {
		where = append(where, "(message LIKE ? OR title LIKE ?)")
		pat := "%" + p.Query + "%"
		args = append(args, pat, pat)
	}
	if p.User != "" {
		where = append(where, "user = ?")
		args = append(args, p.User)
	}
	if p.Host != "" {
		where = append(where, "host = ?")
		args = append(args, p.Host)
	}
	if p.ThreadID != 0 {
		where = append(where, "thread_id = ?")
		args = append(args, p.ThreadID)
	}
	if p.SinceTS != 0 {
		where = append(where, "ts >= ?")
		args = append(args, p.SinceTS)
	}
	if p.UntilTS != 0 {
		where = append(where, "ts <= ?")
		args = append(args, p.UntilTS)
	}

	q := `
		SELECT post_id, thread_id, ts, host, user, mail, title, message, ref_id, archive_file
		FROM posts
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY post_id DESC
		LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset)

	rows, err := i.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SearchPostResult, 0, p.Limit)
	for rows.Next() {
		var r SearchPostResult
		if err := rows.Scan(&r.PostID, &r.ThreadID, &r.Timestamp, &r.Host, &r.User, &r.Mail,
			&r.Title, &r.Message, &r.RefID, &r.ArchiveFile); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/board"
	bbsindexer "github.com/moccorine/legacy-kuzuha-php-sub000/bbs/indexer"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/logstore"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/tree"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/view"
	"github.com/moccorine/legacy-kuzuha-php-sub000/internal/logging"
)

// Server is the thin JSON layer over the board engine. It parses requests
// and maps outcomes to status codes; all board rules live below it.
type Server struct {
	Log     *logstore.Store
	Board   *board.Service
	Archive *archive.Store     // nil disables archive browsing
	Indexer *bbsindexer.Indexer // nil disables search
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /api/v1/posts", s.listPosts)
	mux.HandleFunc("POST /api/v1/posts", s.submitPost)
	mux.HandleFunc("GET /api/v1/posts/form", s.postForm)
	mux.HandleFunc("DELETE /api/v1/posts/{postId}", s.deletePost)
	mux.HandleFunc("GET /api/v1/threads", s.listThreads)
	mux.HandleFunc("GET /api/v1/search/posts", s.searchPosts)
	mux.HandleFunc("GET /api/v1/archives", s.listArchives)
	mux.HandleFunc("GET /api/v1/archives/{filename}", s.getArchive)

	return mux
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Log.Records()
	if err != nil {
		s.storageError(w, err)
		return
	}

	win := view.Compute(windowParams(r, recs))
	page := recs[win.Begin:win.End]

	writeJSON(w, http.StatusOK, postsResponse{
		Posts:  toPostItems(page),
		Begin:  win.Begin,
		End:    win.End,
		Total:  len(recs),
		Newest: newestID(recs),
	})
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Log.Records()
	if err != nil {
		s.storageError(w, err)
		return
	}

	win := view.Compute(windowParams(r, recs))
	roots := tree.Build(recs[win.Begin:win.End])

	writeJSON(w, http.StatusOK, threadsResponse{
		Threads: toThreadNodes(roots),
		Total:   len(recs),
	})
}

func (s *Server) submitPost(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := s.Board.Submit(r.Context(), board.Candidate{
		ProtectCode: req.ProtectCode,
		Host:        requestHost(r),
		Agent:       r.UserAgent(),
		User:        req.User,
		Mail:        req.Mail,
		Title:       req.Title,
		Message:     req.Message,
		RefID:       req.RefID,
	})
	if err != nil {
		s.storageError(w, err)
		return
	}
	if res.ArchiveErr != nil {
		logging.Warn.Printf("api submit: post %d saved but archive write failed: %v", res.PostID, res.ArchiveErr)
	}

	switch res.Status {
	case board.Accepted:
		writeJSON(w, http.StatusCreated, submitResponse{Status: res.Status.String(), PostID: res.PostID})
	case board.DuplicateContent:
		writeJSON(w, http.StatusConflict, submitResponse{Status: res.Status.String()})
	case board.RateLimited:
		writeJSON(w, http.StatusTooManyRequests, submitResponse{Status: res.Status.String()})
	case board.AdminActivation:
		writeJSON(w, http.StatusOK, submitResponse{Status: res.Status.String()})
	default:
		writeError(w, http.StatusInternalServerError, "unknown outcome")
	}
}

func (s *Server) postForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formResponse{ProtectCode: board.NewProtectCode()})
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("postId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	found, err := s.Board.Delete(r.Context(), id)
	if err != nil {
		s.storageError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if s.Indexer != nil {
		if err := s.Indexer.DeletePost(r.Context(), id); err != nil {
			logging.Warn.Printf("api delete: post %d removed but index cleanup failed: %v", id, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchPosts(w http.ResponseWriter, r *http.Request) {
	if s.Indexer == nil {
		writeError(w, http.StatusNotFound, "search is disabled")
		return
	}

	q := r.URL.Query()
	limit, offset := parseLimitOffset(r, 50, 0, 200)
	res, err := s.Indexer.SearchPosts(r.Context(), bbsindexer.SearchPostsParams{
		Query:    q.Get("q"),
		User:     q.Get("user"),
		Host:     q.Get("host"),
		ThreadID: parseInt64(q.Get("threadId")),
		SinceTS:  parseInt64(q.Get("since")),
		UntilTS:  parseInt64(q.Get("until")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		logging.Error.Printf("api search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "archive is disabled")
		return
	}
	names, err := s.Archive.List()
	if err != nil {
		s.storageError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "archive is disabled")
		return
	}
	lines, err := s.Archive.GetAll(r.PathValue("filename"))
	if errors.Is(err, archive.ErrBadFilename) {
		writeError(w, http.StatusBadRequest, "invalid archive filename")
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, "archive file not found")
		return
	}
	recs := record.DecodeAll(lines)
	for _, rec := range recs {
		record.RecoverLegacyFields(rec)
	}
	writeJSON(w, http.StatusOK, toPostItems(recs))
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	logging.Error.Printf("api storage: %v", err)
	if errors.Is(err, logstore.ErrStorageBusy) {
		writeError(w, http.StatusServiceUnavailable, "board is busy, retry")
		return
	}
	writeError(w, http.StatusInternalServerError, "storage unavailable")
}

func windowParams(r *http.Request, recs []*record.Record) view.Params {
	q := r.URL.Query()
	count := 20
	if v := q.Get("count"); v != "" {
		count = int(parseInt64(v))
	}
	return view.Params{
		LogLength:    len(recs),
		NewestPostID: newestID(recs),
		LastSeenID:   parseInt64(q.Get("lastSeen")),
		Unread:       q.Get("unread") == "1" || q.Get("unread") == "true",
		Begin:        int(parseInt64(q.Get("begin"))),
		Count:        count,
	}
}

func newestID(recs []*record.Record) int64 {
	if len(recs) == 0 {
		return 0
	}
	return recs[0].PostID
}

func requestHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseLimitOffset(r *http.Request, defLimit, defOffset, maxLimit int) (int, int) {
	q := r.URL.Query()
	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := defOffset
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

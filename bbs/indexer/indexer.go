package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

var ErrIndexerClosed = errors.New("indexer closed")

// Indexer maintains a SQLite search index over the archive's period
// files. The archive stays canonical: the index is derived state and can
// be rebuilt from the files at any time.
type Indexer struct {
	db *sql.DB
}

func Open(path string) (*Indexer, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ix := &Indexer{db: db}
	if err := ix.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ix, nil
}

func (i *Indexer) Close() error {
	if i.db == nil {
		return nil
	}
	err := i.db.Close()
	i.db = nil
	return err
}

func (i *Indexer) migrate(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			post_id      INTEGER PRIMARY KEY,
			thread_id    INTEGER NOT NULL,
			ts           INTEGER NOT NULL,
			host         TEXT NOT NULL DEFAULT '',
			user         TEXT NOT NULL DEFAULT '',
			mail         TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			ref_id       INTEGER NOT NULL DEFAULT 0,
			archive_file TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_thread ON posts(thread_id);
		CREATE INDEX IF NOT EXISTS idx_posts_ts ON posts(ts);
		CREATE INDEX IF NOT EXISTS idx_posts_file ON posts(archive_file);

		CREATE TABLE IF NOT EXISTS archive_files (
			name  TEXT PRIMARY KEY,
			bytes INTEGER NOT NULL
		);
	`)
	return err
}

// SyncArchive ingests every period file whose size changed since the last
// sync. Changed files are re-read whole: deletions rewrite the file in
// place, so a plain tail read would miss them.
func (i *Indexer) SyncArchive(ctx context.Context, st *archive.Store) error {
	if i.db == nil {
		return ErrIndexerClosed
	}

	names, err := st.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		size, err := st.Size(name)
		if err != nil {
			return err
		}
		known, err := i.knownSize(ctx, name)
		if err != nil {
			return err
		}
		if known == size {
			continue
		}
		if err := i.ingestFile(ctx, st, name, size); err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
	}
	return nil
}

func (i *Indexer) knownSize(ctx context.Context, name string) (int64, error) {
	var size int64
	err := i.db.QueryRowContext(ctx, `SELECT bytes FROM archive_files WHERE name = ?`, name).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	return size, err
}

func (i *Indexer) ingestFile(ctx context.Context, st *archive.Store, name string, size int64) error {
	lines, err := st.GetAll(name)
	if err != nil {
		return err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE archive_file = ?`, name); err != nil {
		return err
	}
	for _, line := range lines {
		r, err := record.Decode(line)
		if err != nil {
			continue // corrupt archive lines are skipped, like main-log reads
		}
		record.RecoverLegacyFields(r)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posts (post_id, thread_id, ts, host, user, mail, title, message, ref_id, archive_file)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(post_id) DO UPDATE SET
				thread_id = excluded.thread_id,
				ts = excluded.ts,
				message = excluded.message,
				archive_file = excluded.archive_file
		`, r.PostID, r.Thread(), r.Timestamp, r.Host, r.User, r.Mail, r.Title, r.Message, r.RefID, name); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archive_files (name, bytes) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET bytes = excluded.bytes
	`, name, size); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePost drops one post from the index. Called after a moderation
// delete so search stops returning the post immediately instead of at
// the next sync.
func (i *Indexer) DeletePost(ctx context.Context, postID int64) error {
	if i.db == nil {
		return ErrIndexerClosed
	}
	_, err := i.db.ExecContext(ctx, `DELETE FROM posts WHERE post_id = ?`, postID)
	return err
}

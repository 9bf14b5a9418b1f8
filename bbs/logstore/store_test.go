package logstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "bbs.log"))
	require.NoError(t, s.Init())
	return s
}

func mustPrepend(t *testing.T, s *Store, rec *record.Record, max int) {
	t.Helper()
	require.NoError(t, s.Lock(context.Background()))
	defer s.Unlock()
	require.NoError(t, s.Prepend(rec, max))
}

func TestNextPostID_EmptyLog(t *testing.T) {
	s := newTestStore(t)
	id, err := s.NextPostID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestGetAll_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.log"))
	_, err := s.GetAll()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestPrepend_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	for i := int64(1); i <= 3; i++ {
		mustPrepend(t, s, &record.Record{Timestamp: 100 + i, PostID: i, ThreadID: i, Message: "m"}, 10)
	}

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(3), recs[0].PostID)
	assert.Equal(t, int64(1), recs[2].PostID)

	id, err := s.NextPostID()
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
}

func TestPrepend_TruncatesToMaxEntries(t *testing.T) {
	s := newTestStore(t)
	const max = 10
	for i := int64(1); i <= max+5; i++ {
		mustPrepend(t, s, &record.Record{Timestamp: i, PostID: i, ThreadID: i}, max)
	}

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, max)
	for i, r := range recs {
		assert.Equal(t, int64(15-i), r.PostID, "newest-first, most recent ids kept")
	}
}

func TestPrepend_RequiresLock(t *testing.T) {
	s := newTestStore(t)
	err := s.Prepend(&record.Record{PostID: 1, ThreadID: 1}, 10)
	assert.Error(t, err)
}

func TestDeleteByID(t *testing.T) {
	s := newTestStore(t)
	for i := int64(1); i <= 3; i++ {
		mustPrepend(t, s, &record.Record{Timestamp: i, PostID: i, ThreadID: i}, 10)
	}

	ok, err := s.DeleteByID(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].PostID)
	assert.Equal(t, int64(1), recs[1].PostID)

	ok, err = s.DeleteByID(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok, "second delete of the same id finds nothing")
}

func TestRecords_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbs.log")
	content := "1700000002,2,pc,1,h,a,u,m,t,second,1\n" +
		"garbage,with,4,fields\n" +
		"1700000001,1,pc,1,h,a,u,m,t,first,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := New(path)
	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].PostID)
	assert.Equal(t, int64(1), recs[1].PostID)
}

func TestLock_Scoped(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Lock(context.Background()))

	// A second locker makes progress only after the first releases.
	acquired := make(chan struct{})
	go func() {
		if err := s.Lock(context.Background()); err != nil {
			t.Error(err)
			return
		}
		close(acquired)
		s.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held elsewhere")
	default:
	}

	require.NoError(t, s.Unlock())
	<-acquired
}

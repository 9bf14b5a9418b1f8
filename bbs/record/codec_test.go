package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := &Record{
		Timestamp:   1700000000,
		PostID:      42,
		ProtectCode: "pc-1234",
		ThreadID:    40,
		Host:        "host.example",
		Agent:       "Mozilla/5.0 (X11; Linux)",
		User:        "alice",
		Mail:        "alice@example.com",
		Title:       "hello",
		Message:     "first line\rsecond line",
		RefID:       40,
	}

	line := Encode(in)
	require.True(t, strings.HasSuffix(line, "\n"))
	require.Equal(t, 1, strings.Count(line, "\n"), "a record never spans lines")

	out, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDecode_EscapesCommasAndSentinel(t *testing.T) {
	cases := []string{
		"a,b,c",
		"trailing comma,",
		",leading comma",
		"literal sentinel &#44; in text",
		"amp & comma , together",
		"&amp; pre-escaped looking",
		"cr\rinside,field",
	}
	for _, msg := range cases {
		in := &Record{Timestamp: 1, PostID: 2, ThreadID: 2, User: msg, Title: msg, Message: msg}
		out, err := Decode(Encode(in))
		require.NoError(t, err, "message=%q", msg)
		assert.Equal(t, msg, out.Message, "message=%q", msg)
		assert.Equal(t, msg, out.Title)
		assert.Equal(t, msg, out.User)
	}
}

func TestEncode_RootHasEmptyRef(t *testing.T) {
	line := Encode(&Record{Timestamp: 9, PostID: 3, ThreadID: 3})
	require.True(t, strings.HasSuffix(line, ",\n"), "empty refId renders as trailing empty field: %q", line)

	out, err := Decode(line)
	require.NoError(t, err)
	assert.True(t, out.IsRoot())
	assert.Zero(t, out.RefID)
}

func TestDecode_LegacyLine(t *testing.T) {
	// A line as the old board wrote it: comma sentinel but no amp-escape.
	line := "1600000000,7,pc,5,h.example,agent,bob,,re&#44; hello,body text&#44; with comma,5\n"
	r, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.PostID)
	assert.Equal(t, int64(5), r.ThreadID)
	assert.Equal(t, "re, hello", r.Title)
	assert.Equal(t, "body text, with comma", r.Message)
	assert.Equal(t, int64(5), r.RefID)
}

func TestDecode_Malformed(t *testing.T) {
	for _, line := range []string{"", "1,2,3,4", "only,four,fields,here"} {
		_, err := Decode(line)
		assert.ErrorIs(t, err, ErrMalformed, "line=%q", line)
	}
}

func TestDecode_TenFieldsIsValid(t *testing.T) {
	// Oldest format: no refId field at all.
	r, err := Decode("1,2,pc,2,h,a,u,m,t,msg")
	require.NoError(t, err)
	assert.Zero(t, r.RefID)
	assert.Equal(t, "msg", r.Message)
	assert.Empty(t, r.Reserved)

	// Same line landing in a bulk read is kept, not dropped.
	recs := DecodeAll([]string{"1,2,pc,2,h,a,u,m,t,msg"})
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].PostID)
}

func TestDecode_PreservesReservedSlots(t *testing.T) {
	line := "1,2,pc,2,h,a,u,m,t,msg,,x1,x2,x3\n"
	r, err := Decode(line)
	require.NoError(t, err)
	require.Equal(t, []string{"x1", "x2", "x3"}, r.Reserved)

	out, err := Decode(Encode(r))
	require.NoError(t, err)
	assert.Equal(t, r, out)
}

func TestDecodeAll_SkipsMalformed(t *testing.T) {
	lines := []string{
		"1700000002,2,pc2,1,h,a,u,m,t,second,1",
		"short,line",
		"1700000001,1,pc1,1,h,a,u,m,t,first,",
	}
	recs := DecodeAll(lines)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].PostID)
	assert.Equal(t, int64(1), recs[1].PostID)
}

func TestRecoverLegacyText(t *testing.T) {
	// "あ" (UTF-8 e3 81 82) mis-read as latin1 becomes three runes.
	misread := string([]rune{0xE3, 0x81, 0x82})
	fixed, ok := RecoverLegacyText(misread)
	assert.True(t, ok)
	assert.Equal(t, "あ", fixed)

	same, ok := RecoverLegacyText("plain ascii")
	assert.False(t, ok)
	assert.Equal(t, "plain ascii", same)

	wide, ok := RecoverLegacyText("already あ fine")
	assert.False(t, ok)
	assert.Equal(t, "already あ fine", wide)
}

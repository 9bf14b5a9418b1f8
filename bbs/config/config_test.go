package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bbs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, archive.Daily, cfg.ArchiveGranularity())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/bbs
log_save: 500
archive:
  granularity: monthly
  max_bytes: 1048576
admin:
  word: open sesame
  credential_hash: hmac256:abc
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.LogSave)
	assert.Equal(t, Default().CheckCount, cfg.CheckCount, "unset keys keep defaults")
	assert.Equal(t, archive.Monthly, cfg.ArchiveGranularity())
	assert.Equal(t, "open sesame", cfg.Admin.Word)
	assert.Equal(t, "/srv/bbs/bbs.log", cfg.LogPath())
	assert.Equal(t, "/srv/bbs/oldlog", cfg.ArchiveDir())
}

func TestLoad_AbsolutePathsLeftAlone(t *testing.T) {
	path := writeConfig(t, "log_file: /var/log/board.log\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/board.log", cfg.LogPath())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	for name, content := range map[string]string{
		"zero log_save":   "log_save: 0\n",
		"bad granularity": "archive:\n  granularity: weekly\n",
	} {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

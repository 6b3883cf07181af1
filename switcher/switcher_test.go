package switcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"themectl/theme"
)

const multiSchemeCSS = `/*
Theme: nord
Scheme: default
*/
[data-scheme="default"] { --bg: #2e3440; }

/*
Theme: nord
Scheme: light
*/
[data-scheme="light"] { --bg: #eceff4; }

/* Base CSS */
body { background: var(--bg); }
`

func newTestSwitcher(t *testing.T, themes map[string]string) (*Switcher, string) {
	t.Helper()

	dir := t.TempDir()
	themesDir := filepath.Join(dir, "themes")
	require.NoError(t, os.MkdirAll(themesDir, 0o755))
	for name, content := range themes {
		require.NoError(t, os.WriteFile(filepath.Join(themesDir, name), []byte(content), 0o644))
	}

	registry, err := theme.NewRegistry(themesDir, zap.NewNop())
	require.NoError(t, err)

	active := filepath.Join(dir, "docs", "style.css")
	return New(registry, active, zap.NewNop()), active
}

func TestApplyCopiesThemeVerbatim(t *testing.T) {
	content := "body { color: #111; }\n/* trailing comment */\n"
	sw, active := newTestSwitcher(t, map[string]string{"minimal.css": content})

	require.NoError(t, sw.Apply("minimal", ""))

	got, err := os.ReadFile(active)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "active stylesheet must match the theme file byte-for-byte")
}

func TestApplyPreservesPreviousFileAsBackup(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{"minimal.css": "a{}"})

	prev := "/* hand-written stylesheet */\nbody { font-family: serif; }\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(active), 0o755))
	require.NoError(t, os.WriteFile(active, []byte(prev), 0o644))

	require.NoError(t, sw.Apply("minimal", ""))

	backup, err := os.ReadFile(sw.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, prev, string(backup), "backup must preserve the previous file verbatim")
}

func TestApplyNoBackupWhenNothingActive(t *testing.T) {
	sw, _ := newTestSwitcher(t, map[string]string{"minimal.css": "a{}"})

	require.NoError(t, sw.Apply("minimal", ""))

	_, err := os.Stat(sw.BackupPath())
	assert.True(t, os.IsNotExist(err))
}

func TestApplyUnknownThemeListsAvailable(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{
		"alpha.css": "a{}",
		"beta.css":  "b{}",
	})

	err := sw.Apply("missing", "")
	require.Error(t, err)

	var unknown *UnknownThemeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
	assert.Equal(t, []string{"alpha", "beta"}, unknown.Available)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "beta")

	_, statErr := os.Stat(active)
	assert.True(t, os.IsNotExist(statErr), "failed switch must not create an active file")
}

func TestApplySchemes(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{"nord.css": multiSchemeCSS})

	require.NoError(t, sw.Apply("nord", "light"))
	got, err := os.ReadFile(active)
	require.NoError(t, err)
	assert.Contains(t, string(got), "--bg: #eceff4")
	assert.Contains(t, string(got), "background: var(--bg)")

	err = sw.Apply("nord", "sepia")
	var unknownScheme *UnknownSchemeError
	require.ErrorAs(t, err, &unknownScheme)
	assert.Contains(t, err.Error(), "default")
	assert.Contains(t, err.Error(), "light")
}

func TestApplySchemeOnSchemelessTheme(t *testing.T) {
	sw, _ := newTestSwitcher(t, map[string]string{"minimal.css": "a{}"})

	err := sw.Apply("minimal", "dark")
	var unknownScheme *UnknownSchemeError
	require.ErrorAs(t, err, &unknownScheme)
}

func TestApplyWriteFailureRestoresPrevious(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{
		"first.css":  "one{}",
		"second.css": "two{}",
	})

	require.NoError(t, sw.Apply("first", ""))

	// A directory squatting on the temp path makes the stylesheet write
	// fail after the backup has already been taken.
	require.NoError(t, os.MkdirAll(active+".tmp", 0o755))

	err := sw.Apply("second", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write stylesheet")
	assert.Contains(t, err.Error(), "previous stylesheet restored")

	got, readErr := os.ReadFile(active)
	require.NoError(t, readErr)
	assert.Equal(t, "one{}", string(got), "failed switch must leave the previous stylesheet in place")

	backup, readErr := os.ReadFile(sw.BackupPath())
	require.NoError(t, readErr)
	assert.Equal(t, "one{}", string(backup))
}

func TestRevert(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{
		"first.css":  "one{}",
		"second.css": "two{}",
	})

	require.NoError(t, sw.Apply("first", ""))
	require.NoError(t, sw.Apply("second", ""))

	require.NoError(t, sw.Revert())

	got, err := os.ReadFile(active)
	require.NoError(t, err)
	assert.Equal(t, "one{}", string(got))
}

func TestRevertWithoutBackup(t *testing.T) {
	sw, _ := newTestSwitcher(t, map[string]string{"minimal.css": "a{}"})

	assert.ErrorIs(t, sw.Revert(), ErrNoBackup)
}

func TestActiveMatches(t *testing.T) {
	sw, active := newTestSwitcher(t, map[string]string{"minimal.css": "a{}"})

	match, err := sw.ActiveMatches("minimal", "")
	require.NoError(t, err)
	assert.False(t, match, "nothing applied yet")

	require.NoError(t, sw.Apply("minimal", ""))

	match, err = sw.ActiveMatches("minimal", "")
	require.NoError(t, err)
	assert.True(t, match)

	require.NoError(t, os.WriteFile(active, []byte("edited externally"), 0o644))

	match, err = sw.ActiveMatches("minimal", "")
	require.NoError(t, err)
	assert.False(t, match)
}

package theme

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTheme(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	r, err := NewRegistry(dir, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRegistryScan(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "plain.css", "body { color: black; }")
	writeTheme(t, dir, "nord.css", sampleThemeCSS)
	writeTheme(t, dir, "notes.txt", "not a theme")

	r := newTestRegistry(t, dir)

	assert.ElementsMatch(t, []string{"nord", "plain"}, r.List())

	nord := r.Get("nord")
	require.NotNil(t, nord)
	assert.Len(t, nord.Schemes, 2)
	assert.Equal(t, "Nord", nord.Display)

	plain := r.Get("plain")
	require.NotNil(t, plain)
	assert.Empty(t, plain.Schemes)
	assert.Equal(t, "body { color: black; }", plain.BaseCSS)

	assert.Nil(t, r.Get("missing"))
}

func TestRegistryNameFromMetadata(t *testing.T) {
	dir := t.TempDir()
	// File stem and metadata name differ; metadata wins.
	writeTheme(t, dir, "v2-nord.css", sampleThemeCSS)

	r := newTestRegistry(t, dir)

	assert.NotNil(t, r.Get("nord"))
	assert.Nil(t, r.Get("v2-nord"))
}

func TestRegistryMissingDir(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	assert.Error(t, err)
}

func TestRegistryManifestOrdering(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "alpha.css", "a{}")
	writeTheme(t, dir, "beta.css", "b{}")
	writeTheme(t, dir, "gamma.css", "c{}")
	writeTheme(t, dir, ManifestName, "order:\n  - gamma\n  - beta\ndisplay:\n  gamma: Gamma Ray\n")

	r := newTestRegistry(t, dir)

	assert.Equal(t, []string{"gamma", "beta", "alpha"}, r.List())
	assert.Equal(t, "Gamma Ray", r.DisplayName("gamma"))
	assert.Equal(t, "Beta", r.DisplayName("beta"))
}

func TestRegistryMalformedManifestIgnored(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "alpha.css", "a{}")
	writeTheme(t, dir, ManifestName, ":\tnot yaml at all {{{")

	r := newTestRegistry(t, dir)

	assert.Equal(t, []string{"alpha"}, r.List())
}

func TestRegistryCSS(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "nord.css", sampleThemeCSS)

	r := newTestRegistry(t, dir)

	def := r.CSS("nord", "")
	assert.Contains(t, def, "--bg: #2e3440")
	assert.Contains(t, def, "background: var(--bg)")

	light := r.CSS("nord", "light")
	assert.Contains(t, light, "--bg: #eceff4")
	assert.Contains(t, light, "background: var(--bg)")

	assert.Empty(t, r.CSS("nord", "sepia"))
	assert.Empty(t, r.CSS("missing", ""))
}

func TestRegistrySchemesOrder(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "nord.css", sampleThemeCSS)

	r := newTestRegistry(t, dir)

	schemes := r.Schemes("nord")
	require.Len(t, schemes, 2)
	assert.Equal(t, "default", schemes[0].Name)
	assert.Equal(t, "light", schemes[1].Name)

	assert.Nil(t, r.Schemes("missing"))
}

// Exercises concurrent rescans against readers; fails under -race if the
// loaded set is swapped without synchronization.
func TestRegistryConcurrentRescanAndReads(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "nord.css", sampleThemeCSS)
	writeTheme(t, dir, "plain.css", "body{}")

	r := newTestRegistry(t, dir)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				assert.NoError(t, r.Rescan())
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = r.List()
					_ = r.Get("nord")
					_ = r.CSS("nord", "light")
					_ = r.Schemes("nord")
					_ = r.DisplayName("plain")
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.ElementsMatch(t, []string{"nord", "plain"}, r.List())
}

func TestRegistryRescan(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "alpha.css", "a{}")

	r := newTestRegistry(t, dir)
	require.Equal(t, []string{"alpha"}, r.List())

	writeTheme(t, dir, "beta.css", "b{}")
	require.NoError(t, r.Rescan())
	assert.Equal(t, []string{"alpha", "beta"}, r.List())

	require.NoError(t, os.Remove(filepath.Join(dir, "alpha.css")))
	require.NoError(t, r.Rescan())
	assert.Equal(t, []string{"beta"}, r.List())
}

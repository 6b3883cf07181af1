package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ManifestName is the optional manifest file inside the themes directory.
const ManifestName = "themes.yaml"

// Manifest carries curated ordering and display-name overrides for the
// themes in a directory. Themes not listed sort alphabetically after the
// listed ones.
type Manifest struct {
	Order   []string          `yaml:"order,omitempty"`
	Display map[string]string `yaml:"display,omitempty"`
}

// Registry holds the themes found in a directory on disk. Rescan may run
// from a watcher goroutine while HTTP handlers read, so all access to the
// loaded set goes through the mutex.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu       sync.RWMutex
	themes   map[string]*Info
	ordered  []string
	manifest Manifest
}

// NewRegistry scans dir for *.css theme files and loads them.
func NewRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		dir:    dir,
		logger: logger,
	}
	if err := r.Rescan(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the themes directory this registry scans.
func (r *Registry) Dir() string {
	return r.dir
}

// Rescan reloads all themes from the directory, replacing the previous set.
// The new set is built without the lock and swapped in atomically, so
// readers never observe a half-loaded registry.
func (r *Registry) Rescan() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read themes directory: %w", err)
	}

	manifest := Manifest{}
	if raw, err := os.ReadFile(filepath.Join(r.dir, ManifestName)); err == nil {
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			r.logger.Warn("ignoring malformed manifest",
				zap.String("file", ManifestName), zap.Error(err))
			manifest = Manifest{}
		}
	}

	themes := make(map[string]*Info)
	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".css") {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable theme",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		info := parseThemeFile(entry.Name(), path, string(raw))
		if override, ok := manifest.Display[info.Name]; ok {
			info.Display = override
		}
		themes[info.Name] = info
		names = append(names, info.Name)
	}

	ordered := orderNames(names, manifest.Order)

	r.mu.Lock()
	r.themes = themes
	r.ordered = ordered
	r.manifest = manifest
	r.mu.Unlock()

	r.logger.Debug("themes loaded",
		zap.Int("count", len(themes)), zap.Strings("names", ordered))

	return nil
}

// parseThemeFile builds an Info from one CSS file. The theme name comes from
// metadata when present, otherwise from the file stem. A file with no scheme
// blocks is treated as a single-scheme theme whose whole content is base CSS.
func parseThemeFile(fileName, path, content string) *Info {
	schemes, baseCSS := ParseSchemes(content)

	name := ""
	display := ""
	pos := 0
	for pos < len(content) {
		metaStart := strings.Index(content[pos:], "/*")
		if metaStart == -1 {
			break
		}
		metaStart += pos
		metaEnd := strings.Index(content[metaStart:], "*/")
		if metaEnd == -1 {
			break
		}
		metaEnd += metaStart
		if strings.Contains(content[metaStart:metaEnd], "Theme:") {
			meta := ParseMetadata(content[metaStart : metaEnd+2])
			if meta.Theme != "" {
				name = meta.Theme
				display = meta.Display
				break
			}
		}
		pos = metaEnd + 2
	}
	if name == "" {
		name = strings.TrimSuffix(fileName, ".css")
	}

	info := &Info{
		Name:    name,
		Display: display,
		Path:    path,
		BaseCSS: baseCSS,
		Schemes: make(map[string]Scheme, len(schemes)),
	}
	if len(schemes) == 0 {
		info.BaseCSS = strings.TrimSpace(content)
	}
	for _, s := range schemes {
		info.Schemes[s.Name] = s
	}

	return info
}

func orderNames(names, preferred []string) []string {
	var sorted []string
	var others []string

	for _, p := range preferred {
		for _, n := range names {
			if n == p {
				sorted = append(sorted, n)
				break
			}
		}
	}

	for _, n := range names {
		listed := false
		for _, p := range preferred {
			if n == p {
				listed = true
				break
			}
		}
		if !listed {
			others = append(others, n)
		}
	}

	sort.Strings(others)

	return append(sorted, others...)
}

// Get returns a theme by name, or nil if not found.
func (r *Registry) Get(name string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.themes[name]
}

// List returns all theme names, manifest order first.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// CSS returns the full stylesheet for a theme and scheme: the scheme CSS
// followed by the theme's base CSS. An empty scheme selects "default", then
// falls back to base CSS alone. It returns "" when the theme is unknown or
// the named scheme does not exist.
func (r *Registry) CSS(themeName, schemeName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.themes[themeName]
	if !ok {
		return ""
	}

	if schemeName == "" {
		if def, ok := info.Schemes["default"]; ok {
			return def.CSS + "\n" + info.BaseCSS
		}
		return info.BaseCSS
	}

	scheme, ok := info.Schemes[schemeName]
	if !ok {
		return ""
	}
	return scheme.CSS + "\n" + info.BaseCSS
}

// Schemes returns the schemes of a theme, "default" first then alphabetical.
func (r *Registry) Schemes(themeName string) []Scheme {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.themes[themeName]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(info.Schemes))
	for name := range info.Schemes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "default" {
			return true
		}
		if names[j] == "default" {
			return false
		}
		return names[i] < names[j]
	})

	schemes := make([]Scheme, 0, len(names))
	for _, name := range names {
		schemes = append(schemes, info.Schemes[name])
	}
	return schemes
}

// DisplayName returns a human-readable name for a theme, title-casing the
// raw name when no display name is set.
func (r *Registry) DisplayName(themeName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.themes[themeName]; ok && info.Display != "" {
		return info.Display
	}
	return titleize(themeName)
}

func titleize(name string) string {
	parts := strings.Split(name, "-")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

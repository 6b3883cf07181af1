// Package switcher applies themes to the active stylesheet, keeping a
// backup of the previous file so a failed or unwanted switch can be undone.
package switcher

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"themectl/theme"
)

// BackupSuffix is appended to the active path to form the backup path.
const BackupSuffix = ".bak"

// ErrNoBackup is returned by Revert when no backup file exists.
var ErrNoBackup = errors.New("no backup to revert to")

// UnknownThemeError reports a theme name with no matching file, carrying the
// valid alternatives for the user-facing listing.
type UnknownThemeError struct {
	Name      string
	Available []string
}

func (e *UnknownThemeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown theme %q (no themes found)", e.Name)
	}
	return fmt.Sprintf("unknown theme %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// UnknownSchemeError reports a scheme the selected theme does not define.
type UnknownSchemeError struct {
	Theme     string
	Scheme    string
	Available []string
}

func (e *UnknownSchemeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("theme %q has no schemes", e.Theme)
	}
	return fmt.Sprintf("theme %q has no scheme %q (available: %s)", e.Theme, e.Scheme, strings.Join(e.Available, ", "))
}

// Switcher owns the active stylesheet and its backup.
type Switcher struct {
	registry   *theme.Registry
	activePath string
	logger     *zap.Logger
}

func New(registry *theme.Registry, activePath string, logger *zap.Logger) *Switcher {
	return &Switcher{
		registry:   registry,
		activePath: activePath,
		logger:     logger,
	}
}

// ActivePath returns the path of the active stylesheet.
func (s *Switcher) ActivePath() string {
	return s.activePath
}

// BackupPath returns the path the previous stylesheet is preserved at.
func (s *Switcher) BackupPath() string {
	return s.activePath + BackupSuffix
}

// Resolve returns the stylesheet content for a theme and scheme. A theme
// without scheme blocks is served verbatim from its file; otherwise the
// scheme CSS is combined with the theme's base CSS.
func (s *Switcher) Resolve(themeName, schemeName string) ([]byte, error) {
	info := s.registry.Get(themeName)
	if info == nil {
		return nil, &UnknownThemeError{Name: themeName, Available: s.registry.List()}
	}

	if len(info.Schemes) == 0 {
		if schemeName != "" {
			return nil, &UnknownSchemeError{Theme: themeName, Scheme: schemeName}
		}
		raw, err := os.ReadFile(info.Path)
		if err != nil {
			return nil, fmt.Errorf("read theme file: %w", err)
		}
		return raw, nil
	}

	css := s.registry.CSS(themeName, schemeName)
	if css == "" {
		var available []string
		for _, sch := range s.registry.Schemes(themeName) {
			available = append(available, sch.Name)
		}
		return nil, &UnknownSchemeError{Theme: themeName, Scheme: schemeName, Available: available}
	}
	return []byte(css), nil
}

// Apply switches the active stylesheet to the named theme. The previous
// active file, if any, is preserved verbatim at the backup path first. If
// writing the new stylesheet fails, the backup is restored best-effort.
func (s *Switcher) Apply(themeName, schemeName string) error {
	content, err := s.Resolve(themeName, schemeName)
	if err != nil {
		return err
	}

	hadActive, err := s.backupActive()
	if err != nil {
		return fmt.Errorf("back up active stylesheet: %w", err)
	}

	if err := s.writeActive(content); err != nil {
		if hadActive {
			if restoreErr := copyFile(s.BackupPath(), s.activePath); restoreErr != nil {
				return fmt.Errorf("write stylesheet: %w (restore backup also failed: %v)", err, restoreErr)
			}
			return fmt.Errorf("write stylesheet: %w (previous stylesheet restored)", err)
		}
		return fmt.Errorf("write stylesheet: %w", err)
	}

	s.logger.Info("theme applied",
		zap.String("theme", themeName),
		zap.String("scheme", schemeName),
		zap.String("path", s.activePath))

	return nil
}

// Revert copies the backup back over the active stylesheet.
func (s *Switcher) Revert() error {
	if _, err := os.Stat(s.BackupPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoBackup
		}
		return err
	}

	if err := copyFile(s.BackupPath(), s.activePath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	s.logger.Info("reverted to backup", zap.String("path", s.activePath))

	return nil
}

// ActiveMatches reports whether the active stylesheet still holds exactly
// what applying the theme would produce. False means the file was edited or
// replaced outside themectl.
func (s *Switcher) ActiveMatches(themeName, schemeName string) (bool, error) {
	want, err := s.Resolve(themeName, schemeName)
	if err != nil {
		return false, err
	}

	got, err := os.ReadFile(s.activePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return bytes.Equal(got, want), nil
}

// backupActive preserves the current active file at the backup path. It
// reports whether an active file existed.
func (s *Switcher) backupActive() (bool, error) {
	if _, err := os.Stat(s.activePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if err := copyFile(s.activePath, s.BackupPath()); err != nil {
		return true, err
	}
	return true, nil
}

// writeActive writes the stylesheet via a temp file and rename so a partial
// write never lands on the active path.
func (s *Switcher) writeActive(content []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.activePath), 0o755); err != nil {
		return err
	}

	tmp := s.activePath + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, s.activePath)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

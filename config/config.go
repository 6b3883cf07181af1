package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"themectl/model"
)

const fileName = "themectl.config"

type Logging struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

type Config struct {
	DataDir    string               `json:"data_dir"`
	ThemesDir  string               `json:"themes_dir"`
	ActivePath string               `json:"active_path"`
	DocsDir    string               `json:"docs_dir,omitempty"`
	ListenAddr string               `json:"listen_addr"`
	Logging    Logging              `json:"logging,omitempty"`
	Applied    model.Applied        `json:"applied,omitempty"`
	Schedules  []model.Schedule     `json:"schedules,omitempty"`
	LastRun    map[string]time.Time `json:"last_run,omitempty"`
}

func Default() Config {
	return Config{
		DataDir:    ".",
		ThemesDir:  "themes",
		ActivePath: filepath.Join("docs", "style.css"),
		DocsDir:    "docs",
		ListenAddr: ":8080",
		Logging:    Logging{Level: "info", Format: "console"},
		Schedules:  nil,
		LastRun:    make(map[string]time.Time),
	}
}

func Load(dataDir string) (Config, error) {
	cfgPath := filepath.Join(dataDir, fileName)

	f, err := os.Open(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, err
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.ThemesDir == "" {
		cfg.ThemesDir = def.ThemesDir
	}
	if cfg.ActivePath == "" {
		cfg.ActivePath = def.ActivePath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.LastRun == nil {
		cfg.LastRun = make(map[string]time.Time)
	}

	return cfg, nil
}

func Save(cfg Config) error {
	cfgPath := filepath.Join(cfg.DataDir, fileName)

	// Create directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	tmp := cfgPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, cfgPath)
}

// Path returns the location of the config file inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, fileName)
}

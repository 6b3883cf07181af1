package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"themectl/api"
	"themectl/config"
	"themectl/model"
	"themectl/scheduler"
	"themectl/storage"
	"themectl/switcher"
	"themectl/theme"
	"themectl/watcher"
)

var (
	dataDir    string
	themesDir  string
	activePath string
	docsDir    string
	schemeName string
	listen     string
	listenPort int
	sinceFlag  string
	appVersion = "0.3.2"
)

var styles = struct {
	Title  lipgloss.Style
	Active lipgloss.Style
	Name   lipgloss.Style
	Dim    lipgloss.Style
	Warn   lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true).MarginBottom(1),
	Active: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	Name:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
}

var rootCmd = &cobra.Command{
	Use:   "themectl",
	Short: "themectl – documentation theme switcher",
	Long:  "Themectl manages CSS themes for generated documentation: switch the active stylesheet, preview themes in the browser, and rotate them on a schedule.",
}

var useCmd = &cobra.Command{
	Use:   "use <theme>",
	Short: "Switch the active stylesheet to a theme",
	Run:   runUse,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available themes",
	Run:   runList,
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the currently applied theme",
	Run:   runCurrent,
}

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Restore the previous stylesheet from backup",
	Run:   runRevert,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent theme switches",
	Run:   runHistory,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the docs with a live-reloading theme preview",
	Run:   runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-apply the active theme when its file changes",
	Run:   runWatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Run:   runConfigGenerate,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", wd, "Data directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&themesDir, "themes-dir", "", "Themes directory (default: from config)")
	rootCmd.PersistentFlags().StringVar(&activePath, "active", "", "Active stylesheet path (default: from config)")

	useCmd.Flags().StringVar(&schemeName, "scheme", "", "Color scheme within the theme")
	historyCmd.Flags().StringVar(&sinceFlag, "since", "720h", "How far back to list (Go duration)")
	serveCmd.Flags().StringVar(&docsDir, "docs-dir", "", "Documentation directory to serve (default: from config)")
	serveCmd.Flags().StringVar(&listen, "listen", "all", "IP address to listen on (default: all)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", 8080, "Port to listen on (default: 8080)")

	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(useCmd, listCmd, currentCmd, revertCmd, historyCmd, serveCmd, watchCmd, configCmd)
}

// env bundles everything a command needs after config and flags are merged.
type env struct {
	mu       sync.Mutex
	cfg      config.Config
	logger   *zap.Logger
	registry *theme.Registry
	switcher *switcher.Switcher
	store    *storage.Store
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flags win over the config file only when explicitly provided.
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	} else if cfg.DataDir != "" && cfg.DataDir != "." {
		dataDir = cfg.DataDir
	}
	if cmd.Flags().Changed("themes-dir") {
		cfg.ThemesDir = themesDir
	}
	if cmd.Flags().Changed("active") {
		cfg.ActivePath = activePath
	}

	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = abs

	// Relative paths are anchored at the data dir.
	if !filepath.IsAbs(cfg.ThemesDir) {
		cfg.ThemesDir = filepath.Join(cfg.DataDir, cfg.ThemesDir)
	}
	if !filepath.IsAbs(cfg.ActivePath) {
		cfg.ActivePath = filepath.Join(cfg.DataDir, cfg.ActivePath)
	}
	if cfg.DocsDir != "" && !filepath.IsAbs(cfg.DocsDir) {
		cfg.DocsDir = filepath.Join(cfg.DataDir, cfg.DocsDir)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	registry, err := theme.NewRegistry(cfg.ThemesDir, logger)
	if err != nil {
		return nil, err
	}

	store := storage.New(cfg.DataDir)
	if err := store.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		switcher: switcher.New(registry, cfg.ActivePath, logger),
		store:    store,
	}, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// applyAndRecord runs a switch and persists both the history record and the
// applied state in the config file. Serialized so the scheduler, watcher,
// and API cannot interleave switches under serve.
func (e *env) applyAndRecord(themeName, scheme string, trigger model.SwitchTrigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.cfg.Applied.Theme

	if err := e.switcher.Apply(themeName, scheme); err != nil {
		return err
	}

	rec := &model.SwitchRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Theme:     themeName,
		Scheme:    scheme,
		PrevTheme: prev,
		Trigger:   trigger,
	}
	if err := e.store.SaveRecord(rec); err != nil {
		e.logger.Warn("failed to record switch", zap.Error(err))
	}

	e.cfg.Applied = model.Applied{Theme: themeName, Scheme: scheme}
	if err := config.Save(e.cfg); err != nil {
		e.logger.Warn("failed to save config", zap.Error(err))
	}

	return nil
}

func (e *env) applied() model.Applied {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Applied
}

func runUse(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: themectl use <theme>")
		printAvailable(os.Stderr, e.registry)
		os.Exit(1)
	}

	if err := e.applyAndRecord(args[0], schemeName, model.TriggerCLI); err != nil {
		fatal(err)
	}

	fmt.Printf("Applied theme %s to %s\n", styles.Active.Render(args[0]), e.cfg.ActivePath)
}

func printAvailable(w *os.File, registry *theme.Registry) {
	names := registry.List()
	if len(names) == 0 {
		fmt.Fprintf(w, "no themes found in %s\n", registry.Dir())
		return
	}
	fmt.Fprintln(w, "available themes:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

func runList(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	names := e.registry.List()
	if len(names) == 0 {
		fmt.Printf("no themes found in %s\n", e.cfg.ThemesDir)
		return
	}

	fmt.Println(styles.Title.Render(fmt.Sprintf("Themes in %s", e.cfg.ThemesDir)))
	for _, name := range names {
		marker := "  "
		rendered := styles.Name.Render(name)
		if name == e.cfg.Applied.Theme {
			marker = styles.Active.Render("* ")
			rendered = styles.Active.Render(name)
		}

		line := marker + rendered
		if display := e.registry.DisplayName(name); display != name {
			line += " " + styles.Dim.Render(display)
		}
		if schemes := e.registry.Schemes(name); len(schemes) > 0 {
			line += " " + styles.Dim.Render(fmt.Sprintf("(%d schemes)", len(schemes)))
		}
		fmt.Println(line)
	}
}

func runCurrent(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	applied := e.cfg.Applied
	if applied.Theme == "" {
		fmt.Println("no theme applied")
		return
	}

	line := "current theme: " + styles.Active.Render(applied.Theme)
	if applied.Scheme != "" {
		line += " / " + styles.Name.Render(applied.Scheme)
	}
	fmt.Println(line)

	match, err := e.switcher.ActiveMatches(applied.Theme, applied.Scheme)
	if err != nil {
		fatal(err)
	}
	if !match {
		fmt.Println(styles.Warn.Render("warning: the active stylesheet no longer matches this theme (edited or replaced externally)"))
	}
}

func runRevert(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	if err := e.switcher.Revert(); err != nil {
		fatal(err)
	}

	rec := &model.SwitchRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Theme:     e.cfg.Applied.Theme,
		PrevTheme: e.cfg.Applied.Theme,
		Trigger:   model.TriggerCLI,
		Reverted:  true,
	}
	if err := e.store.SaveRecord(rec); err != nil {
		e.logger.Warn("failed to record revert", zap.Error(err))
	}

	e.cfg.Applied = model.Applied{}
	if err := config.Save(e.cfg); err != nil {
		e.logger.Warn("failed to save config", zap.Error(err))
	}

	fmt.Printf("Restored previous stylesheet at %s\n", e.cfg.ActivePath)
}

func runHistory(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	dur, err := time.ParseDuration(sinceFlag)
	if err != nil {
		fatal(fmt.Errorf("invalid --since duration: %w", err))
	}

	now := time.Now()
	records, err := e.store.ListRecords(now.Add(-dur), now)
	if err != nil {
		fatal(err)
	}
	if len(records) == 0 {
		fmt.Println("no switches recorded")
		return
	}

	for _, r := range records {
		what := styles.Name.Render(r.Theme)
		if r.Scheme != "" {
			what += "/" + r.Scheme
		}
		if r.Reverted {
			what = styles.Warn.Render("revert")
		}
		fmt.Printf("%s  %s  %s\n",
			styles.Dim.Render(r.Timestamp.Local().Format("2006-01-02 15:04:05")),
			what,
			styles.Dim.Render(string(r.Trigger)))
	}
}

func runServe(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}
	cfg := e.cfg

	if cmd.Flags().Changed("docs-dir") {
		cfg.DocsDir = docsDir
		if !filepath.IsAbs(cfg.DocsDir) {
			cfg.DocsDir = filepath.Join(cfg.DataDir, cfg.DocsDir)
		}
	}
	if cmd.Flags().Changed("listen") || cmd.Flags().Changed("listen-port") {
		if listen != "" && listen != "all" {
			cfg.ListenAddr = fmt.Sprintf("%s:%d", listen, listenPort)
		} else {
			cfg.ListenAddr = fmt.Sprintf(":%d", listenPort)
		}
	}
	e.cfg = cfg

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var apiServer *api.Server
	apply := func(ctx context.Context, themeName, scheme string, trigger model.SwitchTrigger) error {
		if err := e.applyAndRecord(themeName, scheme, trigger); err != nil {
			return err
		}
		apiServer.BroadcastReload(themeName, scheme)
		return nil
	}

	apiServer = api.NewServer(e.registry, e.store, apply, e.applied, e.logger)
	themeHandler := theme.NewHandler(e.registry)

	sched := scheduler.New(func(ctx context.Context, themeName, scheme string) error {
		return e.applyAndRecord(themeName, scheme, model.TriggerSchedule)
	}, cfg.Schedules, cfg.LastRun, e.logger)

	sched.SetOnUpdate(func() {
		e.mu.Lock()
		e.cfg.Schedules = sched.Schedules()
		e.cfg.LastRun = sched.LastRun()
		cfgCopy := e.cfg
		e.mu.Unlock()
		if err := config.Save(cfgCopy); err != nil {
			e.logger.Warn("failed to save config", zap.Error(err))
		}
	})
	sched.SetOnComplete(func(sc model.Schedule) {
		apiServer.BroadcastReload(sc.Theme, sc.Scheme)
	})
	sched.Start(ctx)

	w, err := watcher.New(e.registry, e.logger)
	if err != nil {
		fatal(err)
	}
	w.SetOnChange(func(changed []string) {
		applied := e.applied()
		if applied.Theme != "" {
			if err := e.applyAndRecord(applied.Theme, applied.Scheme, model.TriggerWatch); err != nil {
				e.logger.Warn("re-apply after change failed", zap.Error(err))
			}
		}
		apiServer.BroadcastReload(applied.Theme, applied.Scheme)
	})
	if err := w.Start(ctx); err != nil {
		fatal(err)
	}
	defer w.Stop()

	mux := http.NewServeMux()
	apiServer.Register(mux)
	mux.HandleFunc("/api/theme.css", themeHandler.HandleThemeCSS)
	mux.HandleFunc("/api/schemes", themeHandler.HandleSchemes)

	if cfg.DocsDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.DocsDir)))
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	printListeningAddresses(e.logger, cfg.ListenAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	e.logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn("server shutdown", zap.Error(err))
	}
}

func runWatch(cmd *cobra.Command, args []string) {
	e, err := setup(cmd)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := watcher.New(e.registry, e.logger)
	if err != nil {
		fatal(err)
	}
	w.SetOnChange(func(changed []string) {
		applied := e.applied()
		if applied.Theme == "" {
			return
		}
		if err := e.applyAndRecord(applied.Theme, applied.Scheme, model.TriggerWatch); err != nil {
			e.logger.Warn("re-apply after change failed", zap.Error(err))
		}
	})
	if err := w.Start(ctx); err != nil {
		fatal(err)
	}
	defer w.Stop()

	fmt.Printf("Watching %s (ctrl-c to stop)\n", e.cfg.ThemesDir)
	<-ctx.Done()
}

func runConfigGenerate(cmd *cobra.Command, args []string) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		fatal(fmt.Errorf("resolve data dir: %w", err))
	}

	cfg := config.Default()
	cfg.DataDir = abs

	cfgPath := config.Path(abs)
	if _, err := os.Stat(cfgPath); err == nil {
		fatal(fmt.Errorf("config file already exists: %s", cfgPath))
	}

	if err := config.Save(cfg); err != nil {
		fatal(fmt.Errorf("failed to save config: %w", err))
	}

	fmt.Printf("Generated default config file: %s\n", cfgPath)
}

func printListeningAddresses(logger *zap.Logger, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		logger.Info("listening", zap.String("addr", "http://"+addr))
		return
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		addrs, err := net.InterfaceAddrs()
		if err == nil {
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
					logger.Info("listening", zap.String("addr", fmt.Sprintf("http://%s:%s", ipnet.IP.String(), port)))
				}
			}
			logger.Info("listening", zap.String("addr", "http://localhost:"+port))
		} else {
			logger.Info("listening", zap.String("addr", "http://0.0.0.0:"+port))
		}
	} else {
		logger.Info("listening", zap.String("addr", fmt.Sprintf("http://%s:%s", host, port)))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/relgraph/pkg/clusters"
	"github.com/ritzau/relgraph/pkg/config"
	"github.com/ritzau/relgraph/pkg/history"
	"github.com/ritzau/relgraph/pkg/layout"
	"github.com/ritzau/relgraph/pkg/logging"
	"github.com/ritzau/relgraph/pkg/network"
	"github.com/ritzau/relgraph/pkg/output"
	"github.com/ritzau/relgraph/pkg/paths"
	"github.com/ritzau/relgraph/pkg/pubsub"
	"github.com/ritzau/relgraph/pkg/session"
	"github.com/ritzau/relgraph/pkg/source"
	"github.com/ritzau/relgraph/pkg/watcher"
	"github.com/ritzau/relgraph/pkg/web"
)

func flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("relgraph", pflag.ExitOnError)
	f.String("source", "", "Snapshot file with entities and relationships (.json, .yaml, .toml)")
	f.Bool("web", false, "Start web server instead of printing to console")
	f.Int("port", 8080, "Port for web server (only used with --web)")
	f.Bool("watch", false, "Rebuild when the source or config file changes")
	f.Bool("open", false, "Open the browser (only used with --web)")
	f.String("layout", "force", "Layout strategy: force, hierarchical, circular, grid")
	f.Int("iterations", 100, "Force-directed passes")
	f.Uint64("seed", 1, "Seed for the initial scatter")
	f.Float64("theta", 0, "Barnes-Hut opening angle; 0 uses exact repulsion")
	f.Int("top-k", network.DefaultTopK, "Length of the most central list")
	f.Bool("skip-betweenness", false, "Skip betweenness centrality")
	f.Int("max-depth", paths.DefaultMaxDepthLimit, "Largest depth accepted for all-paths queries")
	f.Int("max-paths", paths.DefaultMaxPaths, "Cap on enumerated paths")
	f.String("clusters", "components", "Cluster method: components, modularity")
	f.Float64("resolution", 1, "Modularity resolution")
	f.String("history", "", "Directory of the report history store")
	f.Bool("list-history", false, "Print stored reports and exit")
	f.Bool("json-logs", false, "Log as JSON")
	f.CountP("verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	return f
}

func main() {
	f := flags()
	_ = f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History != "" {
		store, err = history.Open(cfg.History)
		if err != nil {
			logging.Fatal("failed to open history", "path", cfg.History, "error", err)
		}
		defer store.Close()
	}

	if listHistory, _ := f.GetBool("list-history"); listHistory {
		if store == nil {
			logging.Fatal("--list-history needs --history")
		}
		reports, err := store.List(ctx, 0)
		if err != nil {
			logging.Fatal("failed to list history", "error", err)
		}
		output.PrintHistory(os.Stdout, reports)
		return
	}

	if cfg.Source == "" {
		fmt.Fprintln(os.Stderr, "Error: --source is required")
		f.Usage()
		os.Exit(2)
	}

	publisher := pubsub.NewSSEPublisher()
	pubsub.ConfigureSessionTopics(publisher)
	defer publisher.Close()

	opts, err := sessionOptions(cfg)
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}
	opts.Publisher = publisher
	opts.History = store

	src, err := source.Open(cfg.Source)
	if err != nil {
		logging.Fatal("failed to open source", "error", err)
	}
	sess, err := session.New(src, opts)
	if err != nil {
		logging.Fatal("failed to create session", "error", err)
	}

	if cfg.Watch {
		go watch(ctx, f, cfg, sess)
	}

	if cfg.WebMode {
		serve(ctx, f, cfg, sess, publisher)
		return
	}

	report, err := sess.Run(ctx, session.RunOptions{Reason: "initial analysis"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	output.PrintReport(os.Stdout, report)

	if cfg.Watch {
		<-ctx.Done()
	}
}

func setupLogging(cfg *config.Config) {
	level := logging.LevelForVerbosity(cfg.VerboseCnt)
	if lvl, ok := parseLevel(cfg.Verbosity); ok {
		level = lvl
	}
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
}

func sessionOptions(cfg *config.Config) (session.Options, error) {
	strategy, err := layout.ParseStrategy(cfg.Layout.Strategy)
	if err != nil {
		return session.Options{}, err
	}
	method, err := clusters.ParseMethod(cfg.Clusters.Method)
	if err != nil {
		return session.Options{}, err
	}

	lo := layout.DefaultOptions()
	lo.Iterations = cfg.Layout.Iterations
	lo.Seed = cfg.Layout.Seed
	lo.Theta = cfg.Layout.Theta

	return session.Options{
		Strategy: strategy,
		Layout:   lo,
		Analyzer: network.Analyzer{TopK: cfg.Analysis.TopK, SkipBetweenness: cfg.Analysis.SkipBetweenness},
		Detector: clusters.Detector{Method: method, Resolution: cfg.Clusters.Resolution, Seed: cfg.Layout.Seed},
		Finder:   paths.Finder{MaxDepthLimit: cfg.Paths.MaxDepth, MaxPaths: cfg.Paths.MaxPaths},
	}, nil
}

func serve(ctx context.Context, f *pflag.FlagSet, cfg *config.Config, sess *session.Session, publisher pubsub.Publisher) {
	server := web.NewServer(sess, publisher)

	// Run the initial analysis in the background; clients follow progress
	// on the session_status stream.
	go func() {
		if _, err := sess.Run(ctx, session.RunOptions{Reason: "initial analysis"}); err != nil {
			logging.Error("initial analysis failed", "error", err)
		}
	}()

	if open, _ := f.GetBool("open"); open {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d/api/graph", cfg.Port))
		}()
	}

	if err := server.Start(ctx, cfg.Port); err != nil {
		logging.Fatal("web server failed", "error", err)
	}
}

// watch reruns the session whenever the source or config file changes.
func watch(ctx context.Context, f *pflag.FlagSet, cfg *config.Config, sess *session.Session) {
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		logging.Error("file watching disabled", "error", err)
		return
	}
	watchSource := fw.Watch
	if _, ok := sess.Source().(*source.DirSource); ok {
		watchSource = fw.WatchTree
	}
	if err := watchSource(cfg.Source, watcher.ChangeTypeSource); err != nil {
		logging.Error("file watching disabled", "error", err)
		return
	}
	if err := fw.Watch(config.DefaultFile, watcher.ChangeTypeConfig); err != nil {
		logging.Warn("not watching config file", "error", err)
	}
	fw.Start(ctx)

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		plan := watcher.AnalyzeChanges(event)
		logging.Info("change detected", "kind", event.Type.String(), "files", len(plan.ChangedFiles))

		if plan.ReloadConfig {
			next, err := config.Load(f)
			if err != nil {
				logging.Warn("keeping previous config", "error", err)
			} else if opts, err := sessionOptions(next); err != nil {
				logging.Warn("keeping previous config", "error", err)
			} else if err := sess.Reconfigure(opts); err != nil {
				logging.Warn("keeping previous config", "error", err)
			} else {
				setupLogging(next)
			}
		}

		if plan.Rebuild {
			report, err := sess.Run(ctx, session.RunOptions{Reason: event.Type.String() + " changed"})
			if err != nil {
				logging.Error("rebuild failed", "error", err)
				continue
			}
			if !cfg.WebMode {
				output.PrintReport(os.Stdout, report)
			}
		}
	}
}

// parseLevel reads the verbosity config key, which overrides -v.
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "trace":
		return logging.LevelTrace, true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser", "platform", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}

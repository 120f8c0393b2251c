package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/docloom/docloom/internal/access"
	"github.com/docloom/docloom/internal/bus"
	"github.com/docloom/docloom/internal/git"
	"github.com/docloom/docloom/internal/logger"
	"github.com/docloom/docloom/internal/watcher"
)

var watcherCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Watch the shared root and publish file events",
	Long: `Run the ingestion front of the pipeline. The watcher observes the
shared directory, commits every change to the git snapshot inside it, and
publishes create/update/delete events for the preprocessor. It also serves
raw file fetches (ROUTER) and authorization queries (REP) for the other
daemons.`,
	SilenceUsage: true,
	RunE:         runWatcher,
}

func init() {
	rootCmd.AddCommand(watcherCmd)
	watcherCmd.Flags().String("user", "", "ingest principal recorded on events (default: OS user)")
}

func runWatcher(cmd *cobra.Command, args []string) error {
	defer logger.HandlePanic()

	cfg := GetConfig()
	if err := requireSettings("watch_root", cfg.WatchRoot, "access_table", cfg.AccessTable); err != nil {
		return err
	}
	userID, err := resolveUser(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	oracle, err := access.Load(fs, cfg.AccessTable)
	if err != nil {
		return fmt.Errorf("load access table: %w", err)
	}

	pusher, err := bus.NewPusher(ctx, cfg.Bus.PushPort)
	if err != nil {
		return err
	}
	defer func() { _ = pusher.Close() }()

	router, err := bus.NewRouter(ctx, cfg.Bus.RouterPort)
	if err != nil {
		return err
	}
	defer func() { _ = router.Close() }()

	replier, err := bus.NewReplier(ctx, cfg.Bus.AccessPort)
	if err != nil {
		return err
	}
	defer func() { _ = replier.Close() }()

	agent, err := watcher.NewAgent(watcher.Config{
		Root:        cfg.WatchRoot,
		UserID:      userID,
		AllowedExts: cfg.Watcher.AllowedExtensions,
		Debounce:    time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
		FS:          fs,
		Snapshot:    git.NewSnapshot(cfg.WatchRoot, userID),
		Oracle:      oracle,
		Sink:        pusher,
	})
	if err != nil {
		return err
	}
	if err := agent.Start(); err != nil {
		return err
	}

	files := watcher.NewFileServer(cfg.WatchRoot, cfg.Watcher.AllowedExtensions, fs)
	authz := access.NewService(oracle)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := router.Serve(ctx, files.Handle); err != nil {
			slog.Error("file server stopped", "error", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := replier.Serve(ctx, authz.Handle); err != nil {
			slog.Error("authorization server stopped", "error", err)
			stop()
		}
	}()

	slog.Info("watcher running",
		"root", cfg.WatchRoot,
		"user", userID,
		"push_port", cfg.Bus.PushPort,
		"router_port", cfg.Bus.RouterPort,
		"access_port", cfg.Bus.AccessPort,
	)
	<-ctx.Done()
	slog.Info("watcher shutting down")

	// REP first so pending requesters fail cleanly, then the event stream,
	// then the fetch router.
	_ = replier.Close()
	agent.Stop()
	_ = pusher.Close()
	_ = router.Close()
	if !waitTimeout(&wg, shutdownGrace) {
		slog.Warn("gave up waiting for socket workers")
	}
	return nil
}

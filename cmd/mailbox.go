package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docloom/docloom/internal/bus"
	"github.com/docloom/docloom/internal/logger"
	"github.com/docloom/docloom/internal/mailbox"
)

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Store and serve change notifications",
	Long: `Run the notification mailbox. Posts from the postprocessor land in a
per-user FIFO queue (REP socket); users read their queue over HTTP at
GET /messages/{user_id}. Queues live in memory and do not survive a
restart.`,
	SilenceUsage: true,
	RunE:         runMailbox,
}

func init() {
	rootCmd.AddCommand(mailboxCmd)
}

func runMailbox(cmd *cobra.Command, args []string) error {
	defer logger.HandlePanic()

	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := mailbox.NewStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := mailbox.NewService(store, cfg.Mailbox.HTTPPort)

	replier, err := bus.NewReplier(ctx, cfg.Bus.MailboxPort)
	if err != nil {
		return err
	}
	defer func() { _ = replier.Close() }()

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	svc.Start(&wg, errChan)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := replier.Serve(ctx, svc.HandlePost); err != nil {
			slog.Error("mailbox post server stopped", "error", err)
			stop()
		}
	}()

	slog.Info("mailbox running",
		"rep_port", cfg.Bus.MailboxPort,
		"http_port", cfg.Mailbox.HTTPPort,
	)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		slog.Error("mailbox http server failed", "error", err)
		stop()
	}
	slog.Info("mailbox shutting down")

	_ = replier.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if !waitTimeout(&wg, shutdownGrace) {
		slog.Warn("gave up waiting for socket workers")
	}
	return nil
}

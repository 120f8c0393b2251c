package cmd

import (
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docloom/docloom/internal/bus"
	"github.com/docloom/docloom/internal/logger"
	"github.com/docloom/docloom/internal/preprocess"
)

var preprocessorCmd = &cobra.Command{
	Use:   "preprocessor",
	Short: "Extract text from changed files",
	Long: `Run the extraction stage. The preprocessor consumes file events from
the watcher, extracts plain text from the carried bytes, and forwards
extracted documents to the postprocessor. It also answers extracted-text
fetches (REP) for the retrieval side, pulling raw bytes from the watcher
on demand.`,
	SilenceUsage: true,
	RunE:         runPreprocessor,
}

func init() {
	rootCmd.AddCommand(preprocessorCmd)
}

func runPreprocessor(cmd *cobra.Command, args []string) error {
	defer logger.HandlePanic()

	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	puller, err := bus.NewPuller(ctx, cfg.Bus.PreprocessIn)
	if err != nil {
		return err
	}
	defer func() { _ = puller.Close() }()

	pusher, err := bus.NewPusher(ctx, cfg.Bus.PreprocessOutPort)
	if err != nil {
		return err
	}
	defer func() { _ = pusher.Close() }()

	replier, err := bus.NewReplier(ctx, cfg.Bus.PreprocessRepPort)
	if err != nil {
		return err
	}
	defer func() { _ = replier.Close() }()

	fetcher := bus.NewRequester(ctx, cfg.Bus.PreprocessReq, busTimeout(cfg))
	defer func() { _ = fetcher.Close() }()

	svc := preprocess.NewService(preprocess.Config{
		Source: puller,
		Sink:   pusher,
		Fetch:  fetcher,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := replier.Serve(ctx, svc.HandleFetch); err != nil {
			slog.Error("text fetch server stopped", "error", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		svc.Run(ctx)
	}()

	slog.Info("preprocessor running",
		"in", cfg.Bus.PreprocessIn,
		"out_port", cfg.Bus.PreprocessOutPort,
		"rep_port", cfg.Bus.PreprocessRepPort,
	)
	<-ctx.Done()
	slog.Info("preprocessor shutting down")

	_ = replier.Close()
	_ = puller.Close()
	_ = pusher.Close()
	_ = fetcher.Close()
	if !waitTimeout(&wg, shutdownGrace) {
		slog.Warn("gave up waiting for socket workers")
	}
	return nil
}

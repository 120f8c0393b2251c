package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docloom/docloom/internal/index"
	"github.com/docloom/docloom/internal/llm"
	"github.com/docloom/docloom/internal/logger"
	"github.com/docloom/docloom/internal/retrieve"
	"github.com/docloom/docloom/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer questions over HTTP",
	Long: `Run the retrieval surface. POST /chat takes {message, mode, user_id}
and answers the question from the indexed documents the user is allowed
to see. Authorization comes from the watcher's oracle socket; document
text comes from the preprocessor's fetch socket.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.HandlePanic()

	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defaultMode, err := retrieve.ParseMode(cfg.Retrieval.Mode)
	if err != nil {
		return err
	}

	llmCfg, err := modelConfig(cfg)
	if err != nil {
		return err
	}
	chatModel, err := llm.NewChatModel(ctx, llmCfg)
	if err != nil {
		return fmt.Errorf("build chat model: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, llmCfg, cfg.Embedding.Endpoint)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	store, err := index.New(index.Config{
		Host:       cfg.Index.Host,
		Port:       cfg.Index.Port,
		Collection: cfg.Index.Collection,
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var reranker retrieve.Reranker
	if cfg.Rerank.Endpoint != "" {
		reranker = llm.NewTEIReranker(cfg.Rerank.Endpoint, cfg.Rerank.Model, modelTimeout(cfg))
	}

	runner := retrieve.NewRunner(retrieve.RunnerConfig{
		OracleEndpoint: cfg.Bus.AccessEndpoint,
		FetchEndpoint:  cfg.Bus.FetchEndpoint,
		RequestTimeout: busTimeout(cfg),
		Embedder:       embedder,
		Store:          store,
		Reranker:       reranker,
		LLM:            llm.NewCompleter(chatModel),
		TopN:           cfg.Retrieval.TopN,
		PromptsDir:     cfg.PromptsDir,
	})

	srv := server.New(cfg.Retrieval.HTTPPort, runner, defaultMode)
	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	srv.Start(&wg, errChan)

	slog.Info("retrieval surface running",
		"http_port", cfg.Retrieval.HTTPPort,
		"default_mode", string(defaultMode),
		"rerank", cfg.Rerank.Endpoint != "",
	)

	select {
	case <-ctx.Done():
	case err := <-errChan:
		slog.Error("retrieval http server failed", "error", err)
		stop()
	}
	slog.Info("retrieval surface shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	wg.Wait()
	return nil
}

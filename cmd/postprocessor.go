package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docloom/docloom/internal/bus"
	"github.com/docloom/docloom/internal/chunk"
	"github.com/docloom/docloom/internal/index"
	"github.com/docloom/docloom/internal/llm"
	"github.com/docloom/docloom/internal/logger"
	"github.com/docloom/docloom/internal/postprocess"
)

var postprocessorCmd = &cobra.Command{
	Use:   "postprocessor",
	Short: "Chunk, embed, and index extracted documents",
	Long: `Run the indexing stage. The postprocessor consumes extracted documents
from the preprocessor, splits them into chunks, embeds each chunk, and
writes the vectors to the index. Each indexed change is summarized and
posted to the mailbox for the document's subscribers.`,
	SilenceUsage: true,
	RunE:         runPostprocessor,
}

func init() {
	rootCmd.AddCommand(postprocessorCmd)
}

func runPostprocessor(cmd *cobra.Command, args []string) error {
	defer logger.HandlePanic()

	cfg := GetConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmCfg, err := modelConfig(cfg)
	if err != nil {
		return err
	}
	chatModel, err := llm.NewChatModel(ctx, llmCfg)
	if err != nil {
		return fmt.Errorf("build chat model: %w", err)
	}
	completer := llm.NewCompleter(chatModel)

	embedder, err := llm.NewEmbedder(ctx, llmCfg, cfg.Embedding.Endpoint)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}
	dimension, err := llm.ProbeDimensions(ctx, embedder)
	if err != nil {
		return fmt.Errorf("probe embedding dimension: %w", err)
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
	if err := store.EnsureCollection(ctx, dimension); err != nil {
		return err
	}

	opts := chunk.Options{
		Window:    cfg.Chunking.Window,
		Overlap:   cfg.Chunking.Overlap,
		GroupSize: cfg.Chunking.GroupSize,
		PromptDir: cfg.PromptsDir,
	}
	var chunker chunk.Chunker
	switch cfg.Chunking.Strategy {
	case "plan":
		chunker = chunk.NewPlanChunker(completer, opts)
	default:
		chunker = chunk.NewBoundaryChunker(completer, opts)
	}

	puller, err := bus.NewPuller(ctx, cfg.Bus.PostprocessIn)
	if err != nil {
		return err
	}
	defer func() { _ = puller.Close() }()

	poster := bus.NewRequester(ctx, cfg.Bus.MailboxEndpoint, busTimeout(cfg))
	defer func() { _ = poster.Close() }()

	svc := postprocess.NewService(postprocess.Config{
		Source:        puller,
		Chunker:       chunker,
		Embedder:      embedder,
		Index:         store,
		LLM:           completer,
		Notifier:      postprocess.NewMailboxNotifier(poster),
		PromptsDir:    cfg.PromptsDir,
		SummaryFanout: cfg.Postprocess.SummaryFanout,
	})

	slog.Info("postprocessor running",
		"in", cfg.Bus.PostprocessIn,
		"collection", cfg.Index.Collection,
		"dimension", dimension,
		"strategy", cfg.Chunking.Strategy,
	)
	svc.Run(ctx)
	slog.Info("postprocessor shutting down")

	_ = puller.Close()
	_ = poster.Close()
	return nil
}

package retrieve

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/docloom/docloom/internal/access"
	"github.com/docloom/docloom/internal/bus"
)

// RunnerConfig wires a Runner to its oracle, fetch, and model endpoints.
type RunnerConfig struct {
	OracleEndpoint string
	FetchEndpoint  string
	RequestTimeout time.Duration

	Embedder embedding.Embedder
	Store    SearchStore
	Reranker Reranker // nil disables reranking
	LLM      Completer

	TopN       int
	PromptsDir string
}

// Runner serves retrieval requests for the HTTP layer. The oracle and fetch
// request sockets are opened per call: REQ sockets alternate strictly
// between send and receive, so sharing one across concurrent HTTP handlers
// would interleave pairs.
type Runner struct {
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Answer resolves one question for one user in the given mode.
func (r *Runner) Answer(ctx context.Context, userID, question string, mode Mode) (string, error) {
	oracleReq := bus.NewRequester(ctx, r.cfg.OracleEndpoint, r.cfg.RequestTimeout)
	defer func() { _ = oracleReq.Close() }()
	fetchReq := bus.NewRequester(ctx, r.cfg.FetchEndpoint, r.cfg.RequestTimeout)
	defer func() { _ = fetchReq.Close() }()

	retriever := NewRetriever(
		r.cfg.Embedder,
		r.cfg.Store,
		NewFetchClient(fetchReq),
		r.cfg.Reranker,
		r.cfg.TopN,
	)
	agent := NewAgent(NewOracleClient(oracleReq), retriever, r.cfg.LLM, r.cfg.PromptsDir)
	return agent.Answer(ctx, userID, question, mode)
}

// Folders lists the top-level folders in which the user can currently read
// at least one document.
func (r *Runner) Folders(ctx context.Context, userID string) ([]string, error) {
	req := bus.NewRequester(ctx, r.cfg.OracleEndpoint, r.cfg.RequestTimeout)
	defer func() { _ = req.Close() }()

	paths, err := NewOracleClient(req).Authorized(userID)
	if err != nil {
		return nil, err
	}
	return access.FoldersOf(paths), nil
}

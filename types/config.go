package types

// AppConfig is the complete process configuration. Every daemon reads the
// same file; each one uses the sections it needs.
type AppConfig struct {
	WatchRoot   string `mapstructure:"watch_root" validate:"omitempty,min=1"`
	AccessTable string `mapstructure:"access_table" validate:"omitempty,min=1"`
	PromptsDir  string `mapstructure:"prompts_dir"`
	Verbose     bool   `mapstructure:"verbose"`

	Bus         BusConfig         `mapstructure:"bus" validate:"required"`
	Watcher     WatcherConfig     `mapstructure:"watcher" validate:"required"`
	Chunking    ChunkingConfig    `mapstructure:"chunking" validate:"required"`
	LLM         LLMConfig         `mapstructure:"llm" validate:"omitempty"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Rerank      RerankConfig      `mapstructure:"rerank"`
	Index       IndexConfig       `mapstructure:"index" validate:"required"`
	Postprocess PostprocessConfig `mapstructure:"postprocess" validate:"required"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval" validate:"required"`
	Mailbox     MailboxConfig     `mapstructure:"mailbox" validate:"required"`
}

// BusConfig holds every socket port and endpoint on the message bus. Ports
// are bind-side; endpoints are the connect-side counterparts, split so each
// daemon can run on a different host.
type BusConfig struct {
	PushPort          int    `mapstructure:"push_port" validate:"required,gt=0,lte=65535"`
	RouterPort        int    `mapstructure:"router_port" validate:"required,gt=0,lte=65535"`
	AccessPort        int    `mapstructure:"access_port" validate:"required,gt=0,lte=65535"`
	PreprocessIn      string `mapstructure:"preprocess_in" validate:"required"`
	PreprocessReq     string `mapstructure:"preprocess_req" validate:"required"`
	PreprocessRepPort int    `mapstructure:"preprocess_rep_port" validate:"required,gt=0,lte=65535"`
	PreprocessOutPort int    `mapstructure:"preprocess_out_port" validate:"required,gt=0,lte=65535"`
	PostprocessIn     string `mapstructure:"postprocess_in" validate:"required"`
	MailboxPort       int    `mapstructure:"mailbox_port" validate:"required,gt=0,lte=65535"`
	MailboxEndpoint   string `mapstructure:"mailbox_endpoint" validate:"required"`
	AccessEndpoint    string `mapstructure:"access_endpoint" validate:"required"`
	FetchEndpoint     string `mapstructure:"fetch_endpoint" validate:"required"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds" validate:"required,min=1,max=600"`
}

// WatcherConfig controls change detection.
type WatcherConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions" validate:"required,min=1"`
	DebounceMs        int      `mapstructure:"debounce_ms" validate:"required,min=1"`
}

// ChunkingConfig controls how extracted text is segmented.
type ChunkingConfig struct {
	Window    int    `mapstructure:"window" validate:"required,min=1"`
	Overlap   int    `mapstructure:"overlap" validate:"min=0"`
	GroupSize int    `mapstructure:"group_size" validate:"required,min=1"`
	Strategy  string `mapstructure:"strategy" validate:"required,oneof=boundary plan"`
}

// LLMConfig selects the chat model provider.
type LLMConfig struct {
	Provider       string `mapstructure:"provider" validate:"omitempty,oneof=openai ollama claude gemini"`
	Model          string `mapstructure:"model" validate:"omitempty,min=1"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,min=1,max=600"`
}

// EmbeddingConfig points at a text-embeddings-inference server. When the
// endpoint is empty, embeddings come from the chat provider instead.
type EmbeddingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// RerankConfig points at a reranker server. An empty endpoint disables
// reranking and search results keep their index order.
type RerankConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// IndexConfig locates the vector index.
type IndexConfig struct {
	Host       string `mapstructure:"host" validate:"required"`
	Port       int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
	Collection string `mapstructure:"collection" validate:"required"`
}

// PostprocessConfig controls the indexing stage.
type PostprocessConfig struct {
	SummaryFanout int `mapstructure:"summary_fanout" validate:"required,min=1"`
}

// RetrievalConfig controls the question-answering surface.
type RetrievalConfig struct {
	Mode     string `mapstructure:"mode" validate:"required,oneof=normal deep deeper"`
	TopN     int    `mapstructure:"top_n" validate:"required,min=1"`
	HTTPPort int    `mapstructure:"http_port" validate:"required,gt=0,lte=65535"`
}

// MailboxConfig controls the notification store's read surface.
type MailboxConfig struct {
	HTTPPort int `mapstructure:"http_port" validate:"required,gt=0,lte=65535"`
}

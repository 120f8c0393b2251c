package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/docloom/docloom/internal/llm"
	"github.com/docloom/docloom/types"
)

const (
	configName = ".docloom"
	envPrefix  = "DOCLOOM"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate caches struct info across validations.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// InitConfig reads in the config file and matching environment variables.
// Precedence: flags > env > config file > defaults.
func InitConfig() {
	// Load .env first if present; a missing file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g. DOCLOOM_WATCH_ROOT
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFileFlag := viper.GetString("config"); cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if viper.GetString("config") != "" {
				fmt.Fprintln(os.Stderr, "Error: specified config file not found:", viper.GetString("config"))
				os.Exit(1)
			}
			// No config file found by the search paths; defaults and env apply.
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
			os.Exit(1)
		}
	}

	setDefaults()

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}

	if err := validate.Struct(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("watch_root", "")
	viper.SetDefault("access_table", "")
	viper.SetDefault("prompts_dir", "")

	// Socket topology. Ports are bind-side, endpoints connect-side, so the
	// daemons can be split across hosts by overriding the endpoints.
	viper.SetDefault("bus.push_port", 5555)
	viper.SetDefault("bus.router_port", 5556)
	viper.SetDefault("bus.access_port", 5559)
	viper.SetDefault("bus.preprocess_in", "tcp://127.0.0.1:5555")
	viper.SetDefault("bus.preprocess_req", "tcp://127.0.0.1:5556")
	viper.SetDefault("bus.preprocess_rep_port", 5557)
	viper.SetDefault("bus.preprocess_out_port", 5558)
	viper.SetDefault("bus.postprocess_in", "tcp://127.0.0.1:5558")
	viper.SetDefault("bus.mailbox_port", 5560)
	viper.SetDefault("bus.mailbox_endpoint", "tcp://127.0.0.1:5560")
	viper.SetDefault("bus.access_endpoint", "tcp://127.0.0.1:5559")
	viper.SetDefault("bus.fetch_endpoint", "tcp://127.0.0.1:5557")
	viper.SetDefault("bus.request_timeout_seconds", 5)

	viper.SetDefault("watcher.allowed_extensions", []string{".txt", ".docx", ".pdf", ".hwp"})
	viper.SetDefault("watcher.debounce_ms", 500)

	viper.SetDefault("chunking.window", 1000)
	viper.SetDefault("chunking.overlap", 200)
	viper.SetDefault("chunking.group_size", 8)
	viper.SetDefault("chunking.strategy", "boundary")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.timeout_seconds", 30)

	viper.SetDefault("embedding.endpoint", "")
	viper.SetDefault("rerank.endpoint", "")
	viper.SetDefault("rerank.model", "")

	viper.SetDefault("index.host", "localhost")
	viper.SetDefault("index.port", 6334)
	viper.SetDefault("index.collection", "docloom_chunks")

	viper.SetDefault("postprocess.summary_fanout", 4)

	viper.SetDefault("retrieval.mode", "deep")
	viper.SetDefault("retrieval.top_n", 3)
	viper.SetDefault("retrieval.http_port", 5000)

	viper.SetDefault("mailbox.http_port", 5001)
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}

// busTimeout is the deadline applied to intra-cluster request sockets.
func busTimeout(cfg *types.AppConfig) time.Duration {
	return time.Duration(cfg.Bus.RequestTimeoutSec) * time.Second
}

// modelTimeout is the deadline applied to model endpoints.
func modelTimeout(cfg *types.AppConfig) time.Duration {
	if cfg.LLM.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
}

// modelConfig maps the llm config section onto the model factory's input.
func modelConfig(cfg *types.AppConfig) (llm.Config, error) {
	provider, err := llm.ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return llm.Config{}, err
	}
	return llm.Config{
		Provider:       provider,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Timeout:        modelTimeout(cfg),
	}, nil
}

// requireSettings fails fast when a daemon is missing a setting that has no
// usable default.
func requireSettings(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%s must be set (flag, DOCLOOM_* env, or %s.yaml)", pairs[i], configName)
		}
	}
	return nil
}

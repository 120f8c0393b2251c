package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/docloom/docloom/internal/llm"
	"github.com/docloom/docloom/types"
)

func TestDefaultsUnmarshalAndValidate(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	var cfg types.AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults: %v", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.Bus.PushPort != 5555 || cfg.Bus.MailboxPort != 5560 {
		t.Errorf("bus ports = %d/%d", cfg.Bus.PushPort, cfg.Bus.MailboxPort)
	}
	if cfg.Bus.PreprocessIn != "tcp://127.0.0.1:5555" {
		t.Errorf("preprocess_in = %q", cfg.Bus.PreprocessIn)
	}
	if cfg.Retrieval.Mode != "deep" || cfg.Retrieval.TopN != 3 || cfg.Retrieval.HTTPPort != 5000 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Index.Collection != "docloom_chunks" || cfg.Index.Port != 6334 {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Chunking.Strategy != "boundary" || cfg.Chunking.Window != 1000 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if len(cfg.Watcher.AllowedExtensions) != 4 {
		t.Errorf("allowed extensions = %v", cfg.Watcher.AllowedExtensions)
	}

	if got := busTimeout(&cfg); got != 5*time.Second {
		t.Errorf("bus timeout = %s", got)
	}
	if got := modelTimeout(&cfg); got != 30*time.Second {
		t.Errorf("model timeout = %s", got)
	}
}

func TestRequireSettings(t *testing.T) {
	err := requireSettings("watch_root", "", "access_table", "/etc/docloom/access.yaml")
	if err == nil || !strings.Contains(err.Error(), "watch_root") {
		t.Fatalf("err = %v", err)
	}
	if err := requireSettings("watch_root", "/srv/docs", "access_table", "/etc/access.yaml"); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestModelConfig(t *testing.T) {
	cfg := types.AppConfig{LLM: types.LLMConfig{
		Provider:       "ollama",
		Model:          "llama3.1",
		BaseURL:        "http://models:11434",
		TimeoutSeconds: 90,
	}}

	mc, err := modelConfig(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if mc.Provider != llm.ProviderOllama || mc.Model != "llama3.1" || mc.Timeout != 90*time.Second {
		t.Fatalf("model config = %+v", mc)
	}

	cfg.LLM.Provider = "watson"
	if _, err := modelConfig(&cfg); err == nil {
		t.Fatal("unknown provider should be rejected")
	}
}

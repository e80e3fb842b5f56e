package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"script_video_assistant/generator"
)

// ErrConfig reports configuration that cannot start the assistant.
var ErrConfig = errors.New("configuration error")

const (
	ProviderGroq     = "groq"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderMock     = "mock"

	groqBaseURL = "https://api.groq.com/openai/v1"
)

// Config holds everything the assistant needs besides the command line.
type Config struct {
	LLM    *LLMConfig   `json:"llm,omitempty" yaml:"llm,omitempty"`
	Paths  PathsConfig  `json:"paths" yaml:"paths"`
	Render RenderConfig `json:"render" yaml:"render"`
	Retry  RetryConfig  `json:"retry" yaml:"retry"`
	Prompt PromptConfig `json:"prompt" yaml:"prompt"`
	Batch  BatchConfig  `json:"transform" yaml:"transform"`
}

// LLMConfig selects the chat completion provider.
type LLMConfig struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// TimeoutSeconds bounds a single completion call.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

type PathsConfig struct {
	KnowledgeBase         string `json:"knowledge_base" yaml:"knowledge_base"`
	ImprovedKnowledgeBase string `json:"improved_knowledge_base" yaml:"improved_knowledge_base"`
	ScriptsDir            string `json:"scripts_dir" yaml:"scripts_dir"`
	VideosDir             string `json:"videos_dir" yaml:"videos_dir"`
	// ScriptExt is used when the model does not tag its code block.
	ScriptExt string `json:"script_ext" yaml:"script_ext"`
}

// RenderConfig is the fixed presentation handed to the renderer plus the
// command that runs it.
type RenderConfig struct {
	Command         []string `json:"command" yaml:"command"`
	BackgroundImage string   `json:"background_image" yaml:"background_image"`
	Font            string   `json:"font" yaml:"font"`
	Width           int      `json:"width" yaml:"width"`
	Height          int      `json:"height" yaml:"height"`
	FPS             int      `json:"fps" yaml:"fps"`
	CharsPerSecond  int      `json:"chars_per_second" yaml:"chars_per_second"`
	Margins         int      `json:"margins" yaml:"margins"`
	AudioPath       string   `json:"audio_path" yaml:"audio_path"`
	VideoExt        string   `json:"video_ext" yaml:"video_ext"`
	TimeoutSeconds  int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type RetryConfig struct {
	MaxAttempts     int `json:"max_attempts" yaml:"max_attempts"`
	BaseDelayMillis int `json:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMillis  int `json:"max_delay_ms" yaml:"max_delay_ms"`
}

type PromptConfig struct {
	ScriptLanguage  string `json:"script_language" yaml:"script_language"`
	CommentLanguage string `json:"comment_language" yaml:"comment_language"`
}

type BatchConfig struct {
	DelayMillis int `json:"delay_ms" yaml:"delay_ms"`
}

// DefaultConfig mirrors the settings the assistant has always shipped with.
func DefaultConfig() Config {
	return Config{
		LLM: &LLMConfig{
			Provider:       ProviderGroq,
			Model:          generator.DefaultModel,
			APIKeyEnv:      "GROQ_API_KEY",
			TimeoutSeconds: 120,
		},
		Paths: PathsConfig{
			KnowledgeBase:         "knowledge_base.json",
			ImprovedKnowledgeBase: "knowledge_base_improved.json",
			ScriptsDir:            "scripts",
			VideosDir:             "videos",
			ScriptExt:             "py",
		},
		Render: RenderConfig{
			Command:         []string{"python3", "script_animator.py"},
			BackgroundImage: "image1.png",
			Font:            "typewriter.ttf",
			Width:           640,
			Height:          480,
			FPS:             25,
			CharsPerSecond:  10,
			Margins:         40,
			AudioPath:       "background1.mp3",
			VideoExt:        "avi",
			TimeoutSeconds:  600,
		},
		Retry: RetryConfig{
			MaxAttempts:     5,
			BaseDelayMillis: 1000,
			MaxDelayMillis:  30000,
		},
		Prompt: PromptConfig{
			ScriptLanguage:  "Python",
			CommentLanguage: "Spanish",
		},
		Batch: BatchConfig{DelayMillis: 2000},
	}
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadConfig reads a JSON or YAML config file over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file. Missing credentials fail here, before any provider is contacted.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
		}
	}
	if cfg.LLM == nil {
		cfg.LLM = DefaultConfig().LLM
	}
	applyEnv(cfg.LLM)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(llm *LLMConfig) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		llm.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		llm.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		llm.BaseURL = v
	}
	if llm.APIKey == "" && llm.APIKeyEnv != "" {
		llm.APIKey = os.Getenv(llm.APIKeyEnv)
	}
	if llm.APIKey == "" {
		llm.APIKey = os.Getenv("LLM_API_KEY")
	}
	llm.Provider = strings.ToLower(strings.TrimSpace(llm.Provider))
	if llm.Provider == ProviderGroq && llm.BaseURL == "" {
		llm.BaseURL = groqBaseURL
	}
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderMock:
	case ProviderDeepSeek:
		// DeepSeek only offers an OpenAI-compatible endpoint.
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("%w: llm provider deepseek requires base_url", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: llm provider %q not supported", ErrConfig, c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderMock {
		if c.LLM.APIKey == "" {
			env := c.LLM.APIKeyEnv
			if env == "" {
				env = "LLM_API_KEY"
			}
			return fmt.Errorf("%w: api key missing; export %s=<your_api_key>", ErrConfig, env)
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("%w: llm model is required", ErrConfig)
		}
	}
	if c.Paths.KnowledgeBase == "" || c.Paths.ScriptsDir == "" || c.Paths.VideosDir == "" {
		return fmt.Errorf("%w: paths.knowledge_base, paths.scripts_dir and paths.videos_dir are required", ErrConfig)
	}
	if len(c.Render.Command) == 0 {
		return fmt.Errorf("%w: render.command is required", ErrConfig)
	}
	return nil
}

// CallTimeout is the per-call LLM deadline.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// RenderTimeout is the deadline for one render.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// TransformDelay is the spacing between provider calls in transform mode.
func (c Config) TransformDelay() time.Duration {
	return time.Duration(c.Batch.DelayMillis) * time.Millisecond
}

// RetryPolicy converts the retry section for the session.
func (c Config) RetryPolicy() generator.RetryPolicy {
	return generator.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMillis) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMillis) * time.Millisecond,
	}
}

// LLMSettings converts the llm section for the client constructors.
func (c Config) LLMSettings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.CallTimeout(),
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"script_video_assistant/generator"
	"script_video_assistant/knowledge"
	"script_video_assistant/publisher"
)

const defaultConfigPath = "config/config.json"

type options struct {
	prompt     string
	debug      bool
	transform  bool
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "script-assistant",
		Short: "Generate tutorial scripts with an LLM and render them as narrated videos",
		Long: `script-assistant turns a request into a commented script, saves it under
scripts/, renders it to a video and remembers it in knowledge_base.json.

Set your API key before running:
  export GROQ_API_KEY=<your_api_key>`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "the request for the script to generate")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging of prompts and responses")
	flags.BoolVar(&opts.transform, "transform", false, "rewrite the knowledge base into an improved copy and exit")
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to a JSON or YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.MarkFlagsMutuallyExclusive("prompt", "transform")
	cmd.MarkFlagsOneRequired("prompt", "transform")
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func run(cmd *cobra.Command, opts options) error {
	logger, err := newLogger(opts.debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()
	stop := exitOnInterrupt(out)
	defer stop()

	if err := publisher.LoadEnvFile(opts.envFile); err != nil {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	configPath := opts.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			configPath = ""
		}
	}
	cfg, err := publisher.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("knowledge_base", cfg.Paths.KnowledgeBase),
	)

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	agent, err := generator.NewAgent(llm, generator.AgentOptions{
		ScriptLanguage:  cfg.Prompt.ScriptLanguage,
		CommentLanguage: cfg.Prompt.CommentLanguage,
		CallTimeout:     cfg.CallTimeout(),
		Logger:          logger.Named("agent"),
	})
	if err != nil {
		return err
	}
	store, err := knowledge.Load(cfg.Paths.KnowledgeBase)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if opts.transform {
		return runTransform(ctx, cfg, agent, store, out, logger)
	}

	renderer, err := publisher.NewCommandRenderer(cfg.Render.Command)
	if err != nil {
		return err
	}
	handoff, err := publisher.NewHandoff(cfg, renderer, logger.Named("handoff"))
	if err != nil {
		return err
	}
	sess, err := generator.NewSession(generator.SessionConfig{
		Agent:     agent,
		Knowledge: store,
		Handoff:   handoff,
		Retry:     cfg.RetryPolicy(),
		Logger:    logger.Named("session"),
	})
	if err != nil {
		return err
	}
	return runLoop(ctx, sess, opts.prompt, cmd.InOrStdin(), out)
}

func runTransform(ctx context.Context, cfg publisher.Config, agent *generator.Agent, store *knowledge.Store, out io.Writer, logger *zap.Logger) error {
	tr, err := generator.NewTransformer(agent, cfg.TransformDelay(), logger.Named("transform"))
	if err != nil {
		return err
	}
	logger.Info("transforming knowledge base", zap.Int("entries", store.Len()))
	dst, err := tr.Transform(ctx, store, cfg.Paths.ImprovedKnowledgeBase)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[+] New knowledge base saved to %s\n", dst.Path())
	return nil
}

func buildLLM(cfg publisher.Config) (generator.LLMClient, error) {
	switch cfg.LLM.Provider {
	case publisher.ProviderMock:
		return generator.MockLLM{}, nil
	case publisher.ProviderGroq, publisher.ProviderOpenAI, publisher.ProviderDeepSeek:
		// All three speak the OpenAI chat completions protocol.
		return generator.NewOpenAILLMFromConfig(cfg.LLMSettings())
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

// exitOnInterrupt prints a notice and exits as soon as SIGINT or SIGTERM
// arrives. Store writes are atomic, so no cleanup is needed.
func exitOnInterrupt(out io.Writer) (stop func()) {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			fmt.Fprintln(out, "\n[*] Interrupt received, exiting.")
			os.Exit(0)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/medleaf/ConsultFlow/internal/api"
	"github.com/medleaf/ConsultFlow/internal/engine"
	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/prompts"
	"github.com/medleaf/ConsultFlow/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ConsultFlow state data
	DefaultStateDir = "/var/lib/consultflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "consultflow.db"
)

// Config holds environment configuration
type Config struct {
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBase  string `env:"OPENAI_BASE_URL"`
	Model       string `env:"OPENAI_MODEL"`
	JudgeModel  string `env:"JUDGE_MODEL"`
	DatabaseURL string `env:"DATABASE_URL"`
	StateDir    string `env:"CONSULTFLOW_STATE_DIR"`
	APIAddr     string `env:"API_ADDR"`
	PromptsDir  string `env:"CONSULTFLOW_PROMPTS_DIR"`
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	openaiBase *string
	model      *string
	judgeModel *string
	apiAddr    *string
	promptsDir *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping ConsultFlow with configured modules")
	if err := run(flags); err != nil {
		slog.Error("ConsultFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ConsultFlow exited successfully")
}

func run(flags Flags) error {
	sessionStore, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	registry, err := prompts.NewRegistry(buildPromptOptions(flags)...)
	if err != nil {
		return err
	}

	eng := engine.New(genaiClient, registry)
	server := api.NewServer(eng, sessionStore, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	var config Config
	if err := env.Parse(&config); err != nil {
		slog.Warn("failed to parse environment configuration", "error", err)
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CONSULTFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.Model,
		"JUDGE_MODEL", config.JudgeModel,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CONSULTFLOW_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"CONSULTFLOW_PROMPTS_DIR", config.PromptsDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for ConsultFlow data (overrides $CONSULTFLOW_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBase: flag.String("openai-base-url", config.OpenAIBase, "OpenAI-compatible base URL (overrides $OPENAI_BASE_URL)"),
		model:      flag.String("model", config.Model, "generation model (overrides $OPENAI_MODEL)"),
		judgeModel: flag.String("judge-model", config.JudgeModel, "judge model (overrides $JUDGE_MODEL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		promptsDir: flag.String("prompts-dir", config.PromptsDir, "prompt template override directory (overrides $CONSULTFLOW_PROMPTS_DIR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"judgeModel", *flags.judgeModel,
		"apiAddr", *flags.apiAddr,
		"promptsDir", *flags.promptsDir)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore constructs the session store from the DSN, detecting the backend.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBase != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBase))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	if *flags.judgeModel != "" {
		genaiOpts = append(genaiOpts, genai.WithJudgeModel(*flags.judgeModel))
	}
	return genaiOpts
}

// buildPromptOptions constructs prompt registry options
func buildPromptOptions(flags Flags) []prompts.Option {
	var promptOpts []prompts.Option
	if *flags.promptsDir != "" {
		promptOpts = append(promptOpts, prompts.WithDir(*flags.promptsDir))
	}
	return promptOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/adapter"
	"github.com/medley-health/medley/pkg/agent"
	"github.com/medley-health/medley/pkg/agent/economic"
	"github.com/medley-health/medley/pkg/agent/mental"
	"github.com/medley-health/medley/pkg/agent/physical"
	"github.com/medley-health/medley/pkg/archive"
	"github.com/medley-health/medley/pkg/coordinator"
	"github.com/medley-health/medley/pkg/memory"
	"github.com/medley-health/medley/pkg/model"
	"github.com/medley-health/medley/pkg/policy"
	"github.com/medley-health/medley/pkg/repository"
	"github.com/medley-health/medley/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel  string
	logFormat string

	// Repository
	backend  string
	dbPath   string
	project  string
	database string

	// Reasoning
	reasoner        string
	embedder        string
	anthropicAPIKey string
	geminiProject   string
	geminiLocation  string
	hotline         string

	// Coordinator
	configPath string
	policyPath string

	// Archive
	archiveBucket   string
	archivePrefix   string
	bigqueryProject string
	bigqueryDataset string
	bigqueryTable   string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("MEDLEY_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("MEDLEY_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Memory backend (memory, sqlite, firestore)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("MEDLEY_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "db-path",
			Usage:       "SQLite database file",
			Value:       "medley.db",
			Sources:     cli.EnvVars("MEDLEY_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// llmFlags returns flags for reasoning and embedding backends
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "reasoner",
			Usage:       "Domain reasoner (rules, gemini, claude)",
			Value:       "rules",
			Sources:     cli.EnvVars("MEDLEY_REASONER"),
			Destination: &cfg.reasoner,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Experience embedder (hash, gemini)",
			Value:       "hash",
			Sources:     cli.EnvVars("MEDLEY_EMBEDDER"),
			Destination: &cfg.embedder,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "hotline",
			Usage:       "Crisis line quoted in urgent mental health recommendations",
			Sources:     cli.EnvVars("MEDLEY_HOTLINE"),
			Destination: &cfg.hotline,
		},
	}
}

// coordinatorFlags returns flags for tunables, dispatch policy and archive sinks
func coordinatorFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with coordinator tunables",
			Sources:     cli.EnvVars("MEDLEY_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Rego file or directory selecting domains (package dispatch)",
			Sources:     cli.EnvVars("MEDLEY_POLICY"),
			Destination: &cfg.policyPath,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket receiving session archives",
			Sources:     cli.EnvVars("MEDLEY_ARCHIVE_BUCKET"),
			Destination: &cfg.archiveBucket,
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object prefix of session archives in the bucket",
			Value:       "sessions",
			Sources:     cli.EnvVars("MEDLEY_ARCHIVE_PREFIX"),
			Destination: &cfg.archivePrefix,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID for the BigQuery export",
			Sources:     cli.EnvVars("MEDLEY_BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset of the session table",
			Sources:     cli.EnvVars("MEDLEY_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table receiving one row per session",
			Value:       "sessions",
			Sources:     cli.EnvVars("MEDLEY_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
	}
}

// withLogger attaches a logger writing to stderr at the configured level and format
func (cfg *config) withLogger(ctx context.Context) (context.Context, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return ctx, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}

	logger := logging.New(os.Stderr, logging.WithLevel(level), logging.WithFormat(format))
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newRepository creates the repository selected by --backend. The returned
// closer releases the underlying client.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, io.Closer, error) {
	switch cfg.backend {
	case "memory":
		return repository.NewMemory(), nopCloser{}, nil

	case "sqlite":
		if cfg.dbPath == "" {
			return nil, nil, goerr.New("db-path is required for sqlite backend")
		}
		repo, err := repository.NewSQLite(ctx, cfg.dbPath)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, repo, nil

	case "firestore":
		if cfg.project == "" {
			return nil, nil, goerr.New("project is required for firestore backend")
		}
		if cfg.database == "" {
			return nil, nil, goerr.New("database is required for firestore backend")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, repo, nil

	default:
		return nil, nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (*adapter.ClaudeClient, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}
	return adapter.NewClaude(cfg.anthropicAPIKey), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

func (cfg *config) newEmbedder(ctx context.Context) (memory.Embedder, error) {
	switch cfg.embedder {
	case "", "hash":
		return memory.NewHashEmbedder(0), nil
	case "gemini":
		g, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, goerr.New("unknown embedder", goerr.V("embedder", cfg.embedder))
	}
}

// newAdapters builds one adapter per domain
func (cfg *config) newAdapters(ctx context.Context) ([]agent.Adapter, error) {
	var gen agent.Generator
	switch cfg.reasoner {
	case "", "rules":
		var opts []mental.Option
		if cfg.hotline != "" {
			opts = append(opts, mental.WithHotline(cfg.hotline))
		}
		return []agent.Adapter{mental.New(opts...), physical.New(), economic.New()}, nil

	case "gemini":
		g, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		gen = g

	case "claude":
		c, err := cfg.newClaude()
		if err != nil {
			return nil, err
		}
		gen = c

	default:
		return nil, goerr.New("unknown reasoner", goerr.V("reasoner", cfg.reasoner))
	}

	adapters := make([]agent.Adapter, 0, len(model.AllDomains()))
	for _, d := range model.AllDomains() {
		adapters = append(adapters, agent.NewLLM(d, gen))
	}
	return adapters, nil
}

func (cfg *config) loadTunables() (*coordinator.Config, error) {
	if cfg.configPath == "" {
		return coordinator.DefaultConfig(), nil
	}
	return coordinator.LoadConfig(cfg.configPath)
}

func (cfg *config) newSinks(ctx context.Context) ([]archive.Sink, *archive.GCS, error) {
	var sinks []archive.Sink
	var gcs *archive.GCS

	if cfg.archiveBucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.archiveBucket)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create storage")
		}
		var opts []archive.GCSOption
		if cfg.archivePrefix != "" {
			opts = append(opts, archive.WithPrefix(cfg.archivePrefix))
		}
		gcs = archive.NewGCS(storage, opts...)
		sinks = append(sinks, gcs)
	}

	if cfg.bigqueryDataset != "" {
		project := cfg.bigqueryProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, nil, goerr.New("bigquery-project is required for the BigQuery export")
		}
		bq, err := adapter.NewBigQuery(ctx, project)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create bigquery client")
		}
		sinks = append(sinks, archive.NewBigQuery(bq, cfg.bigqueryDataset, cfg.bigqueryTable))
	}
	return sinks, gcs, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// runtime bundles everything a command needs
type runtime struct {
	store       *memory.Store
	coordinator *coordinator.Coordinator
	archive     *archive.GCS
	closer      io.Closer
}

func (r *runtime) Close() error {
	return r.closer.Close()
}

// newRuntime wires repository, memory store, adapters and coordinator
func (cfg *config) newRuntime(ctx context.Context) (*runtime, error) {
	tunables, err := cfg.loadTunables()
	if err != nil {
		return nil, err
	}

	repo, closer, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	store := memory.New(repo, memory.WithEmbedder(embedder), memory.WithHalfLife(tunables.HalfLife))

	adapters, err := cfg.newAdapters(ctx)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	opts := []coordinator.Option{coordinator.WithConfig(tunables)}
	if cfg.policyPath != "" {
		p, err := policy.Load(ctx, cfg.policyPath)
		if err != nil {
			_ = closer.Close()
			return nil, goerr.Wrap(err, "failed to load dispatch policy")
		}
		if p != nil {
			opts = append(opts, coordinator.WithPolicy(p))
		}
	}

	sinks, gcs, err := cfg.newSinks(ctx)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	if len(sinks) > 0 {
		opts = append(opts, coordinator.WithSinks(sinks...))
	}

	return &runtime{
		store:       store,
		coordinator: coordinator.New(store, adapters, opts...),
		archive:     gcs,
		closer:      closer,
	}, nil
}

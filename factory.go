package promptcache

import (
	"context"
	"fmt"
	"os"

	"github.com/blueberrycongee/promptcache/internal/cache/exact"
	"github.com/blueberrycongee/promptcache/internal/config"
	"github.com/blueberrycongee/promptcache/internal/embedding"
	"github.com/blueberrycongee/promptcache/internal/observability"
	"github.com/blueberrycongee/promptcache/internal/provider"
	"github.com/blueberrycongee/promptcache/internal/secret"
	secretenv "github.com/blueberrycongee/promptcache/internal/secret/env"
	secretvault "github.com/blueberrycongee/promptcache/internal/secret/vault"
	"github.com/blueberrycongee/promptcache/internal/vector"
)

// NewFromConfigFile builds a fully wired client from a YAML configuration
// file. Credential references (env://, vault://) resolve through the
// secret manager; plain values pass through unchanged. Tracing is
// initialized when enabled and shut down by Close.
func NewFromConfigFile(ctx context.Context, path string) (*Client, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg)
}

// NewFromConfig builds a client from an already loaded configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	logger := observability.NewLoggerFromStrings(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	secrets := secret.NewManager()
	secrets.Register("env", secretenv.New())

	if cfg.Vault.Address != "" {
		vp, err := secretvault.New(secretvault.Config{
			Address:    cfg.Vault.Address,
			AuthMethod: cfg.Vault.AuthMethod,
			RoleID:     cfg.Vault.RoleID,
			SecretID:   cfg.Vault.SecretID,
			CACert:     cfg.Vault.CACert,
			ClientCert: cfg.Vault.ClientCert,
			ClientKey:  cfg.Vault.ClientKey,
			Logger:     logger.Slog(),
		})
		if err != nil {
			return nil, fmt.Errorf("connect vault: %w", err)
		}
		secrets.Register("vault", secret.NewCachedProvider(vp, cfg.Vault.CacheTTL))
	}

	embedder, err := buildEmbedder(ctx, cfg, secrets)
	if err != nil {
		secrets.Close()
		return nil, err
	}

	store, err := buildVectorStore(cfg)
	if err != nil {
		secrets.Close()
		return nil, err
	}

	providers, err := buildProviders(ctx, cfg, secrets, logger)
	if err != nil {
		secrets.Close()
		return nil, err
	}

	opts := []Option{
		WithEmbedder(embedder),
		WithVectorStore(store),
		WithProviders(providers...),
		WithSimilarityThreshold(cfg.Cache.SimilarityThreshold),
		WithLookupLimit(cfg.Cache.LookupLimit),
		WithLogger(logger.Slog()),
	}

	if cfg.ExactCache.Enabled {
		answers, err := buildAnswerCache(ctx, cfg, secrets, logger)
		if err != nil {
			secrets.Close()
			return nil, err
		}
		opts = append(opts, WithAnswerCache(answers), WithAnswerCacheTTL(cfg.ExactCache.TTL))
	}

	client, err := New(opts...)
	if err != nil {
		secrets.Close()
		return nil, err
	}
	client.secrets = secrets

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:     true,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRate:  cfg.Tracing.SampleRate,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		client.tracing = tp
	}

	return client, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config, secrets *secret.Manager) (Embedder, error) {
	apiKey, err := secrets.Get(ctx, cfg.Embedding.APIKey)
	if err != nil {
		return nil, fmt.Errorf("resolve embedding api key: %w", err)
	}

	switch cfg.Embedding.Backend {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:    apiKey,
			APIBase:   cfg.Embedding.APIBase,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
	case "huggingface":
		return embedding.NewHuggingFaceEmbedder(embedding.HuggingFaceConfig{
			APIKey:    apiKey,
			APIBase:   cfg.Embedding.APIBase,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedding backend: %q", cfg.Embedding.Backend)
	}
}

func buildVectorStore(cfg *config.Config) (VectorStore, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return vector.NewQdrantStore(vector.QdrantConfig{
			APIBase: cfg.Vector.URL,
			APIKey:  cfg.Vector.APIKey,
		})
	case "chromem":
		return vector.NewChromemStore(vector.ChromemConfig{
			Path: cfg.Vector.Path,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend: %q", cfg.Vector.Backend)
	}
}

func buildAnswerCache(ctx context.Context, cfg *config.Config, secrets *secret.Manager, logger *observability.Logger) (AnswerCache, error) {
	ec := cfg.ExactCache

	newRedis := func() (*exact.RedisCache, error) {
		password, err := secrets.Get(ctx, ec.Redis.Password)
		if err != nil {
			return nil, fmt.Errorf("resolve redis password: %w", err)
		}
		return exact.NewRedisCache(exact.RedisConfig{
			Addr:         ec.Redis.Addr,
			Password:     password,
			DB:           ec.Redis.DB,
			ClusterAddrs: ec.Redis.ClusterAddrs,
			DefaultTTL:   ec.TTL,
			DialTimeout:  ec.Redis.DialTimeout,
			ReadTimeout:  ec.Redis.ReadTimeout,
			WriteTimeout: ec.Redis.WriteTimeout,
			PoolSize:     ec.Redis.PoolSize,
		})
	}

	switch ec.Backend {
	case "memory":
		return exact.NewMemoryCache(ec.TTL), nil
	case "redis":
		return newRedis()
	case "dual":
		l2, err := newRedis()
		if err != nil {
			return nil, err
		}
		return exact.NewDualCache(exact.NewMemoryCache(ec.L1TTL), l2, ec.L1TTL, logger.Slog()), nil
	default:
		return nil, fmt.Errorf("unknown exact cache backend: %q", ec.Backend)
	}
}

func buildProviders(ctx context.Context, cfg *config.Config, secrets *secret.Manager, logger *observability.Logger) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		keys, err := secrets.GetKeys(ctx, pc.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("resolve keys for provider %s: %w", pc.Name, err)
		}

		var p Provider
		switch pc.Type {
		case "gemini":
			p, err = provider.NewGeminiProvider(provider.GeminiConfig{
				APIKeys: keys,
				APIBase: pc.APIBase,
				Model:   pc.Model,
				Timeout: pc.Timeout,
				Logger:  logger.Slog(),
			})
		case "openrouter":
			p, err = provider.NewOpenRouterProvider(provider.OpenRouterConfig{
				APIKey:         keys[0],
				APIBase:        pc.APIBase,
				Model:          pc.Model,
				Timeout:        pc.Timeout,
				Logger:         logger.Slog(),
				FallbackModels: pc.FallbackModels,
			})
		case "openai":
			p, err = provider.NewOpenAIProvider(provider.OpenAIConfig{
				APIKey:  keys[0],
				APIBase: pc.APIBase,
				Model:   pc.Model,
				Timeout: pc.Timeout,
			})
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", pc.Name, pc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}

		if pc.RequestsPerSecond > 0 {
			p = provider.NewRateLimitedProvider(p, pc.RequestsPerSecond, pc.Burst)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

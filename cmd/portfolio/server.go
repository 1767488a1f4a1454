package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sofatutor/portfolio-api/internal/assistant"
	"github.com/sofatutor/portfolio-api/internal/audit"
	"github.com/sofatutor/portfolio-api/internal/auth"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/metrics"
	"github.com/sofatutor/portfolio-api/internal/notify"
	"github.com/sofatutor/portfolio-api/internal/profile"
	"github.com/sofatutor/portfolio-api/internal/ratelimit"
	"github.com/sofatutor/portfolio-api/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Server command flags
var (
	serverListenAddr   string
	serverDatabasePath string
	serverLogLevel     string
	serverLogFile      string
	debugMode          bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long:  `Start the API server using configuration from the environment.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverListenAddr, "addr", "", "Address to listen on (overrides LISTEN_ADDR)")
	serverCmd.Flags().StringVar(&serverDatabasePath, "db", "", "Path to SQLite database (overrides DATABASE_PATH)")
	serverCmd.Flags().StringVar(&serverLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	serverCmd.Flags().StringVar(&serverLogFile, "log-file", "", "Path to log file (overrides LOG_FILE, default: stdout)")
	serverCmd.Flags().BoolVarP(&debugMode, "debug", "v", config.EnvBoolOrDefault("DEBUG", false), "Enable debug logging (overrides log-level)")
}

// applyOverrides copies non-empty flag values into the environment so
// config.New sees them.
func applyOverrides(overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	if debugMode {
		serverLogLevel = "debug"
	}
	if err := applyOverrides(map[string]string{
		"LISTEN_ADDR":   serverListenAddr,
		"DATABASE_PATH": serverDatabasePath,
		"LOG_LEVEL":     serverLogLevel,
		"LOG_FILE":      serverLogFile,
	}); err != nil {
		return err
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "inappropriate ioctl for device") {
			log.Printf("Error syncing zap logger: %v", err)
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println("Press Ctrl+C to stop")
	}

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	logger.Info("server shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

// app owns everything the server needs and releases it on Close.
type app struct {
	server      *server.Server
	db          *database.DB
	redis       *redis.Client
	audit       *audit.Logger
	stopJanitor context.CancelFunc
	stopWarmUp  context.CancelFunc
}

// tokenizerWarmUpTimeout bounds the background fetch of the tokenizer
// encoding. Chat requests never wait on it.
const tokenizerWarmUpTimeout = 30 * time.Second

// warmUp loads the remote responder's tokenizer off the request path.
func (a *app) warmUp(remote *assistant.OpenAIResponder, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenizerWarmUpTimeout)
	a.stopWarmUp = cancel
	go func() {
		defer cancel()
		if err := remote.WarmUp(ctx); err != nil {
			logger.Warn("tokenizer encoding unavailable, history is trimmed by estimate", zap.Error(err))
			return
		}
		logger.Debug("tokenizer encoding loaded")
	}()
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error
	a.db, err = database.New(buildDatabaseConfig(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	limiter, buckets := a.buildLimiter(cfg, logger)

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New(buckets.Len, assistant.ErrNoReply)
	}

	p, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	var responders []assistant.Responder
	if cfg.RemoteAssistantEnabled() {
		remote := assistant.NewOpenAIResponder(assistant.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.OpenAIModel,
			BaseURL:       cfg.OpenAIAPIURL,
			Timeout:       cfg.AssistantTimeout,
			MaxTokens:     cfg.AssistantMaxTokens,
			Temperature:   cfg.AssistantTemperature,
			HistoryTokens: cfg.AssistantHistoryTokens,
			SystemPrompt:  p.SystemPrompt(),
		}, nil)
		a.warmUp(remote, logger)
		responders = append(responders, remote)
	} else {
		logger.Info("OPENAI_API_KEY not set, chat uses keyword replies only")
	}
	responders = append(responders, assistant.NewProfileResponder(p))

	var (
		recorder assistant.Recorder
		outcome  notify.Outcome
	)
	if m != nil {
		recorder, outcome = m, m
	}
	chain := assistant.NewChain(logger, recorder, responders...)
	chat := assistant.NewService(a.db, chain, cfg.AssistantHistoryMessages, logger)

	mailer, err := notify.NewMailer(cfg.Email, logger)
	if err != nil {
		return nil, fmt.Errorf("configure email: %w", err)
	}
	notifier := notify.NewNotifier(mailer, cfg.Email.From, cfg.Email.To, cfg.Email.Timeout, logger, outcome)
	contact := notify.NewContactService(a.db, notifier, logger)

	a.audit = audit.NewNullLogger()
	if cfg.AuditEnabled {
		if a.audit, err = audit.NewLogger(cfg.AuditLogFile); err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	keys := auth.NewKeyVerifier(cfg.AdminAPIKey)
	if !keys.Configured() {
		logger.Warn("ADMIN_API_KEY not set, admin endpoints reject every request")
	}

	a.server, err = server.New(cfg, server.Deps{
		Chat:    chat,
		Contact: contact,
		Store:   a.db,
		Limiter: limiter,
		Keys:    keys,
		Audit:   a.audit,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("application initialized",
		zap.String("db_driver", cfg.DBDriver),
		zap.String("rate_limit_backend", cfg.RateLimitBackend),
		zap.String("email_provider", cfg.Email.Provider),
		zap.Strings("responders", chain.Names()),
		zap.Bool("metrics", m != nil))
	ready = true
	return a, nil
}

// buildDatabaseConfig starts from the DB_* environment and lets the
// validated application config win for the fields it owns.
func buildDatabaseConfig(cfg *config.Config, logger *zap.Logger) database.Config {
	dbConfig := database.ConfigFromEnv(logger)
	dbConfig.Driver = database.DriverType(cfg.DBDriver)
	if cfg.DatabasePath != "" {
		dbConfig.Path = cfg.DatabasePath
	}
	dbConfig.DatabaseURL = cfg.DatabaseURL
	if cfg.DatabasePoolSize > 0 {
		dbConfig.MaxOpenConns = cfg.DatabasePoolSize
	}
	return dbConfig
}

// buildLimiter returns the limiter used by the routes and the in-process
// bucket store behind it. With the redis backend the memory limiter serves
// as the fallback.
func (a *app) buildLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, *ratelimit.MemoryLimiter) {
	mem := ratelimit.NewMemoryLimiter(cfg.RateLimitMaxKeys)
	ctx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel
	go mem.Run(ctx, cfg.RateLimitSweepInterval)

	if cfg.RateLimitBackend != "redis" {
		return mem, mem
	}

	a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting falls back to memory until it recovers",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	var secret []byte
	if cfg.RateLimitKeySecret != "" {
		secret = []byte(cfg.RateLimitKeySecret)
	}
	return ratelimit.NewRedisLimiter(a.redis, ratelimit.RedisConfig{
		KeyPrefix:     cfg.RateLimitPrefix,
		KeyHashSecret: secret,
	}, mem, logger), mem
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.stopWarmUp != nil {
		a.stopWarmUp()
	}
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("Warning: error releasing resources: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	apihttp "mediashare/internal/api/http"
	"mediashare/internal/app"
	"mediashare/internal/cache"
	"mediashare/internal/metrics"
	"mediashare/internal/providers/imdb"
	"mediashare/internal/providers/tmdb"
	mongorepo "mediashare/internal/repository/mongo"
	"mediashare/internal/telegram"
	"mediashare/internal/telemetry"
	"mediashare/internal/usecase"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Options{
		ServiceName: "mediashare",
		Endpoint:    cfg.OTelEndpoint,
		SampleRate:  cfg.OTelSampleRate,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "mediashare"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("mongoDb", cfg.MongoDatabase),
		slog.Bool("redisCache", cfg.RedisURL != ""),
		slog.Int("tmdbChannels", len(cfg.TMDBChannelIDs)),
		slog.Bool("sendUpdates", cfg.SendUpdates),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongorepo.EnsureAllIndexes(ctx, mongoClient, cfg.MongoDatabase); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}

	mediaRepo := mongorepo.NewMediaRepository(mongoClient, cfg.MongoDatabase)
	titleRepo := mongorepo.NewTitleRepository(mongoClient, cfg.MongoDatabase)
	entityRepo := mongorepo.NewEntityRepository(mongoClient, cfg.MongoDatabase)
	tokenRepo := mongorepo.NewTokenRepository(mongoClient, cfg.MongoDatabase)
	userRepo := mongorepo.NewUserRepository(mongoClient, cfg.MongoDatabase)
	channelRepo := mongorepo.NewChannelRepository(mongoClient, cfg.MongoDatabase)

	var providerCache *cache.RedisBackend
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis config invalid, provider cache disabled", slog.String("error", err.Error()))
		} else {
			providerCache = cache.NewRedisBackend(redisClient, "mediashare:tmdb")
			if err := providerCache.Ping(ctx); err != nil {
				logger.Warn("redis unreachable, provider cache disabled", slog.String("error", err.Error()))
				_ = redisClient.Close()
				providerCache = nil
			} else {
				defer redisClient.Close()
			}
		}
	}

	tmdbClient := tmdb.NewClient(tmdb.Config{
		APIKey:  cfg.TMDBAPIKey,
		BaseURL: cfg.TMDBBaseURL,
		Cache:   providerCache,
		Logger:  logger,
	})
	imdbClient := imdb.NewClient(imdb.Config{BaseURL: cfg.IMDBBaseURL, Logger: logger})
	bot := telegram.NewClient(telegram.Config{
		Token:        cfg.BotToken,
		APIURL:       cfg.TelegramAPIURL,
		LogChannelID: cfg.LogChannelID,
		Logger:       logger,
	})

	queryCache := cache.NewQueryCache(cfg.CacheSize, cfg.CacheTTL)
	tasks := usecase.NewTaskPool(logger)
	ops := &usecase.Operations{Tasks: tasks, Logger: logger}

	announcer := &usecase.Announcer{
		Titles:    titleRepo,
		Transport: bot,
		ChannelID: cfg.UpdateChannelID,
		Enabled:   cfg.SendUpdates && cfg.UpdateChannelID != 0,
		Delay:     cfg.AnnounceDelay,
		Logger:    logger,
	}
	enricher := &usecase.Enricher{
		Titles:    titleRepo,
		Provider:  tmdbClient,
		Ratings:   imdbClient,
		Resolver:  usecase.EntityResolver{Entities: entityRepo},
		Announcer: announcer,
		Logger:    logger,
	}

	queueCfg := usecase.IngestQueueConfig{
		Media:           mediaRepo,
		Tasks:           tasks,
		Eligible:        cfg.IsTMDBChannel,
		Pace:            cfg.QueuePace,
		OnCatalogChange: queryCache.InvalidateAll,
		Logger:          logger,
	}
	if tmdbClient.Enabled() {
		queueCfg.Linker = enricher
	} else {
		logger.Warn("TMDB_API_KEY not set, enrichment disabled")
	}
	queue := usecase.NewIngestQueue(queueCfg)

	catalog := usecase.Catalog{
		Media:        mediaRepo,
		Titles:       titleRepo,
		Entities:     entityRepo,
		Cache:        queryCache,
		TMDBChannels: cfg.TMDBChannelIDs,
		StreamBase:   cfg.MyDomain,
	}
	access := usecase.Access{
		Tokens:         tokenRepo,
		Users:          userRepo,
		Media:          mediaRepo,
		Transport:      bot,
		OwnerID:        cfg.OwnerID,
		TokenTTL:       cfg.TokenTTL,
		MaxFilesPerDay: cfg.MaxFilesPerSession,
		BotUsername:    cfg.BotUsername,
		Logger:         logger,
	}
	admin := &usecase.Admin{
		Media:      mediaRepo,
		Titles:     titleRepo,
		Channels:   channelRepo,
		Users:      userRepo,
		Enricher:   enricher,
		Announcer:  announcer,
		Ops:        ops,
		Invalidate: queryCache.InvalidateAll,
		Logger:     logger,
	}
	bulk := &usecase.Bulk{
		Media:      mediaRepo,
		Channels:   channelRepo,
		Transport:  bot,
		Queue:      queue,
		Ops:        ops,
		Invalidate: queryCache.InvalidateAll,
		Logger:     logger,
	}
	broadcaster := &usecase.Broadcaster{
		Users:     userRepo,
		Transport: bot,
		Ops:       ops,
		Logger:    logger,
	}
	ratings := &usecase.RatingRefresher{
		Titles:     titleRepo,
		Enricher:   enricher,
		Spacing:    time.Second,
		Invalidate: queryCache.InvalidateAll,
		Logger:     logger,
	}

	go func() {
		if err := queue.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingest queue stopped", slog.String("error", err.Error()))
		}
	}()
	if tmdbClient.Enabled() {
		if _, err := ratings.Schedule(rootCtx, cfg.RatingsCron); err != nil {
			logger.Warn("rating refresh not scheduled", slog.String("error", err.Error()))
		}
	}

	handler := apihttp.NewServer(catalog, access,
		apihttp.WithLogger(logger),
		apihttp.WithAdmin(admin),
		apihttp.WithBulk(bulk),
		apihttp.WithBroadcast(broadcaster),
		apihttp.WithOperations(ops),
		apihttp.WithWebhook(queue, channelRepo, bot, cfg.WebhookSecret),
		apihttp.WithLogChannel(cfg.LogChannelID),
		apihttp.WithAllowedOrigins(cfg.CORSOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	if url := cfg.WebhookURL(); url != "" {
		if err := bot.SetWebhook(ctx, url, cfg.WebhookSecret); err != nil {
			logger.Warn("webhook registration failed", slog.String("error", err.Error()))
		} else {
			logger.Info("webhook registered", slog.String("url", url))
		}
	} else {
		logger.Warn("MY_DOMAIN not set, webhook not registered")
	}

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	for _, st := range ops.List() {
		if st.State == usecase.OpRunning {
			_, _ = ops.Cancel(st.ID)
		}
	}
	tasks.Close(shutdownCtx)
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newLogger writes to stdout and, when file is set, to a size-rotated file.
func newLogger(levelRaw, formatRaw, file string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	if file = strings.TrimSpace(file); file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    5,
			MaxBackups: 5,
		})
	}

	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, options))
	}
	return slog.New(slog.NewTextHandler(out, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

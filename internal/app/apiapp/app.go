package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/config"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	"github.com/ivankudzin/fitmatch/internal/infra/metrics"
	s3infra "github.com/ivankudzin/fitmatch/internal/infra/s3"
	"github.com/ivankudzin/fitmatch/internal/jobs/cleanup"
	pgrepo "github.com/ivankudzin/fitmatch/internal/repo/postgres"
	redrepo "github.com/ivankudzin/fitmatch/internal/repo/redis"
	authsvc "github.com/ivankudzin/fitmatch/internal/services/auth"
	"github.com/ivankudzin/fitmatch/internal/services/discovery"
	entsvc "github.com/ivankudzin/fitmatch/internal/services/entitlements"
	feedsvc "github.com/ivankudzin/fitmatch/internal/services/feed"
	"github.com/ivankudzin/fitmatch/internal/services/gesture"
	"github.com/ivankudzin/fitmatch/internal/services/ledger"
	mediasvc "github.com/ivankudzin/fitmatch/internal/services/media"
	"github.com/ivankudzin/fitmatch/internal/services/notify"
	ratesvc "github.com/ivankudzin/fitmatch/internal/services/rate"
	"github.com/ivankudzin/fitmatch/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	registry   *discovery.Registry
	ledger     *ledger.Service
	hub        *notify.Hub
	cleanup    *cleanup.Job
	jobsCtx    context.Context
	stopJobs   context.CancelFunc
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	collector := metrics.New()

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, collector)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		ConnectTimeout: cfg.Postgres.ConnectTimeout,
	}); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	candidateRepo := pgrepo.NewCandidateRepo(pool)
	interactionRepo := pgrepo.NewInteractionRepo(pool)
	entitlementRepo := pgrepo.NewEntitlementRepo(pool)
	walletRepo := pgrepo.NewWalletRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	photoStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	if err := photoStorage.EnsureBucket(ctx); err != nil {
		log.Warn("photo bucket check failed", zap.Error(err))
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAccessTTL)

	feedService := feedsvc.NewService(candidateRepo, feedsvc.Config{
		DefaultMaxDistanceMiles: cfg.Discovery.DefaultMaxDistanceMiles,
		MaxDistanceMiles:        cfg.Discovery.MaxDistanceMiles,
	})
	feedService.AttachPhotoSigner(mediasvc.NewSigner(photoStorage))

	ledgerService := ledger.NewService(interactionRepo, ledger.Config{
		Retention: cfg.Ledger.Retention,
		ListLimit: cfg.Ledger.ListLimit,
	}, log)
	ledgerService.AttachFailureCounter(collector)

	entitlementService := entsvc.NewService(entitlementRepo, walletRepo, entsvc.Config{
		DefaultPremium: cfg.Entitlements.DefaultPremium,
	}, log)

	likeLimiter := ratesvc.NewLikeLimiter(rateRepo, cfg.Limits.LikeMaxPerMin, cfg.Limits.LikeMaxPer10Sec)
	hub := notify.NewHub(log, originChecker(cfg.HTTP.AllowedOrigins))

	registry := discovery.NewRegistry(
		sessionFactory(cfg, feedService, ledgerService, entitlementService, likeLimiter, hub, collector, log),
		cfg.Discovery.SessionIdleTTL,
		discovery.DefaultSessionsPerViewer,
	)

	cleanupJob := cleanup.New(interactionRepo, log)
	cleanupJob.AttachSessionSweep(registry)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		JWTManager:         jwtManager,
		Registry:           registry,
		LedgerService:      ledgerService,
		EntitlementService: entitlementService,
		Hub:                hub,
		Metrics:            collector,
		HealthChecks:       healthChecks(pool, redisClient),
		Logger:             log,
	})

	jobsCtx, stopJobs := context.WithCancel(context.Background())

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		registry:   registry,
		ledger:     ledgerService,
		hub:        hub,
		cleanup:    cleanupJob,
		jobsCtx:    jobsCtx,
		stopJobs:   stopJobs,
		httpRouter: r,
	}, nil
}

// sessionFactory binds a new discovery session to the viewer's stored
// profile and per-user wallet.
func sessionFactory(
	cfg config.Config,
	feed *feedsvc.Service,
	recorder *ledger.Service,
	entitlements *entsvc.Service,
	limiter *ratesvc.Limiter,
	hub *notify.Hub,
	collector *metrics.Collector,
	log *zap.Logger,
) discovery.Factory {
	commitMode, ok := discovery.ParseCommitMode(cfg.Discovery.CommitMode)
	if !ok {
		commitMode = discovery.CommitAwait
	}

	return func(ctx context.Context, viewerID int64, filters model.DiscoveryFilters) (*discovery.Session, error) {
		viewer, err := feed.Viewer(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		account := entitlements.ForUser(viewerID)

		return discovery.NewSession(viewer, discovery.Dependencies{
			Candidates:   feed,
			Recorder:     recorder,
			Wallet:       account,
			Entitlements: account,
			Notifier:     hub,
			Limiter:      limiter,
			Observer:     collector,
			Logger:       log,
		}, discovery.Config{
			PageSize:          cfg.Discovery.PageSize,
			PrefetchThreshold: cfg.Discovery.PrefetchThreshold,
			SuperlikeCost:     cfg.Discovery.SuperlikeCost,
			RekindleCost:      cfg.Discovery.RekindleCost,
			CommitMode:        commitMode,
			AnnotateScores:    cfg.Discovery.AnnotateScores,
			Gesture: gesture.Thresholds{
				PreviewPX: cfg.Gesture.PreviewPX,
				CommitPX:  cfg.Gesture.CommitPX,
			},
			Filters: filters,
		}), nil
	}
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error {
			if pool == nil {
				return fmt.Errorf("postgres pool is not initialized")
			}
			return pool.Ping(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redrepo.Ping(ctx, redisClient)
		},
	}
}

// originChecker allows websocket upgrades from the configured origins. With
// no list the upgrader falls back to its same-host check.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (a *App) Run() error {
	go a.cleanup.Loop(a.jobsCtx, a.cfg.Ledger.CleanupInterval)

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	a.stopJobs()
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	a.registry.Close()
	a.ledger.Wait()
	a.hub.Close()
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

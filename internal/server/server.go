package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/geoquiz/internal/api"
	"github.com/victornm/geoquiz/internal/event"
	"github.com/victornm/geoquiz/internal/llm"
	"github.com/victornm/geoquiz/internal/places"
	"github.com/victornm/geoquiz/internal/question"
	"github.com/victornm/geoquiz/internal/session"
	"github.com/victornm/geoquiz/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port           int32
		AllowedOrigins []string
		SecureCookie   bool
	}

	GRPC struct {
		Port int32
	}

	// Redis is optional. Without session addresses sessions live in memory, without
	// pubsub addresses no notifications are published.
	Redis struct {
		Session struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	LLM llm.Config

	Places struct {
		APIKey        string
		BaseURL       string
		Timeout       time.Duration
		DefaultImages bool
	}

	Quiz struct {
		MaxAttempts int
		// BankFile replaces the built-in fallback questions when set.
		BankFile string
	}
}

// DefaultConfig returns the configuration used for every key that is not set.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.HTTP.AllowedOrigins = []string{"*"}
	c.GRPC.Port = 8081
	c.Redis.Session.Prefix = "geoquiz"
	c.Redis.Session.TTL = 24 * time.Hour
	c.Redis.Pubsub.Prefix = "geoquiz"
	c.LLM = llm.DefaultConfig()
	c.Places.BaseURL = places.DefaultBaseURL
	c.Places.Timeout = 5 * time.Second
	c.Places.DefaultImages = true
	c.Quiz.MaxAttempts = 3
	return c
}

type Server struct {
	c Config

	eb       *event.Bus
	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	infra struct {
		redis struct {
			session redis.UniversalClient
			pubsub  redis.UniversalClient
		}
	}

	service struct {
		generator *question.Generator
		session   *session.Service
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(ctx context.Context, c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = telemetry.NewMetrics(s.registry)
	s.metrics.Subscribe(s.eb)

	if err := s.initInfra(ctx); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(ctx); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra(ctx context.Context) error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		if len(addrs) == 0 {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			_ = r.Close()
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect(s.c.Redis.Session.Addrs, s.c.Redis.Session.Pass)
	if err != nil {
		return fmt.Errorf("redis: session: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("redis: pubsub: %w", err)
	}

	return nil
}

func (s *Server) initService(ctx context.Context) error {
	g, err := NewGenerator(ctx, s.c)
	if err != nil {
		return err
	}
	s.service.generator = g

	var store session.Store = session.NewMemoryStore()
	if s.infra.redis.session != nil {
		store = session.NewRedisStore(session.RedisStoreConfig{
			Redis:  s.infra.redis.session,
			Prefix: s.c.Redis.Session.Prefix,
			TTL:    s.c.Redis.Session.TTL,
		})
	} else {
		slog.WarnContext(ctx, "server: no redis configured for sessions, keeping them in memory")
	}

	sc := session.Config{
		Store:           store,
		Generator:       g,
		DefaultImages:   s.c.Places.DefaultImages,
		DefaultImageFor: places.DefaultImageFor,
		EventBus:        s.eb,
	}
	if s.c.Places.APIKey != "" {
		sc.Images = places.NewClient(places.Config{
			APIKey:  s.c.Places.APIKey,
			BaseURL: s.c.Places.BaseURL,
			Timeout: s.c.Places.Timeout,
		})
	} else {
		slog.WarnContext(ctx, "server: no places API key, questions carry no photos")
	}

	s.service.session = session.NewService(sc)
	return nil
}

// NewGenerator builds the question generator described by c: the configured LLM
// source, if it has credentials, backed by the configured or built-in bank.
func NewGenerator(ctx context.Context, c Config) (*question.Generator, error) {
	bank := question.DefaultBank()
	if c.Quiz.BankFile != "" {
		var err error
		bank, err = question.LoadBankFile(c.Quiz.BankFile)
		if err != nil {
			return nil, fmt.Errorf("load question bank: %w", err)
		}
	}

	qc := question.Config{
		Bank:        bank,
		MaxAttempts: c.Quiz.MaxAttempts,
	}

	src, err := llm.NewSourceFromConfig(ctx, c.LLM)
	switch {
	case stderrors.Is(err, llm.ErrMissingAPIKey):
		slog.WarnContext(ctx, "server: no LLM API key, serving questions from the fallback bank only",
			"provider", c.LLM.Provider,
		)
	case err != nil:
		return nil, fmt.Errorf("question source: %w", err)
	default:
		qc.Source = src
	}

	return question.NewGenerator(qc), nil
}

// Handler returns the HTTP handler serving the API, metrics and health endpoints.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), s.metrics.GinMiddleware())
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})))
	e.GET("/healthz", s.healthz)
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	c := api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Session:      s.service.session,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		SecureCookie: s.c.HTTP.SecureCookie,
	}
	if s.infra.redis.pubsub != nil {
		c.Redis = s.infra.redis.pubsub
	}
	api.New(c)

	s.health.SetServingStatus(api.QuizServiceName, healthpb.HealthCheckResponse_SERVING)

	handler := cors.New(cors.Options{
		AllowedOrigins:   s.c.HTTP.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", api.SessionHeader},
		ExposedHeaders:   []string{api.SessionHeader},
		AllowCredentials: true,
	}).Handler(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, r := range map[string]redis.UniversalClient{
		"session": s.infra.redis.session,
		"pubsub":  s.infra.redis.pubsub,
	} {
		if r == nil {
			continue
		}
		if err := r.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "redis": name, "error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves HTTP and gRPC until Shutdown is called or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.session, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}

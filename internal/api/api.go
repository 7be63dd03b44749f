package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/event"
	"github.com/victornm/geoquiz/internal/session"
)

type Config struct {
	// GRPC and HTTP are optional; the API registers itself on whichever is given.
	GRPC     *grpc.Server
	HTTP     gin.IRouter
	EventBus *event.Bus
	Session  *session.Service
	// Redis enables pub/sub notifications. Nil disables them.
	Redis        Redis
	PubsubPrefix string
	// SecureCookie marks the session cookie as HTTPS only.
	SecureCookie bool
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qss *session.Service

	redis        Redis
	prefix       string
	secureCookie bool
}

func New(c Config) *API {
	a := &API{
		qss:          c.Session,
		redis:        c.Redis,
		prefix:       c.PubsubPrefix,
		secureCookie: c.SecureCookie,
	}

	if c.GRPC != nil {
		RegisterQuizServiceServer(c.GRPC, a)
	}

	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	if c.Redis != nil && c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameAnswerSubmitted, func(ctx context.Context, e event.Event) error {
			return a.PublishAnswerSubmitted(ctx, e.(domain.EventAnswerSubmitted))
		})
		c.EventBus.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
			return a.PublishSessionEnded(ctx, e.(domain.EventSessionEnded))
		})
	} else {
		slog.Info("api: pubsub notifications disabled")
	}

	return a
}

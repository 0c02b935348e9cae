package api

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"binroute/internal/config"
	"binroute/internal/store"
	"binroute/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Pub      *webhooks.Publisher
	Broker   EventBroker
	Cases    config.Cases
	Settings config.Settings

	limiter *tenantLimiter

	// background runs started with async:true
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewServer creates a Server. If DatabaseURL is unset, uses in-memory store;
// if RedisURL is unset, uses the in-process broker.
func NewServer(cfg config.Settings, cases config.Cases) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("api: redis broker unavailable, using in-memory: %v", err)
		}
	}
	return New(s, broker, cases, cfg), nil
}

// New wires a Server from explicit dependencies.
func New(st store.Store, broker EventBroker, cases config.Cases, cfg config.Settings) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Store:    st,
		Pub:      webhooks.NewPublisher(st),
		Broker:   broker,
		Cases:    cases,
		Settings: cfg,
		limiter:  newTenantLimiter(cfg.RateRPS, cfg.RateBurst),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Settings.WebhookMaxAttempts)
}

// Shutdown cancels background runs and waits for them to record their
// best-so-far result, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
	var errs []error
	if c, ok := s.Store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.Broker.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-books/internal/api"
	"github.com/loqalabs/loqa-books/internal/billing"
	"github.com/loqalabs/loqa-books/internal/bus"
	"github.com/loqalabs/loqa-books/internal/catalog"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/llm"
	"github.com/loqalabs/loqa-books/internal/narration"
	"github.com/loqalabs/loqa-books/internal/natsserver"
	"github.com/loqalabs/loqa-books/internal/playback"
	"github.com/loqalabs/loqa-books/internal/profile"
	"github.com/loqalabs/loqa-books/internal/protocol"
	"github.com/loqalabs/loqa-books/internal/session"
	"github.com/loqalabs/loqa-books/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	narrationStream    = "BOOKS_NARRATION"
	narrationRetention = 24 * time.Hour
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	handler     http.Handler
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	nats        *natsserver.EmbeddedServer
	bus         *bus.Client
	store       *profile.Store
	session     *session.Session
	player      *playback.Player
	narration   *narration.Service
	unsubscribe func()
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.setup(ctx); err != nil {
		r.teardown(context.Background())
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()
	r.teardown(shutdownCtx)

	return nil
}

// setup builds every component and the HTTP handler. Partially built
// components are released by teardown.
func (r *Runtime) setup(ctx context.Context) error {
	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	busCfg := r.cfg.Bus
	r.nats, err = natsserver.Start(busCfg, r.logger)
	if err != nil {
		return err
	}
	if r.nats != nil {
		busCfg.Servers = []string{r.nats.ClientURL()}
	}
	r.bus, err = bus.Connect(ctx, r.cfg.RuntimeName, busCfg, r.logger)
	if err != nil {
		return err
	}
	if err := r.bus.EnsureStream(narrationStream, []string{protocol.SubjectNarrationStatus}, narrationRetention); err != nil {
		r.logger.Warn("narration status stream unavailable", slog.String("error", err.Error()))
	}

	r.store, err = profile.Open(ctx, r.cfg.Profile, r.logger)
	if err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}
	r.session, err = session.Open(ctx, r.store, r.cfg.Profile.Key, r.logger)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(r.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	catalogLang, err := narration.ParseLanguage(r.cfg.Catalog.Language)
	if err != nil {
		return fmt.Errorf("catalog.language: %w", err)
	}
	defaultLang, err := narration.ParseLanguage(r.cfg.Narration.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("narration.default_language: %w", err)
	}

	gen, err := llm.New(r.cfg.LLM)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	synth, err := tts.New(r.cfg.TTS)
	if err != nil {
		return fmt.Errorf("init synthesizer: %w", err)
	}
	pipeline, err := narration.NewPipeline(r.cfg, gen, synth, r.logger)
	if err != nil {
		return err
	}

	tick := time.Duration(r.cfg.Player.TickMS) * time.Millisecond
	r.player = playback.NewPlayer(playback.NewController(r.logger), tick)
	if err := r.publishPlayerState(); err != nil {
		return err
	}

	r.narration = narration.NewService(ctx, r.cfg.Narration, r.bus, pipeline, r.player, r.logger)
	if err := r.narration.Start(); err != nil {
		return err
	}

	checkout, err := billing.NewCheckout(r.cfg.Billing, cat, r.session, r.logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	api.New(api.Deps{
		Catalog:         cat,
		Session:         r.session,
		Checkout:        checkout,
		Summarizer:      pipeline,
		Narrator:        r.narration,
		Player:          r.player,
		CatalogLanguage: catalogLang,
		DefaultLanguage: defaultLang,
	}, r.logger).Register(mux)
	r.handler = mux
	return nil
}

// publishPlayerState mirrors every player change onto the bus.
func (r *Runtime) publishPlayerState() error {
	changes, err := otel.Meter("github.com/loqalabs/loqa-books/internal/runtime").Int64Counter("books.player.state_changes",
		metric.WithDescription("Player state changes published on the bus"))
	if err != nil {
		return fmt.Errorf("create player counter: %w", err)
	}
	r.unsubscribe = r.player.Subscribe(func(st playback.State) {
		changes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", st.Status.String())))
		if err := r.bus.Publish(protocol.SubjectPlayerState, api.PlayerState(st)); err != nil {
			r.logger.Warn("publish player state failed", slog.String("error", err.Error()))
		}
	})
	return nil
}

// teardown releases components in reverse order of construction.
func (r *Runtime) teardown(ctx context.Context) {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.narration != nil {
		r.narration.Close()
	}
	if r.player != nil {
		r.player.Close()
	}
	if r.session != nil {
		r.session.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("profile store close error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.nats.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.bus.Healthy() && r.narration.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

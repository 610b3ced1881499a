package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/BearBump/DispatchBox/internal/services/widget"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type widgetAPIOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

// buildController собирает контроллер виджета из конфига. Возвращает функцию,
// закрывающую всё, что открыли фабрики.
func buildController(cfg *config.Config, f widgetFactories) (*widget.Controller, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, closeStore, err := f.newStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	events, closeEvents := f.newEvents(cfg)
	if closeEvents != nil {
		closers = append(closers, closeEvents)
	}
	limiter, closeLimiter := f.newLimiter(cfg)
	if closeLimiter != nil {
		closers = append(closers, closeLimiter)
	}

	ctl := widget.New(widget.Options{
		Dispatcher: f.newDispatcher(cfg),
		Auth: models.AuthParams{
			ClientID: cfg.Dispatch.ClientID,
			Token:    cfg.Dispatch.Token,
		},
		Store:              store,
		Events:             events,
		Limiter:            limiter,
		RateLimitPerMinute: int64(cfg.Dispatch.SubmitRateLimitPerMinute),
		Hooks: widget.Hooks{
			SendSuccess: func(ctx context.Context, c widget.Control, resp dispatch.Response) {
				slog.InfoContext(ctx, "order sent", "control", c.ID, "order_id", resp.OrderID)
			},
		},
		Logger: slog.Default(),
		Debug:  cfg.Dispatch.Debug,
	})
	return ctl, closeAll, nil
}

func runWidgetAPI(ctx context.Context, opts widgetAPIOpts, ctl *widget.Controller) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := newRouter(&handlers{ctl: ctl})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("widget api listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

func newRouter(h *handlers) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/stats", h.stats)
	r.Put("/v1/settings", h.settings)
	r.Post("/v1/render", h.render)

	r.Route("/v1/controls/{id}", func(r chi.Router) {
		r.Get("/", h.getControl)
		r.Delete("/", h.resetControl)
		r.Post("/click", h.click)
		r.Post("/selection", h.selection)
	})
	return r
}

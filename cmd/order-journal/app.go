package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/BearBump/DispatchBox/internal/services/journal"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type orderJournalOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	ConsumeStateEvents(ctx context.Context, handler func(ctx context.Context, ev messages.ControlStateChanged) error) error
}

// runOrderJournal поднимает HTTP API журнала и читает события из топика.
// Первая ошибка любой из частей останавливает обе.
func runOrderJournal(ctx context.Context, opts orderJournalOpts, svc *journal.Service, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHTTPServer(gctx, lis, svc)
	})

	g.Go(func() error {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		return consumer.ConsumeStateEvents(gctx, svc.ApplyEvent)
	})

	return g.Wait()
}

func runHTTPServer(ctx context.Context, lis net.Listener, svc *journal.Service) error {
	srv := &http.Server{Handler: newRouter(svc), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("journal http listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func newRouter(svc *journal.Service) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/v1/controls/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)
		evs, err := svc.ListControlEvents(r.Context(), chi.URLParam(r, "id"), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": evs})
	})

	r.Get("/v1/controls/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.LastState(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, journal.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Get("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)
		orders, err := svc.ListSentOrders(r.Context(), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	})

	return r
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

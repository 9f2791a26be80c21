package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (robo *Robot) api(ctx context.Context, listen string, mux *http.ServeMux, metrics []prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/gogc:percent|/gc/gomemlimit:bytes|/gc/heap/allocs:bytes|/gc/heap/goal:bytes|/memory/classes/total:bytes|/sched/gomaxprocs:threads|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	reg.MustRegister(metrics...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	robo.apiRoutes(mux)
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// apiRoutes adds the cooldown administration routes to mux.
func (robo *Robot) apiRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cooldown/{subject}/{name}", robo.apiCooldown)
	mux.HandleFunc("DELETE /api/cooldown/{subject}/{name}", robo.apiReset)
	mux.HandleFunc("DELETE /api/cooldown/{subject}", robo.apiResetSubject)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

func apiLog(r *http.Request, api string) *slog.Logger {
	log := slog.With(slog.String("api", api), slog.Any("trace", uuid.New()))
	log.InfoContext(r.Context(), "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	return log
}

type apiCooldown struct {
	Subject   string  `json:"subject"`
	Name      string  `json:"name"`
	Active    bool    `json:"active"`
	Remaining float64 `json:"remaining"`
	Expires   string  `json:"expires,omitzero"`
	Notified  bool    `json:"notified"`
	Status    int     `json:"status"`
}

func (robo *Robot) apiCooldown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := apiLog(r, "cooldown")
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	u := apiCooldown{
		Subject: r.PathValue("subject"),
		Name:    r.PathValue("name"),
		Status:  http.StatusOK,
	}
	if e, ok := robo.cooldowns.Lookup(u.Subject, u.Name); ok {
		u.Active = true
		u.Remaining = time.Until(e.Expires).Seconds()
		u.Expires = e.Expires.UTC().Format(time.RFC3339Nano)
		u.Notified = e.Notified
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

func (robo *Robot) apiReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := apiLog(r, "reset")
	defer log.InfoContext(ctx, "done")
	subject, name := r.PathValue("subject"), r.PathValue("name")
	if !robo.cooldowns.Reset(subject, name) {
		log.WarnContext(ctx, "no cooldown", slog.String("subject", subject), slog.String("name", name))
		w.Header().Set("Content-Type", "application/json")
		jsonerror(w, http.StatusNotFound, "no active cooldown")
		return
	}
	log.InfoContext(ctx, "cleared cooldown", slog.String("subject", subject), slog.String("name", name))
	w.WriteHeader(http.StatusNoContent)
}

func (robo *Robot) apiResetSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := apiLog(r, "reset")
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	subject := r.PathValue("subject")
	n := robo.cooldowns.ResetSubject(subject)
	log.InfoContext(ctx, "cleared cooldowns", slog.String("subject", subject), slog.Int("n", n))
	u := struct {
		Cleared int `json:"cleared"`
		Status  int `json:"status"`
	}{
		Cleared: n,
		Status:  http.StatusOK,
	}
	b, err := json.Marshal(&u)
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

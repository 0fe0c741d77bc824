// Mockupstream is a development upstream for exercising the router.
// It answers /health and echoes every other request back as JSON, with the
// raw body bytes and their length so body integrity can be checked.
//
// Usage:
//
//	go run ./scripts/mockupstream -port 3001 -name api
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/proxy-router/pkg/logger"
)

// Echo is the response body for proxied requests.
type Echo struct {
	ID            string              `json:"id"`
	Service       string              `json:"service"`
	Method        string              `json:"method"`
	Path          string              `json:"path"`
	Query         string              `json:"query,omitempty"`
	Headers       map[string][]string `json:"headers"`
	Body          string              `json:"body"`
	ContentLength int                 `json:"contentLength"`
}

func main() {
	port := flag.Int("port", 3001, "port to listen on")
	name := flag.String("name", "api", "service name reported in responses")
	delay := flag.Duration("delay", 0, "artificial latency added to every echo")
	flag.Parse()

	log := logger.New("debug", false, "dev").With(slog.String("service", *name))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": *name})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if *delay > 0 {
			time.Sleep(*delay)
		}

		echo := Echo{
			ID:            uuid.NewString(),
			Service:       *name,
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Headers:       r.Header,
			Body:          string(body),
			ContentLength: len(body),
		}

		log.Info("Echoing request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("bytes", len(body)),
			slog.String("id", echo.ID))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("Mock upstream listening", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("Mock upstream stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

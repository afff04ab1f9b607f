// Command gateway runs the protocol-translation gateway behind a chi
// router, the same framework the reference http-server/chi-server
// examples use.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/httpapi"
)

func main() {
	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("gateway: config: %v", err)
	}
	gwlog.Default = gwlog.New(cfg.Debug)

	deps, auth := httpapi.Build(cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-api-key", "x-session-id"},
	}))
	r.Mount("/", httpapi.NewMux(deps, auth))

	addr := ":" + port()
	gwlog.Infof("gateway: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

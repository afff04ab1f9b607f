// Command gateway-echo mounts the same translation gateway behind echo,
// wrapping the framework-agnostic httpapi handler with echo.WrapHandler
// rather than re-implementing routing per-framework.
package main

import (
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/httpapi"
)

func main() {
	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("gateway-echo: config: %v", err)
	}
	gwlog.Default = gwlog.New(cfg.Debug)

	deps, auth := httpapi.Build(cfg)
	handler := echo.WrapHandler(httpapi.NewMux(deps, auth))

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Any("/*", handler)

	addr := ":" + port()
	gwlog.Infof("gateway-echo: listening on %s", addr)
	log.Fatal(e.Start(addr))
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

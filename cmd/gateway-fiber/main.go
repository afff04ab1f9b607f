// Command gateway-fiber mounts the same translation gateway behind fiber,
// adapting the framework-agnostic httpapi handler via fiber's adaptor
// middleware rather than re-implementing routing per-framework.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/httpapi"
)

func main() {
	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("gateway-fiber: config: %v", err)
	}
	gwlog.Default = gwlog.New(cfg.Debug)

	deps, auth := httpapi.Build(cfg)
	handler := httpapi.NewMux(deps, auth)

	app := fiber.New(fiber.Config{AppName: "rsp2com gateway"})
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(adaptor.HTTPHandler(handler))

	addr := ":" + port()
	gwlog.Infof("gateway-fiber: listening on %s", addr)
	fmt.Println("gateway-fiber on", addr)
	log.Fatal(app.Listen(addr))
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

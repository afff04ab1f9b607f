// Command gateway-gin mounts the same translation gateway behind gin,
// wrapping the framework-agnostic httpapi handler with gin.WrapH rather
// than re-implementing routing per-framework.
package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/rsp2com/gateway/pkg/gwconfig"
	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/httpapi"
)

func main() {
	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("gateway-gin: config: %v", err)
	}
	gwlog.Default = gwlog.New(cfg.Debug)

	deps, auth := httpapi.Build(cfg)
	handler := httpapi.NewMux(deps, auth)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Any("/*catchall", gin.WrapH(handler))

	addr := ":" + port()
	gwlog.Infof("gateway-gin: listening on %s", addr)
	log.Fatal(r.Run(addr))
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

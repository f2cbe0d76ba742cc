package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
)

// ListenAndServeInternal starts the internal-only listener (Prometheus exposition).
func ListenAndServeInternal(ctx context.Context, cli config.Cli) error {
	router := NewInternalRouter()
	server := http.Server{Addr: cli.HTTPInternalAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID("starting Aid internal API", "version", config.Version, "host", cli.HTTPInternalAddress)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func NewInternalRouter() *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}

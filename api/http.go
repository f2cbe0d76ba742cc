// Package api wires the Aid HTTP transport, with a graceful-shutdown window on both
// the external and internal routers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/dispatch"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/handlers"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/middleware"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/registry"
)

// ListenAndServe starts the external Aid API and blocks until ctx is cancelled, then
// gracefully shuts the transport down within a 5 second budget.
func ListenAndServe(ctx context.Context, cli config.Cli, svc *dispatch.Service, reg registry.Registry) error {
	router := NewAidRouter(svc, reg)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID("starting Aid API", "version", config.Version, "host", cli.HTTPAddress)

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

// NewAidRouter builds the external-facing Aid API router (spec §6).
func NewAidRouter(svc *dispatch.Service, reg registry.Registry) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withIdentity := func(next httprouter.Handle) httprouter.Handle {
		return middleware.WithEncoderIdentity(reg, next)
	}

	h := handlers.NewAidHandlers(svc)

	router.GET("/aid/v1/health", withLogging(h.Health()))
	router.POST("/aid/v1/list-jobs", withLogging(withIdentity(h.ListJobs())))
	router.POST("/aid/v1/claim-job", withLogging(withIdentity(h.ClaimJob())))
	router.POST("/aid/v1/update-job", withLogging(withIdentity(h.UpdateJob())))
	router.POST("/aid/v1/complete-job", withLogging(withIdentity(h.CompleteJob())))

	return router
}

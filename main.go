package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/alert"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/api"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/clients"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/dispatch"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/healer"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/metrics"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/registry"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/store"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/timeoutmon"
)

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("aid", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")
	fs.StringVar(&cli.Mode, "mode", "start", "Mode to run the process in. Only \"start\" is supported")
	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:9090", "Address to bind for the external-facing Aid API")
	fs.StringVar(&cli.HTTPInternalAddress, "http-internal-addr", "127.0.0.1:9091", "Address to bind for internal privileged commands (metrics)")
	fs.StringVar(&cli.StoreConnectionString, "store-connection-string", "", "Connection string for the shared job store (Postgres)")
	fs.StringVar(&cli.RegistryPath, "encoder-registry-path", "./aid-registry", "Filesystem path for the local encoder registry")
	fs.StringVar(&cli.WebhookURL, "webhook-url", "", "Webhook URL for operator notifications. Absence disables all notifications silently")
	fs.StringVar(&cli.VideoRecordAPIURL, "video-record-api-url", "", "Base URL of the external video record API consulted by the Healer")
	fs.StringVar(&cli.ClusterDirectoryURL, "cluster-directory-url", "", "Base URL of the remote cluster node directory fronted by the EncoderCache")
	fs.StringVar(&cli.APIToken, "api-token", "", "Auth header value for internal admin access")
	verbosity := fs.String("v", "", "Log verbosity. {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("AID"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}

	if *version {
		fmt.Printf("aid version: %s", config.Version)
		return
	}
	if *verbosity != "" && vFlag != nil {
		if err := vFlag.Value.Set(*verbosity); err != nil {
			glog.Fatal(err)
		}
	}

	metrics.Metrics.Version.WithLabelValues(config.Version).Inc()

	// Process Supervisor boots deterministically (spec §4.7): the local encoder registry
	// initializes synchronously and must succeed before the transport starts; the shared
	// job store connects in the background with a bounded budget, and the transport does
	// not wait for it.
	reg, err := registry.OpenBadgerRegistry(cli.RegistryPath)
	if err != nil {
		glog.Fatalf("failed to open encoder registry: %s", err)
	}
	defer reg.Close()

	group, ctx := errgroup.WithContext(context.Background())

	jobStore := connectStoreInBackground(ctx, cli.StoreConnectionString)

	gate := alert.NewGate(cli.WebhookURL)
	videoRecords := clients.NewVideoRecordClient(cli.VideoRecordAPIURL)
	svc := dispatch.NewService(jobStore, gate)
	mon := timeoutmon.NewMonitor(jobStore, gate)
	heal := healer.NewHealer(jobStore, videoRecords, gate)

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, svc, reg)
	})

	group.Go(func() error {
		return api.ListenAndServeInternal(ctx, cli)
	})

	group.Go(func() error {
		mon.Run(ctx)
		return nil
	})

	group.Go(func() error {
		heal.Run(ctx)
		return nil
	})

	group.Go(func() error {
		return handleSignals(ctx)
	})

	if err := group.Wait(); err != nil {
		log.LogNoRequestID("shutdown complete", "reason", err)
	}
}

// connectStoreInBackground returns a store.Store immediately so the transport layer can
// start accepting traffic without blocking on the database (spec §4.7 fail-open). The
// real connection attempt runs in the background with a 5s budget.
func connectStoreInBackground(ctx context.Context, connectionString string) store.Store {
	holder := store.NewLazy()
	go func() {
		connectCtx, cancel := context.WithTimeout(ctx, config.StoreConnectTimeout)
		defer cancel()

		pg, err := store.Open(connectionString)
		if err != nil {
			log.LogNoRequestID("failed to open job store connection", "err", err)
			return
		}
		if err := pg.Ping(connectCtx); err != nil {
			log.LogNoRequestID("job store did not become reachable within the connect budget", "err", err)
		}
		holder.Set(pg)
	}()
	return holder
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}

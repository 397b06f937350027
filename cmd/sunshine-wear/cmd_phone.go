package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/sunshine-wear/internal/api/http"
	"github.com/i474232898/sunshine-wear/internal/datalayer"
	"github.com/i474232898/sunshine-wear/internal/datalayer/relay"
	"github.com/i474232898/sunshine-wear/internal/scheduler"
	"github.com/i474232898/sunshine-wear/internal/wearsync"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Run the phone role",
	Long: `Run the phone role: fetch weather on FETCH_INTERVAL, push every fresh snapshot to the
watch, publish the /count beacon and serve the phone HTTP API on PORT.`,
	RunE: runPhone,
}

func init() {
	rootCmd.AddCommand(phoneCmd)
}

func runPhone(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	log := logger.Named("phone")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := wearsync.NewMetrics(reg)

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	service := weather.NewService(st, buildProviders(cfg, log), log)

	base := relay.NewClient(cfg.RelayURL, localNode(cfg), log)
	defer base.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ListenerConnectTimeout)
	if err := base.Connect(connectCtx); err != nil {
		// Sessions reconnect through their handles; the beacon keeps retrying on its own.
		log.Warn("relay unavailable at startup", zap.Error(err))
	}
	cancel()

	beacon := wearsync.NewBeacon(base, log, metrics)
	if err := beacon.Start(ctx); err != nil {
		log.Warn("failed to publish count", zap.Error(err))
	}
	defer beacon.Stop()
	go beacon.KeepPublished(ctx, cfg.ListenerConnectTimeout, cfg.ListenerConnectTimeout)

	sender := wearsync.NewSender(
		func() datalayer.Client { return datalayer.NewHandle(base) },
		st, cfg.SyncPeerTimeout, log, metrics,
	)

	if cfg.HasLocation() {
		// A session may spend the connect timeout dialing before it waits for a peer.
		pushTimeout := cfg.ListenerConnectTimeout + cfg.SyncPeerTimeout
		sched := scheduler.New(cfg.Location, cfg.FetchInterval, pushTimeout, service, sender, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	} else {
		log.Info("no location configured, pushing only on API updates")
	}

	app := httpapi.NewApp("sunshine-wear-phone", reg)
	httpapi.RegisterPhoneRoutes(app, service, sender, log)

	return serveFiber(ctx, app, cfg.Port, log)
}

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/sunshine-wear/internal/api/http"
	"github.com/i474232898/sunshine-wear/internal/datalayer/relay"
	"github.com/i474232898/sunshine-wear/internal/render"
	"github.com/i474232898/sunshine-wear/internal/wearsync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch role",
	Long: `Run the watch role: listen for weather updates from the phone, store them, render the
watchface on every change and every RENDER_INTERVAL, and serve the watch HTTP API on PORT.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	log := logger.Named("watch")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := wearsync.NewMetrics(reg)

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	client := relay.NewClient(cfg.RelayURL, localNode(cfg), log)
	listener := wearsync.NewListener(client, st, cfg.ListenerConnectTimeout, log, metrics)
	if err := listener.Start(ctx); err != nil {
		// Not fatal: the watchface keeps showing the last stored snapshot.
		log.Warn("listener not connected", zap.Error(err))
	}
	defer listener.Stop()
	go listener.KeepConnected(ctx, cfg.ListenerConnectTimeout)

	sinks := render.MultiSink{render.LogSink{Logger: log}}
	if cfg.FramePath != "" {
		sinks = append(sinks, render.ImageSink{Path: cfg.FramePath})
	}
	renderer := render.New(st, sinks, cfg.RenderInterval, log)
	go func() {
		if err := renderer.Run(ctx); err != nil {
			log.Error("renderer stopped", zap.Error(err))
		}
	}()

	app := httpapi.NewApp("sunshine-wear-watch", reg)
	httpapi.RegisterWatchRoutes(app, st, renderer)

	return serveFiber(ctx, app, cfg.Port, log)
}

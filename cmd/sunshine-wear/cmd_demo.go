package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
	"github.com/i474232898/sunshine-wear/internal/render"
	"github.com/i474232898/sunshine-wear/internal/store"
	"github.com/i474232898/sunshine-wear/internal/wearsync"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

var demoCmd = &cobra.Command{
	Use:   "demo [conditionCode high low]",
	Short: "Sync one snapshot between an in-process phone and watch",
	Long: `Run a phone and a watch in one process over an in-process data layer, push a snapshot
and print the watchface frame it produces. Defaults to 500 25 16.`,
	Args: cobra.RangeArgs(0, 3),
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SyncPeerTimeout)
	defer cancel()

	fields := []string{"500", "25", "16"}
	copy(fields, args)
	payload := fmt.Sprintf("%s,%s,%s,%s", fields[0], fields[1], fields[2], weather.FormatUpdated(time.Now()))
	snap, err := weather.Decode([]byte(payload))
	if err != nil {
		return err
	}

	log := logger.Named("demo")
	network := datalayer.NewNetwork()

	watchStore := store.NewMemoryStore()
	listener := wearsync.NewListener(network.NewClient(datalayer.Node{ID: "watch", DisplayName: "Watch"}), watchStore, cfg.ListenerConnectTimeout, log, nil)
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop()

	frames := make(chan render.Frame, 4)
	renderer := render.New(watchStore, frameChan(frames), cfg.RenderInterval, log)
	go renderer.Run(ctx)

	phoneStore := store.NewMemoryStore()
	if err := phoneStore.Replace(ctx, snap); err != nil {
		return err
	}
	phone := network.NewClient(datalayer.Node{ID: "phone", DisplayName: "Phone"})
	if err := wearsync.NewSession(phone, phoneStore, cfg.SyncPeerTimeout, log, nil).Run(ctx); err != nil {
		return err
	}

	for {
		select {
		case f := <-frames:
			if f.Icon != snap.Icon() || f.Updated == "UPDATED: " {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n[%s] %s %s\n%s\n", f.Time, f.Date, f.Icon, f.HighTemp, f.LowTemp, f.Updated)
			return nil
		case <-ctx.Done():
			return fmt.Errorf("no frame rendered: %w", ctx.Err())
		}
	}
}

type frameChan chan render.Frame

func (c frameChan) Draw(_ context.Context, f render.Frame) error {
	select {
	case c <- f:
	default:
	}
	return nil
}

package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/eventnet/internal/config"
	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/observability/log"
	"github.com/zeusync/eventnet/internal/injector"
)

func serveCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept peers and answer their packets",
		Long: `Accept peers and answer their packets.

A "ping" packet is answered with an empty "pong"; every other packet
is echoed back to its sender.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "bind address (host:port)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	node, cleanup, err := injector.InitializeNode(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var accept func(context.Context) error
	switch cfg.Transport {
	case config.TransportTCP:
		incoming, err := node.TCP.Listen(ctx, cfg.Listen, node.Settings)
		if err != nil {
			return err
		}
		accept = func(ctx context.Context) error { return acceptAll(ctx, node, incoming, node.TCP.Attach) }
	default:
		incoming, err := node.WebSocket.Listen(ctx, cfg.Listen, node.Settings)
		if err != nil {
			return err
		}
		accept = func(ctx context.Context) error { return acceptAll(ctx, node, incoming, node.WebSocket.Attach) }
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return accept(ctx) })
	group.Go(func() error { return respond(ctx, node) })
	if cfg.Metrics.Addr != "" {
		group.Go(func() error { return serveMetrics(ctx, node, cfg.Metrics.Addr) })
	}

	node.Logger.Info("serving",
		log.String("transport", cfg.Transport),
		log.String("listen", cfg.Listen),
		log.String("version", version),
	)
	return group.Wait()
}

// acceptAll attaches every accepted socket until ctx is done.
func acceptAll[S io.Closer](ctx context.Context, node *injector.Node, incoming *network.Incoming[S],
	attach func(context.Context, *network.Peers, S, network.Settings) (network.ConnectionID, error),
) error {
	stop := context.AfterFunc(ctx, func() { _ = incoming.Close() })
	defer stop()

	for socket := range incoming.All(ctx) {
		if _, err := attach(ctx, node.Peers, socket, node.Settings); err != nil {
			node.Logger.Warn("could not attach connection", log.Error(err))
		}
	}
	return nil
}

// respond answers inbound packets and logs disconnects.
func respond(ctx context.Context, node *injector.Node) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-node.Peers.Inbound():
			reply := msg.Packet
			if msg.Packet.Kind == "ping" {
				reply = network.NewPacket("pong", []byte{})
			}
			if err := node.Peers.Send(ctx, msg.From, reply); err != nil {
				node.Logger.Warn("could not reply", log.Stringer("conn", msg.From), log.Error(err))
			}
		case ev := <-node.Peers.Disconnects():
			if ev.Err != nil {
				node.Logger.Warn("peer dropped", log.Stringer("conn", ev.ID), log.Error(ev.Err))
			}
		}
	}
}

func serveMetrics(ctx context.Context, node *injector.Node, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(node.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	node.Logger.Info("serving metrics", log.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

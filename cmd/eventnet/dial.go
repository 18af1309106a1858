package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zeusync/eventnet/internal/config"
	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/injector"
)

type dialOptions struct {
	target  string
	kind    string
	payload string
	count   int
	timeout time.Duration
}

func dialCmd(opts *options) *cobra.Command {
	dopts := &dialOptions{}

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a peer, send packets and print the replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if dopts.target != "" {
				cfg.Dial = dopts.target
			}
			if dopts.count < 1 {
				return errors.New("count must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return dial(ctx, cfg, dopts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&dopts.target, "target", "a", "", "ws:// URL or host:port to dial")
	cmd.Flags().StringVarP(&dopts.kind, "kind", "k", "ping", "packet kind")
	cmd.Flags().StringVarP(&dopts.payload, "payload", "p", "", "packet payload")
	cmd.Flags().IntVarP(&dopts.count, "count", "n", 1, "number of packets to send")
	cmd.Flags().DurationVar(&dopts.timeout, "timeout", 10*time.Second, "overall deadline")

	return cmd
}

func dial(ctx context.Context, cfg config.Config, dopts *dialOptions, out io.Writer) error {
	node, cleanup, err := injector.InitializeNode(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, dopts.timeout)
	defer cancel()

	id, err := connect(ctx, cfg, node)
	if err != nil {
		return err
	}

	for i := 0; i < dopts.count; i++ {
		packet := network.NewPacket(dopts.kind, []byte(dopts.payload))
		if err = node.Peers.Send(ctx, id, packet); err != nil {
			return err
		}
	}

	for received := 0; received < dopts.count; {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "received %d of %d replies", received, dopts.count)
		case msg := <-node.Peers.Inbound():
			received++
			fmt.Fprintf(out, "%s %q\n", msg.Packet.Kind, msg.Packet.Data)
		case ev := <-node.Peers.Disconnects():
			if ev.Err != nil {
				return ev.Err
			}
			return errors.Errorf("peer closed after %d of %d replies", received, dopts.count)
		}
	}
	return node.Peers.Disconnect(id)
}

// connect dials cfg.Dial over the configured transport and attaches the socket.
func connect(ctx context.Context, cfg config.Config, node *injector.Node) (network.ConnectionID, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		conn, err := node.TCP.ConnectTask(ctx, cfg.Dial, node.Settings)
		if err != nil {
			return network.NilConnectionID, err
		}
		return node.TCP.Attach(ctx, node.Peers, conn, node.Settings)
	default:
		target, err := url.Parse(cfg.Dial)
		if err != nil {
			return network.NilConnectionID, network.ConnectError(errors.Wrap(err, "invalid dial target"))
		}
		socket, err := node.WebSocket.ConnectTask(ctx, target, node.Settings)
		if err != nil {
			return network.NilConnectionID, err
		}
		return node.WebSocket.Attach(ctx, node.Peers, socket, node.Settings)
	}
}

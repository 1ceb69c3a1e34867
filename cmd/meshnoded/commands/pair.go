package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/meshwire/meshnode/internal/chat"
	"github.com/meshwire/meshnode/internal/config"
	chatmetrics "github.com/meshwire/meshnode/internal/metrics"
)

// pairPollInterval is how often a one-shot pair/send invocation checks
// whether its goal condition (pairing completed, message acknowledged)
// has been met while the node's main loop runs in the background.
const pairPollInterval = 200 * time.Millisecond

func pairCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "pair <peer-addr>",
		Short: "initiate pairing with a mesh peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			peer, err := parseNodeAddr(args[0])
			if err != nil {
				return err
			}
			return runPair(cfg, logger, peer, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the pairing handshake to complete")
	return cmd
}

func runPair(cfg *config.Config, log *slog.Logger, peer chat.NodeAddr, timeout time.Duration) error {
	reg := prometheus.NewRegistry()
	collector := chatmetrics.NewCollector(reg)

	node, closeRadio, err := buildNode(cfg, collector, log)
	if err != nil {
		return err
	}
	defer closeRadio.Close()

	if node.Pairing().HasKey(peer) {
		log.Info("already paired", slog.String("peer", peer.String()))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	go func() {
		_ = node.Run(ctx)
	}()

	if err := node.SendDraft(peer, ""); err != nil {
		return fmt.Errorf("initiate pairing with %s: %w", peer, err)
	}
	log.Info("pair request sent", slog.String("peer", peer.String()))

	ticker := time.NewTicker(pairPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pairing with %s did not complete within %s", peer, timeout)
		case <-ticker.C:
			if node.Pairing().HasKey(peer) {
				log.Info("pairing complete", slog.String("peer", peer.String()))
				return nil
			}
		}
	}
}

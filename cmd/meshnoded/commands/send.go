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

func sendCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <peer-addr> <text>",
		Short: "send a chat message to a mesh peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			peer, err := parseNodeAddr(args[0])
			if err != nil {
				return err
			}
			return runSend(cfg, logger, peer, args[1], timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the message to be acknowledged")
	return cmd
}

// runSend builds a short-lived node, drafts the message through the
// same SendDraft path the long-running daemon uses, and polls the chat
// log for the entry's Delivered/Failed outcome before exiting.
func runSend(cfg *config.Config, log *slog.Logger, peer chat.NodeAddr, text string, timeout time.Duration) error {
	reg := prometheus.NewRegistry()
	collector := chatmetrics.NewCollector(reg)

	node, closeRadio, err := buildNode(cfg, collector, log)
	if err != nil {
		return err
	}
	defer closeRadio.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	go func() {
		_ = node.Run(ctx)
	}()

	if err := node.SendDraft(peer, text); err != nil {
		return fmt.Errorf("send to %s: %w", peer, err)
	}

	if !node.Pairing().HasKey(peer) {
		log.Info("pairing started; re-run send once pairing completes", slog.String("peer", peer.String()))
		return nil
	}

	ticker := time.NewTicker(pairPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("message to %s was not acknowledged within %s", peer, timeout)
		case <-ticker.C:
			for _, entry := range node.ChatLog().Snapshot() {
				if entry.Peer != peer || !entry.Outgoing || entry.Text != text {
					continue
				}
				if entry.Delivered {
					log.Info("message delivered", slog.String("peer", peer.String()))
					return nil
				}
				if entry.Failed {
					return fmt.Errorf("message to %s failed after exhausting retries", peer)
				}
			}
		}
	}
}

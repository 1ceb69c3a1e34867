package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/meshwire/meshnode/internal/chat"
	"github.com/meshwire/meshnode/internal/config"
	chatmetrics "github.com/meshwire/meshnode/internal/metrics"
	"github.com/meshwire/meshnode/internal/radio"
	"github.com/meshwire/meshnode/internal/store"
)

// parseNodeAddr parses a mesh address given as decimal ("42") or hex
// ("0x002a") into a chat.NodeAddr.
func parseNodeAddr(s string) (chat.NodeAddr, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parse node address %q: %w", s, err)
	}
	return chat.NodeAddr(v), nil
}

// nopCloser closes nothing; the memory transport has no socket to
// release.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildRadio constructs the RadioHandle cfg.Radio.Transport selects,
// logging the opaque substrate parameters (frequency, spreading factor,
// and so on) that only a future physical driver would act on.
func buildRadio(cfg *config.Config, self chat.NodeAddr, log *slog.Logger) (chat.RadioHandle, io.Closer, error) {
	log.Info("radio substrate parameters",
		slog.Float64("freq_hz", cfg.Radio.FreqHz),
		slog.Float64("bw_khz", cfg.Radio.BWKHz),
		slog.Int("sf", cfg.Radio.SF),
		slog.Float64("tx_dbm", cfg.Radio.TxDBm),
		slog.String("syncword", cfg.Radio.Syncword),
		slog.Int("preamble", cfg.Radio.Preamble),
	)

	switch cfg.Radio.Transport {
	case "udp":
		u, err := radio.NewUDP(self, cfg.Radio.Listen, cfg.Radio.Peers, log)
		if err != nil {
			return nil, nil, fmt.Errorf("build udp radio: %w", err)
		}
		return u, u, nil

	case "memory":
		// A fresh Bus is private to this process: useful for a
		// single-process demo, but a CLI invocation of "pair" or
		// "send" using the memory transport never reaches any other
		// node, since nothing else attaches to this Bus.
		log.Warn("radio.transport is \"memory\": this node is isolated on a private in-process bus")
		bus := radio.NewBus()
		return radio.NewMemory(self, bus), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("build radio: %w", config.ErrInvalidTransport)
	}
}

// buildNode wires a chat.Node from cfg: the persistent pairing store at
// cfg.Store.Path, the configured radio transport, a real system clock,
// and the given metrics collector and logger. The returned io.Closer
// releases the radio's underlying resources (a socket, for the UDP
// transport); callers must Close it once the node is done running.
func buildNode(cfg *config.Config, metrics *chatmetrics.Collector, log *slog.Logger) (*chat.Node, io.Closer, error) {
	self := chat.NodeAddr(cfg.Node.Address)

	kv, err := store.OpenFileStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pairing store %s: %w", cfg.Store.Path, err)
	}

	pairing, err := chat.NewPairingStore(self, kv)
	if err != nil {
		return nil, nil, fmt.Errorf("load pairing store: %w", err)
	}

	radioHandle, closer, err := buildRadio(cfg, self, log)
	if err != nil {
		return nil, nil, err
	}

	node := chat.NewNode(self, radioHandle, chat.NewSystemClock(), pairing,
		chat.WithLogger(log),
		chat.WithMetrics(metrics),
	)

	return node, closer, nil
}

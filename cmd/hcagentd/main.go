// Command hcagentd runs a HyperCast SPT overlay node agent: it wires the
// multicast socket, the bounded inbound/outbound FIFOs, the SPT protocol
// state machine and the engine loop into a running process, replacing
// network_station_main.c's FreeRTOS task wiring with goroutines and a
// shared context for clean shutdown, the way cmd/bgp.go wires a BGP
// session but with a real subcommand surface (spf13/cobra) in place of
// bare flag parsing.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AdamCarnaffan/hypercast/config"
	"github.com/AdamCarnaffan/hypercast/engine"
	"github.com/AdamCarnaffan/hypercast/fifo"
	"github.com/AdamCarnaffan/hypercast/logging"
	"github.com/AdamCarnaffan/hypercast/netio"
	"github.com/AdamCarnaffan/hypercast/spt"
	"github.com/AdamCarnaffan/hypercast/telemetry"
)

// version is the build-time agent version; overridden via -ldflags in a
// real release build.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hcagentd",
		Short: "HyperCast SPT overlay node agent",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var configPath string
	var nodeLogical uint32

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join the overlay and run the SPT state machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if nodeLogical != 0 {
				cfg.NodeLogical = nodeLogical
			}
			return runAgent(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (overlays onto defaults)")
	cmd.Flags().Uint32Var(&nodeLogical, "node-logical", 0, "this node's 32-bit overlay logical address (overrides config)")

	return cmd
}

func runAgent(cfg config.Config) error {
	base := logrus.New()
	log := logging.NewLogrus(base, logging.KV{"node": cfg.NodeLogical})
	log.Notify("hcagentd.starting", logging.KV{"config": cfg})

	conn, err := netio.Dial(cfg.Network.Group, cfg.Network.Port, cfg.Network.TTL)
	if err != nil {
		return fmt.Errorf("hcagentd: dialing multicast socket: %w", err)
	}
	defer conn.Close()

	selfAddress, err := localAddressOrFallback()
	if err != nil {
		log.Notify("hcagentd.local_address_fallback", logging.KV{"error": err.Error()})
	}

	inbound := fifo.NewRing(fifo.DefaultCapacity)
	outbound := fifo.NewRing(fifo.DefaultCapacity)

	clock := spt.SystemClock{}
	self := spt.SenderTable{
		Address:       selfAddress.To4(),
		Port:          uint16(cfg.Network.Port),
		SourceLogical: cfg.NodeLogical,
	}
	state := spt.NewState(self, clock, log)
	state.SetHeartbeatInterval(cfg.SPT.HeartbeatSeconds)
	state.SetJumpThreshold(cfg.SPT.JumpThreshold)

	protocol := engine.NewSPTProtocol(state, cfg.Overlay.Hash(), log)

	registry := telemetry.NewRegistry()
	snapshots := make(chan telemetry.Snapshot, 1)

	eng := engine.New(engine.Config{
		Inbound:     inbound,
		Outbound:    outbound,
		Protocol:    protocol,
		SelfLogical: cfg.NodeLogical,
		OnPayload: func(data []byte) {
			registry.PacketForwarded()
			log.WithTrace(xid.New().String()).Notify("hcagentd.payload", logging.KV{"bytes": len(data)})
		},
		Log:       log,
		Snapshots: snapshots,
	})

	receiver := netio.NewReceiver(conn, inbound, selfAddress, log)
	sender := netio.NewSender(conn, outbound, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Notify("hcagentd.shutting_down", nil)
		cancel()
	}()

	if cfg.Telemetry.Enabled {
		go serveTelemetry(ctx, cfg.Telemetry.Listen, registry, snapshots, log)
	}

	go receiver.Run(ctx)
	go sender.Run(ctx)
	eng.Run(ctx)

	return nil
}

// localAddressOrFallback discovers an outbound-facing local IPv4 address,
// used to filter self-sourced multicast loopback at the receiver; nodes
// that can't determine one fall back to the unspecified address and rely
// on SetMulticastLoopback(false) alone.
func localAddressOrFallback() (net.IP, error) {
	c, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return net.IPv4zero, err
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).IP, nil
}

// serveTelemetry mounts the Prometheus handler and republishes each
// Snapshot the engine's own goroutine hands off over snapshots. It never
// reaches into the engine's live tables itself: the engine is their only
// safe reader, and snapshots is the one channel carrying their state out.
func serveTelemetry(ctx context.Context, listen string, registry *telemetry.Registry, snapshots <-chan telemetry.Snapshot, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	go func() {
		for {
			select {
			case snap := <-snapshots:
				registry.Observe(snap)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Notify("hcagentd.telemetry_listening", logging.KV{"addr": listen})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Notify("hcagentd.telemetry_error", logging.KV{"error": err.Error()})
	}
}

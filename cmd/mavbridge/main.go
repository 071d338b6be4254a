package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eytandecker/mavbridge/internal/bridge"
	"github.com/eytandecker/mavbridge/internal/config"
	internalmcp "github.com/eytandecker/mavbridge/internal/mcp"
	"github.com/eytandecker/mavbridge/internal/monitoring"
	"github.com/eytandecker/mavbridge/internal/vehicle"
	"github.com/eytandecker/mavbridge/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Printf("mavbridge exited: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	monitoring.SetDebug(cfg.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var veh *vehicle.Stationary
	hooks := bridge.Hooks{
		Control: func(cmd types.ActuatorCommand, outputs []float64) {
			if veh != nil {
				veh.HandleControl(cmd, outputs)
			}
		},
	}

	b, err := bridge.New(bridgeConfig(cfg), bridge.Options{Mixer: &cfg.Mixer, Hooks: hooks})
	if err != nil {
		return err
	}

	if cfg.Vehicle.Enabled {
		veh = vehicle.NewStationary(vehicle.Config{
			HomeLatitude:  cfg.Vehicle.HomeLatitude,
			HomeLongitude: cfg.Vehicle.HomeLongitude,
			HomeAltitude:  cfg.Vehicle.HomeAltitude,
			IMURate:       cfg.Bridge.UpdateRate,
		}, b)
		go func() { _ = veh.Run(ctx) }()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runBridgeLoop(ctx, b)
	}()

	if cfg.MCP {
		if err := internalmcp.NewServer(b).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cancel()
			<-loopDone
			_ = b.Stop()
			return err
		}
	}
	<-ctx.Done()
	<-loopDone
	return b.Stop()
}

func bridgeConfig(cfg config.Config) bridge.Config {
	return bridge.Config{
		Endpoint:          cfg.Bridge.Endpoint,
		Thrusters:         cfg.Bridge.Thrusters,
		Lockstep:          cfg.Bridge.Lockstep,
		UpdateRate:        cfg.Bridge.UpdateRate,
		SystemID:          uint8(cfg.Bridge.SystemID),    //nolint:gosec // validated to 1..255
		ComponentID:       uint8(cfg.Bridge.ComponentID), //nolint:gosec // validated to 0..255
		HeartbeatInterval: cfg.Bridge.HeartbeatInterval,
		HandshakeTimeout:  cfg.Bridge.HandshakeTimeout,
		LockstepTimeout:   cfg.Bridge.LockstepTimeout,
	}
}

// runBridgeLoop starts the bridge and restarts it whenever a session ends,
// retrying with exponential backoff (1s → 30s cap) on failure.
func runBridgeLoop(ctx context.Context, b *bridge.Bridge) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := b.Start(ctx); err != nil {
			log.Printf("bridge: start failed: %v (retrying in %s)", err, backoff)
		} else {
			backoff = time.Second
			select {
			case <-ctx.Done():
				return
			case <-b.Done():
				log.Printf("bridge: session ended: %v (restarting in %s)", b.Err(), backoff)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// eswifictl exercises the eS-WiFi driver end to end against the built-in
// co-processor simulator: device bring-up, network join, and status/identity
// queries, with an optional diagnostics HTTP surface.
package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/command"
	"github.com/danmuck/eswifictl/internal/config"
	"github.com/danmuck/eswifictl/internal/hal"
	"github.com/danmuck/eswifictl/internal/observability"
	"github.com/danmuck/eswifictl/internal/platform"
	"github.com/danmuck/eswifictl/internal/simdev"
	"github.com/danmuck/eswifictl/internal/transport"
	"github.com/danmuck/eswifictl/internal/wifi"
)

func main() {
	configPath := flag.String("config", "eswifictl.toml", "path to the tool configuration")
	diagAddr := flag.String("diag", "", "diagnostics listen address (overrides config)")
	hold := flag.Bool("hold", false, "keep serving diagnostics after the join resolves")
	flag.Parse()

	logger := observability.InitLogger("eswifictl")
	platform.Start(time.Millisecond)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *diagAddr != "" {
		cfg.DiagAddr = *diagAddr
	}
	log.Info().Str("path", *configPath).Msg("loaded config")

	dev := simdev.New(simdev.DefaultScript())
	lines := dev.Lines()
	sleep := dev.Sleeper()

	framer := transport.NewFramer(dev, lines.Select, hal.DataReady{Line: lines.Ready}, sleep, cfg.Driver.TransportConfig())
	channel := command.NewChannel(framer, command.ShortCodes{}, cfg.Driver.CommandConfig(),
		observability.CommandReporter{Logger: logger})
	manager := wifi.NewManager(channel, lines, sleep, cfg.Driver.WifiConfig())

	if cfg.DiagAddr != "" {
		go serveDiag(cfg, logger, manager)
	}

	banner, err := manager.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("device bring-up failed")
	}
	log.Info().Str("firmware", banner).Msg("device ready")

	mac, err := manager.MAC()
	if err != nil {
		log.Fatal().Err(err).Msg("mac query failed")
	}
	log.Info().Str("mac", mac).Msg("device identity")

	start := time.Now()
	polls, err := manager.Join(cfg.SSID, cfg.Passphrase)
	switch {
	case err == nil:
		observability.RecordJoin("connected", polls)
		log.Info().Str("ssid", cfg.SSID).Int("polls", polls).Dur("took", time.Since(start)).Msg("join succeeded")
	default:
		observability.RecordJoin("failed", polls)
		log.Fatal().Err(err).Str("ssid", cfg.SSID).Msg("join failed")
	}

	status, err := manager.Status()
	if err != nil {
		log.Fatal().Err(err).Msg("status query failed")
	}
	log.Info().Str("status", status).Str("state", manager.State().String()).Uint64("tick_ms", platform.Now()).Msg("done")

	if cfg.DiagAddr != "" && *hold {
		select {}
	}
}

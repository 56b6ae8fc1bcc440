package main

import (
	"context"
	"flag"
	"os"
	"time"

	"fortio.org/cli"
	"fortio.org/log"
	"github.com/hajimehoshi/ebiten/v2"
	ebitenaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"idol-vr/internal/assets"
	"idol-vr/internal/audio"
	"idol-vr/internal/config"
	"idol-vr/internal/debugsrv"
	"idol-vr/internal/scene"
	"idol-vr/internal/tracker"
)

const (
	screenWidth  = 1280
	screenHeight = 720
)

var (
	configPath    = flag.String("config", "config.json", "Path to the JSON configuration file")
	panorama      = flag.String("panorama", "", "Panorama image path or URL, overrides the config")
	model         = flag.String("model", "", "Primary model (glTF/GLB) path or URL, overrides the config")
	fallbackModel = flag.String("fallback-model", "", "Fallback model path or URL, overrides the config")
	audioTrack    = flag.String("audio", "", "Background track (mp3/ogg/wav/ym) path or URL, overrides the config")
	debugAddr     = flag.String("debug-addr", "", "Serve loader status on this address, e.g. localhost:8080")
	imuPort       = flag.String("imu-port", "", "Serial port of an IMU head tracker (e.g. /dev/ttyUSB0 or COM3)")
	imuBaud       = flag.Int("imu-baud", 115200, "Baud rate for the IMU serial port")
)

func main() {
	cli.MinArgs = 0
	cli.MaxArgs = 0
	cli.Main()
	os.Exit(run())
}

// applyFlags copies explicitly set source flags over cfg. An empty value
// disables that source.
func applyFlags(cfg *config.Config) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["panorama"] {
		cfg.Panorama = *panorama
	}
	if set["model"] {
		cfg.Model = *model
	}
	if set["fallback-model"] {
		cfg.FallbackModel = *fallbackModel
	}
	if set["audio"] {
		cfg.Audio = *audioTrack
	}
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errf("Failed to load config: %v", err)
		return 1
	}
	applyFlags(&cfg)
	settings, err := cfg.Settings()
	if err != nil {
		log.Errf("Invalid config: %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := scene.Options{
		Settings: settings,
		Source:   assets.NewFetcher(),
		Audio:    ebitenaudio.NewContext(audio.SampleRate),
	}

	if *imuPort != "" {
		tr := tracker.New(*imuPort, *imuBaud)
		go tr.Run(ctx)
		opts.Tracker = tr
	}

	var dbg *debugsrv.Server
	if *debugAddr != "" {
		dbg = debugsrv.New(ctx)
		opts.Observe = dbg.Publish
		go func() {
			if err := dbg.ListenAndServe(*debugAddr); err != nil {
				log.Errf("Debug server error: %v", err)
			}
		}()
	}

	game, err := scene.New(ctx, opts)
	if err != nil {
		log.Errf("Failed to create scene: %v", err)
		return 1
	}
	// Ensure cleanup on exit
	defer game.Close()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Idol VR")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(settings.Fullscreen)

	if err := ebiten.RunGame(game); err != nil {
		log.Errf("Game loop error: %v", err)
		return 1
	}

	if dbg != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		if err := dbg.Shutdown(sctx); err != nil {
			log.Warnf("Debug server shutdown: %v", err)
		}
	}
	return 0
}

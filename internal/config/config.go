package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"time"

	"fortio.org/log"

	"idol-vr/internal/geom"
	"idol-vr/internal/loader"
)

// Config represents user configuration as stored in config.json.
type Config struct {
	Panorama      string `json:"panorama"`
	Model         string `json:"model"`
	FallbackModel string `json:"fallbackModel"`
	Audio         string `json:"audio"`

	SkyColor         string `json:"skyColor"`
	PlaceholderColor string `json:"placeholderColor"`

	ModelPosition       string  `json:"modelPosition"`
	ModelScale          string  `json:"modelScale"`
	FallbackModelScale  string  `json:"fallbackModelScale"`
	MobileModelPosition string  `json:"mobileModelPosition"`
	MobileScaleFactor   float64 `json:"mobileScaleFactor"`
	MobileBreakpoint    int     `json:"mobileBreakpoint"`
	ParticlePreset      string  `json:"particlePreset"`
	MusicVolume         float64 `json:"musicVolume"`
	Fullscreen          bool    `json:"fullscreen"`

	Timeouts Timeouts `json:"timeouts"`
}

// Timeouts holds durations in time.ParseDuration syntax.
type Timeouts struct {
	Panorama      string `json:"panorama"`
	Model         string `json:"model"`
	FallbackModel string `json:"fallbackModel"`
	Audio         string `json:"audio"`
	Ceiling       string `json:"ceiling"`
	RevealDelay   string `json:"revealDelay"`
	Notice        string `json:"notice"`
	ForceStart    string `json:"forceStart"`
}

// Settings is the validated, typed form of Config.
type Settings struct {
	Loader loader.Config

	PlaceholderColor    color.RGBA
	ModelPlacement      geom.Placement
	FallbackPlacement   geom.Placement
	MobileModelPosition geom.Vec3
	MobileScaleFactor   float64
	MobileBreakpoint    int
	ParticlePreset      string
	MusicVolume         float64
	Fullscreen          bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Panorama:            "assets/panorama.jpg",
		Model:               "assets/idol.glb",
		FallbackModel:       "assets/fallback.glb",
		Audio:               "assets/mantra.mp3",
		SkyColor:            "#2A0A4A",
		PlaceholderColor:    "#ff9933",
		ModelPosition:       "0 1.5 -3",
		ModelScale:          "50 50 50",
		FallbackModelScale:  "0.5 0.5 0.5",
		MobileModelPosition: "0 1.0 -2",
		MobileScaleFactor:   0.8,
		MobileBreakpoint:    768,
		ParticlePreset:      "divine",
		MusicVolume:         0.7,
		Timeouts: Timeouts{
			Panorama:      "10s",
			Model:         "10s",
			FallbackModel: "5s",
			Audio:         "5s",
			Ceiling:       "15s",
			RevealDelay:   "500ms",
			Notice:        "5s",
			ForceStart:    "10s",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("No config at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Settings validates c. Invalid optional values are replaced by defaults
// and logged; malformed durations, vectors or colours are errors.
func (c Config) Settings() (Settings, error) {
	def := Default()
	var s Settings
	var err error

	s.Loader.Sources = loader.Sources{
		Panorama:      c.Panorama,
		Model:         c.Model,
		FallbackModel: c.FallbackModel,
		Audio:         c.Audio,
	}

	if s.Loader.Timing, err = c.Timeouts.timing(def.Timeouts); err != nil {
		return s, err
	}
	if s.Loader.SkyColor, err = geom.ParseColor(or(c.SkyColor, def.SkyColor)); err != nil {
		return s, err
	}
	if s.PlaceholderColor, err = geom.ParseColor(or(c.PlaceholderColor, def.PlaceholderColor)); err != nil {
		return s, err
	}

	pos, err := geom.ParseVec3(or(c.ModelPosition, def.ModelPosition))
	if err != nil {
		return s, fmt.Errorf("modelPosition: %w", err)
	}
	scale, err := geom.ParseVec3(or(c.ModelScale, def.ModelScale))
	if err != nil {
		return s, fmt.Errorf("modelScale: %w", err)
	}
	fallbackScale, err := geom.ParseVec3(or(c.FallbackModelScale, def.FallbackModelScale))
	if err != nil {
		return s, fmt.Errorf("fallbackModelScale: %w", err)
	}
	s.ModelPlacement = geom.Placement{Position: pos, Scale: scale}
	s.FallbackPlacement = geom.Placement{Position: pos, Scale: fallbackScale}
	if s.MobileModelPosition, err = geom.ParseVec3(or(c.MobileModelPosition, def.MobileModelPosition)); err != nil {
		return s, fmt.Errorf("mobileModelPosition: %w", err)
	}

	s.MobileScaleFactor = c.MobileScaleFactor
	if s.MobileScaleFactor <= 0 || s.MobileScaleFactor > 1 {
		log.Warnf("mobileScaleFactor %v out of range, using %v", c.MobileScaleFactor, def.MobileScaleFactor)
		s.MobileScaleFactor = def.MobileScaleFactor
	}
	s.MobileBreakpoint = c.MobileBreakpoint
	if s.MobileBreakpoint <= 0 {
		s.MobileBreakpoint = def.MobileBreakpoint
	}
	s.MusicVolume = c.MusicVolume
	if s.MusicVolume < 0 || s.MusicVolume > 1 {
		log.Warnf("musicVolume %v out of range, using %v", c.MusicVolume, def.MusicVolume)
		s.MusicVolume = def.MusicVolume
	}
	s.ParticlePreset = or(c.ParticlePreset, def.ParticlePreset)
	s.Fullscreen = c.Fullscreen
	return s, nil
}

func (t Timeouts) timing(def Timeouts) (loader.Timing, error) {
	var out loader.Timing
	fields := []struct {
		name string
		val  string
		def  string
		dst  *time.Duration
	}{
		{"panorama", t.Panorama, def.Panorama, &out.Panorama},
		{"model", t.Model, def.Model, &out.Model},
		{"fallbackModel", t.FallbackModel, def.FallbackModel, &out.FallbackModel},
		{"audio", t.Audio, def.Audio, &out.Audio},
		{"ceiling", t.Ceiling, def.Ceiling, &out.Ceiling},
		{"revealDelay", t.RevealDelay, def.RevealDelay, &out.RevealDelay},
		{"notice", t.Notice, def.Notice, &out.Notice},
		{"forceStart", t.ForceStart, def.ForceStart, &out.ForceStart},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(or(f.val, f.def))
		if err != nil {
			return out, fmt.Errorf("timeouts.%s: %w", f.name, err)
		}
		if d <= 0 {
			return out, fmt.Errorf("timeouts.%s: must be positive, got %s", f.name, d)
		}
		*f.dst = d
	}
	return out, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

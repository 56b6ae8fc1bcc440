package loader

import (
	"context"
	"image/color"
	"time"
)

// Resource identifies one of the tracked assets.
type Resource int

const (
	Panorama Resource = iota
	Model
	Audio
)

// TotalResources is the number of tracked assets.
const TotalResources = 3

// Resources lists every tracked asset in start order.
var Resources = [TotalResources]Resource{Panorama, Model, Audio}

func (r Resource) String() string {
	switch r {
	case Panorama:
		return "panorama"
	case Model:
		return "model"
	case Audio:
		return "audio"
	}
	return "unknown"
}

// Critical reports whether a failure of r is surfaced to the user.
func (r Resource) Critical() bool {
	return r != Audio
}

// Phase is the lifecycle position of a single resource.
type Phase int

const (
	NotStarted Phase = iota
	Started
	Loaded
	Fallback
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not-started"
	case Started:
		return "started"
	case Loaded:
		return "loaded"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

// Tier is the position of an attempt in a resource's fallback chain.
type Tier int

const (
	Primary Tier = iota
	Secondary
	// Synthetic means no external asset: fallback colour, placeholder box or silence.
	Synthetic
)

func (t Tier) String() string {
	switch t {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	case Synthetic:
		return "synthetic"
	}
	return "unknown"
}

// Asset is a decoded payload handed back by a Fetcher.
type Asset interface {
	Resource() Resource
}

// Request asks a Fetcher to load one attempt.
type Request struct {
	Attempt  uint64
	Resource Resource
	Tier     Tier
	Source   string
}

// Result is what a Fetcher reports for a Request.
type Result struct {
	Attempt  uint64
	Resource Resource
	Tier     Tier
	Asset    Asset
	Err      error
}

// Fetcher starts asynchronous loads. Fetch must not block and must not
// call back into the Supervisor; results travel through the host loop.
// A cancelled ctx means the attempt already settled and its result is stale.
type Fetcher interface {
	Fetch(ctx context.Context, req Request)
}

// Scene receives the visible consequences of supervisor transitions.
type Scene interface {
	ApplyPanorama(a Asset)
	ApplySkyColor(c color.RGBA)
	ShowModel(tier Tier, a Asset)
	HideModel(tier Tier)
	SpawnPlaceholder()
	ApplyAudio(a Asset)
	SetProgress(percent int, detail string)
	ShowForceStart()
	ShowNotice(msg string)
	HideNotice()
	HideOverlay()
	RevealScene()
}

// Sources names where each tier of each resource is loaded from.
type Sources struct {
	Panorama      string
	Model         string
	FallbackModel string
	Audio         string
}

// Timing holds every bounded wait used by the supervisor.
type Timing struct {
	Panorama      time.Duration
	Model         time.Duration
	FallbackModel time.Duration
	Audio         time.Duration
	Ceiling       time.Duration
	RevealDelay   time.Duration
	Notice        time.Duration
	ForceStart    time.Duration
}

// DefaultTiming returns the production timeouts.
func DefaultTiming() Timing {
	return Timing{
		Panorama:      10 * time.Second,
		Model:         10 * time.Second,
		FallbackModel: 5 * time.Second,
		Audio:         5 * time.Second,
		Ceiling:       15 * time.Second,
		RevealDelay:   500 * time.Millisecond,
		Notice:        5 * time.Second,
		ForceStart:    10 * time.Second,
	}
}

// Config is everything a Supervisor needs besides its collaborators.
type Config struct {
	Sources  Sources
	Timing   Timing
	SkyColor color.RGBA
}

func (c Config) source(res Resource, tier Tier) string {
	switch {
	case res == Panorama:
		return c.Sources.Panorama
	case res == Model && tier == Primary:
		return c.Sources.Model
	case res == Model:
		return c.Sources.FallbackModel
	default:
		return c.Sources.Audio
	}
}

func (c Config) timeout(res Resource, tier Tier) time.Duration {
	switch {
	case res == Panorama:
		return c.Timing.Panorama
	case res == Model && tier == Primary:
		return c.Timing.Model
	case res == Model:
		return c.Timing.FallbackModel
	default:
		return c.Timing.Audio
	}
}

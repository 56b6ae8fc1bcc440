package loader

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fortio.org/log"
)

// FallbackNotice is the banner shown when a critical asset fell back.
const FallbackNotice = "Some assets failed to load. Using fallbacks."

// maxTimeBonus caps the time-based progress bonus before completion.
const maxTimeBonus = 95

type attempt struct {
	id       uint64
	resource Resource
	tier     Tier
	timer    timerID
	cancel   context.CancelFunc
	settled  bool
}

// Supervisor drives the three resources to a terminal state and reveals
// the scene exactly once. It is not safe for concurrent use: every method
// must be called from the host loop.
type Supervisor struct {
	cfg   Config
	scene Scene
	fetch Fetcher

	ctx    context.Context
	cancel context.CancelFunc

	began  bool
	now    time.Time
	state  State
	status LoadStatus
	timers *timerQueue

	attempts map[uint64]*attempt
	current  [TotalResources]*attempt
	nextID   uint64

	failed      bool
	forcing     bool
	shown       int
	lastDetail  string
	lastPercent int

	readyFns  []func()
	observers []func(Snapshot)
}

// New creates a Supervisor. Nothing is loaded until Begin.
func New(cfg Config, scene Scene, fetch Fetcher) *Supervisor {
	return &Supervisor{
		cfg:         cfg,
		scene:       scene,
		fetch:       fetch,
		status:      LoadStatus{TotalResources: TotalResources},
		timers:      newTimerQueue(),
		attempts:    make(map[uint64]*attempt),
		lastPercent: -1,
	}
}

// OnReady registers fn to run once the scene is revealed. If the scene is
// already revealed fn runs immediately.
func (s *Supervisor) OnReady(fn func()) {
	if s.state == Ready {
		fn()
		return
	}
	s.readyFns = append(s.readyFns, fn)
}

// Observe registers fn to receive a snapshot after every transition.
func (s *Supervisor) Observe(fn func(Snapshot)) {
	s.observers = append(s.observers, fn)
}

// Begin is the scene-ready signal: it starts all three loads, the ceiling
// timer and the force-start hint. Calls after the first are ignored.
func (s *Supervisor) Begin(ctx context.Context, now time.Time) {
	if s.began {
		return
	}
	s.began = true
	s.now = now
	s.status.StartTime = now
	s.ctx, s.cancel = context.WithCancel(ctx)

	log.Infof("Scene ready, tracking %d resources", TotalResources)

	s.timers.schedule(now.Add(s.cfg.Timing.Ceiling), func(at time.Time) {
		s.now = at
		if s.state == Loading {
			log.Warnf("Maximum wait time of %s reached, forcing experience to start", s.cfg.Timing.Ceiling)
			s.finalize("ceiling")
		}
	})
	s.timers.schedule(now.Add(s.cfg.Timing.ForceStart), func(at time.Time) {
		if s.state == Loading {
			s.scene.ShowForceStart()
		}
	})

	for _, res := range Resources {
		if s.state != Loading {
			break
		}
		s.start(res, Primary)
	}
	s.refreshProgress()
	s.notify()
}

// Deliver folds a fetch result into the state machine. Results for
// attempts that already settled, by timeout or otherwise, are dropped.
// The transition is stamped with the time of the last Tick.
func (s *Supervisor) Deliver(r Result) {
	a, ok := s.attempts[r.Attempt]
	if !ok {
		log.LogVf("Ignoring stale %s %s result for attempt %d", r.Resource, r.Tier, r.Attempt)
		return
	}
	if r.Err != nil {
		s.settle(a, nil, classify(a.resource, a.tier, r.Err))
	} else {
		s.settle(a, r.Asset, nil)
	}
	s.refreshProgress()
}

// Tick fires every timer due at or before now.
func (s *Supervisor) Tick(now time.Time) {
	if !s.began {
		return
	}
	if now.Before(s.now) {
		now = s.now
	}
	s.timers.advance(now)
	s.now = now
	s.refreshProgress()
}

// ForceStart finalizes immediately, forcing pending resources to their fallbacks.
func (s *Supervisor) ForceStart(now time.Time) {
	if !s.began || s.state != Loading {
		return
	}
	if now.After(s.now) {
		s.now = now
	}
	log.Infof("Force starting experience")
	s.finalize("forced")
	s.refreshProgress()
}

// Close cancels any in-flight fetches.
func (s *Supervisor) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// State returns the aggregate state.
func (s *Supervisor) State() State { return s.state }

// Completed returns how many resources reached a terminal outcome.
func (s *Supervisor) Completed() int { return s.status.CompletedCount }

// Status returns a copy of the load status.
func (s *Supervisor) Status() LoadStatus { return s.status }

// Snapshot returns a copy of everything observers see.
func (s *Supervisor) Snapshot() Snapshot {
	return Snapshot{
		State:   s.state,
		Status:  s.status,
		Percent: s.shown,
		Detail:  s.detail(),
	}
}

func (s *Supervisor) start(res Resource, tier Tier) {
	st := &s.status.Resources[res]
	st.Phase = Started
	st.Tier = tier

	s.nextID++
	a := &attempt{id: s.nextID, resource: res, tier: tier}
	s.attempts[a.id] = a
	s.current[res] = a

	source := s.cfg.source(res, tier)
	if source == "" {
		s.settle(a, nil, &LoadError{Resource: res, Tier: tier, Kind: ErrResourceNotFound})
		return
	}

	timeout := s.cfg.timeout(res, tier)
	log.S(log.Info, "Loading resource", log.Str("resource", res.String()),
		log.Str("tier", tier.String()), log.Str("source", source))

	ctx, cancel := context.WithCancel(s.ctx)
	a.cancel = cancel
	a.timer = s.timers.schedule(s.now.Add(timeout), func(at time.Time) {
		s.now = at
		s.settle(a, nil, &LoadError{Resource: res, Tier: tier, Kind: ErrLoadTimeout,
			Err: fmt.Errorf("no response after %s", timeout)})
	})
	s.fetch.Fetch(ctx, Request{Attempt: a.id, Resource: res, Tier: tier, Source: source})
}

// settle is the event-or-timeout race: the first caller wins, defuses the
// other side and routes the outcome. Later calls return false.
func (s *Supervisor) settle(a *attempt, asset Asset, err *LoadError) bool {
	if a.settled {
		return false
	}
	a.settled = true
	s.timers.cancel(a.timer)
	if a.cancel != nil {
		a.cancel()
	}
	delete(s.attempts, a.id)
	if s.current[a.resource] == a {
		s.current[a.resource] = nil
	}

	if err == nil {
		s.succeed(a, asset)
	} else {
		s.fail(a, err)
	}
	return true
}

func (s *Supervisor) succeed(a *attempt, asset Asset) {
	log.Infof("%s (%s) loaded successfully", a.resource, a.tier)
	switch a.resource {
	case Panorama:
		s.scene.ApplyPanorama(asset)
		s.complete(Panorama, Loaded, a.tier)
	case Model:
		s.scene.ShowModel(a.tier, asset)
		if a.tier == Primary {
			s.complete(Model, Loaded, a.tier)
		} else {
			s.complete(Model, Fallback, a.tier)
		}
	case Audio:
		s.scene.ApplyAudio(asset)
		s.complete(Audio, Loaded, a.tier)
	}
}

func (s *Supervisor) fail(a *attempt, err *LoadError) {
	s.status.Resources[a.resource].Err = err
	switch a.resource {
	case Panorama:
		log.Warnf("Panorama failed, using fallback color: %v", err)
		s.failed = true
		s.scene.ApplySkyColor(s.cfg.SkyColor)
		s.complete(Panorama, Fallback, Synthetic)
	case Model:
		s.scene.HideModel(a.tier)
		if a.tier == Primary {
			log.Warnf("Main model failed, trying fallback: %v", err)
			s.start(Model, Secondary)
			return
		}
		log.Errf("Fallback model also failed, using placeholder: %v", err)
		s.failed = true
		s.scene.SpawnPlaceholder()
		s.complete(Model, Fallback, Synthetic)
	case Audio:
		log.Warnf("Audio unavailable, continuing without audio: %v", err)
		s.complete(Audio, Fallback, Synthetic)
	}
}

// force drives a still-pending resource to its last fallback without
// touching the count twice.
func (s *Supervisor) force(res Resource) {
	st := &s.status.Resources[res]
	if st.Loaded() {
		return
	}
	tier := st.Tier
	if a := s.current[res]; a != nil {
		a.settled = true
		s.timers.cancel(a.timer)
		if a.cancel != nil {
			a.cancel()
		}
		delete(s.attempts, a.id)
		s.current[res] = nil
	}
	st.Err = &LoadError{Resource: res, Tier: tier, Kind: ErrLoadTimeout, Err: fmt.Errorf("forced at finalize")}

	switch res {
	case Panorama:
		s.failed = true
		s.scene.ApplySkyColor(s.cfg.SkyColor)
	case Model:
		s.failed = true
		if st.Started() {
			s.scene.HideModel(tier)
		}
		s.scene.SpawnPlaceholder()
	}
	log.Warnf("%s still pending at finalize, using fallback", res)
	s.complete(res, Fallback, Synthetic)
}

func (s *Supervisor) complete(res Resource, phase Phase, tier Tier) {
	st := &s.status.Resources[res]
	if st.Loaded() {
		return
	}
	st.Phase = phase
	st.Tier = tier
	if s.status.CompletedCount < TotalResources {
		s.status.CompletedCount++
	}
	s.notify()

	if s.status.CompletedCount == TotalResources {
		log.Infof("All assets processed, preparing scene")
		s.finalize("complete")
	}
}

// finalize runs once: it forces pending resources, hides the overlay and
// schedules the reveal.
func (s *Supervisor) finalize(reason string) {
	if s.state != Loading || s.forcing {
		return
	}
	log.S(log.Info, "Finalizing experience loading", log.Str("reason", reason))

	s.forcing = true
	for _, res := range Resources {
		s.force(res)
	}
	s.forcing = false
	s.state = Finalizing

	s.refreshProgress()
	s.scene.HideOverlay()
	if s.failed {
		s.scene.ShowNotice(FallbackNotice)
		s.timers.schedule(s.now.Add(s.cfg.Timing.Notice), func(time.Time) {
			s.scene.HideNotice()
		})
	}
	s.timers.schedule(s.now.Add(s.cfg.Timing.RevealDelay), s.reveal)
	s.notify()
}

func (s *Supervisor) reveal(at time.Time) {
	s.now = at
	s.state = Ready
	s.scene.RevealScene()
	log.Infof("Experience fully loaded and ready after %s", at.Sub(s.status.StartTime))
	fns := s.readyFns
	s.readyFns = nil
	for _, fn := range fns {
		fn()
	}
	s.notify()
}

// Progress returns the displayed percentage at now and a line naming what
// is still loading. The percentage never decreases.
func (s *Supervisor) Progress(now time.Time) (percent int, detail string) {
	p := int(math.Round(float64(s.status.CompletedCount) / float64(TotalResources) * 100))
	if s.began && s.status.CompletedCount < TotalResources && s.cfg.Timing.Ceiling > 0 {
		elapsed := now.Sub(s.status.StartTime)
		bonus := int(float64(elapsed) / float64(s.cfg.Timing.Ceiling) * maxTimeBonus)
		if bonus > maxTimeBonus {
			bonus = maxTimeBonus
		}
		if bonus > p {
			p = bonus
		}
	}
	if p > s.shown {
		s.shown = p
	}
	return s.shown, s.detail()
}

func (s *Supervisor) detail() string {
	switch s.state {
	case Finalizing:
		return "Preparing scene..."
	case Ready:
		return "Ready"
	}
	var pending []string
	for _, res := range Resources {
		st := s.status.Resources[res]
		if st.Loaded() {
			continue
		}
		if st.Tier == Secondary {
			pending = append(pending, res.String()+" (fallback)")
		} else {
			pending = append(pending, res.String())
		}
	}
	if len(pending) == 0 {
		return ""
	}
	return "Loading " + strings.Join(pending, ", ") + "..."
}

func (s *Supervisor) refreshProgress() {
	if !s.began {
		return
	}
	p, d := s.Progress(s.now)
	if p == s.lastPercent && d == s.lastDetail {
		return
	}
	s.lastPercent, s.lastDetail = p, d
	s.scene.SetProgress(p, d)
}

func (s *Supervisor) notify() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.observers {
		fn(snap)
	}
}

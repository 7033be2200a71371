package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
)

// fakeScheduler is a deterministic Scheduler driven by Advance.
type fakeScheduler struct {
	now    time.Time
	timers []*fakeTimer
	seq    int

	queue    []func()
	draining bool

	// holdCalls parks Go work until releaseCalls.
	holdCalls bool
	held      []func()

	// leakyStop makes Stop report failure and still fire, like a
	// time.Timer whose callback was already posted to the loop.
	leakyStop bool
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired || t.s.leakyStop {
		return false
	}
	t.stopped = true
	return true
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(1700000000, 0)}
}

func (s *fakeScheduler) Post(fn func()) bool {
	s.queue = append(s.queue, fn)
	s.drain()
	return true
}

func (s *fakeScheduler) drain() {
	if s.draining {
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
	s.draining = false
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.seq++
	t := &fakeTimer{s: s, at: s.now.Add(d), seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Go(work func(), done func()) {
	call := func() {
		work()
		s.Post(done)
	}
	if s.holdCalls {
		s.held = append(s.held, call)
		return
	}
	call()
}

func (s *fakeScheduler) Now() time.Time {
	return s.now
}

// releaseCalls completes every parked call in order.
func (s *fakeScheduler) releaseCalls() {
	s.holdCalls = false
	held := s.held
	s.held = nil
	for _, call := range held {
		call()
	}
}

// Advance moves virtual time forward, firing due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	end := s.now.Add(d)
	for {
		t := s.nextDue(end)
		if t == nil {
			break
		}
		s.now = t.at
		t.fired = true
		s.Post(t.fn)
	}
	s.now = end
}

func (s *fakeScheduler) nextDue(end time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && !t.at.After(end) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

// pending counts timers that will still fire.
func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) runner() runner {
	return runner{sched: s, ctx: context.Background()}
}

var errBoom = errors.New("connection reset by peer")

// fakeRemote records calls and answers from configurable results.
type fakeRemote struct {
	mu sync.Mutex

	service    core.ServiceState
	serviceErr error

	nowPlaying    core.NowPlaying
	nowPlayingErr error
	subscribeErr  error

	// results and errs are keyed by operation name; missing results are true.
	results map[string]bool
	errs    map[string]error
	panics  map[string]bool

	calls        []string
	volumes      []float64
	fetches      int
	subscribes   int
	unsubscribes int
	handlers     []func(core.NowPlaying)
	settings     core.Settings
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		service:    core.ServiceState{Running: true, Enabled: true, Name: "decky-spotifyd.service", RawState: "active"},
		nowPlaying: core.Disconnected(),
		results:    make(map[string]bool),
		errs:       make(map[string]error),
		panics:     make(map[string]bool),
		settings:   core.DefaultSettings(),
	}
}

func (r *fakeRemote) command(op string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
	if r.panics[op] {
		panic(op + " exploded")
	}
	if err := r.errs[op]; err != nil {
		return false, err
	}
	if ok, set := r.results[op]; set {
		return ok, nil
	}
	return true, nil
}

func (r *fakeRemote) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (r *fakeRemote) FetchServiceState(ctx context.Context) (core.ServiceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "status")
	return r.service, r.serviceErr
}

func (r *fakeRemote) Start(ctx context.Context) (bool, error)     { return r.command("start") }
func (r *fakeRemote) Stop(ctx context.Context) (bool, error)      { return r.command("stop") }
func (r *fakeRemote) Restart(ctx context.Context) (bool, error)   { return r.command("restart") }
func (r *fakeRemote) Enable(ctx context.Context) (bool, error)    { return r.command("enable") }
func (r *fakeRemote) Disable(ctx context.Context) (bool, error)   { return r.command("disable") }
func (r *fakeRemote) PlayPause(ctx context.Context) (bool, error) { return r.command("play-pause") }
func (r *fakeRemote) Previous(ctx context.Context) (bool, error)  { return r.command("previous") }
func (r *fakeRemote) Next(ctx context.Context) (bool, error)      { return r.command("next") }

func (r *fakeRemote) SetVolume(ctx context.Context, fraction float64) (bool, error) {
	r.mu.Lock()
	r.volumes = append(r.volumes, fraction)
	r.mu.Unlock()
	return r.command("set-volume")
}

func (r *fakeRemote) FetchNowPlaying(ctx context.Context) (core.NowPlaying, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	return r.nowPlaying.Clone(), r.nowPlayingErr
}

func (r *fakeRemote) SubscribeNowPlaying(ctx context.Context, handler func(core.NowPlaying)) (core.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribes++
	if r.subscribeErr != nil {
		return nil, r.subscribeErr
	}
	r.handlers = append(r.handlers, handler)
	var once sync.Once
	return core.SubscriptionFunc(func() {
		once.Do(func() {
			r.mu.Lock()
			r.unsubscribes++
			r.mu.Unlock()
		})
	}), nil
}

func (r *fakeRemote) Logs(ctx context.Context, lines int) ([]string, error) {
	return []string{}, nil
}

func (r *fakeRemote) FetchSettings(ctx context.Context) (core.Settings, error) {
	return r.settings, nil
}

func (r *fakeRemote) SaveSettings(ctx context.Context, s core.Settings) (bool, error) {
	r.settings = s
	return r.command("save-settings")
}

// push delivers np through every handler ever registered, including ones
// whose subscription was released.
func (r *fakeRemote) push(np core.NowPlaying) {
	r.mu.Lock()
	handlers := append([]func(core.NowPlaying){}, r.handlers...)
	r.mu.Unlock()
	for _, h := range handlers {
		h(np)
	}
}

func (r *fakeRemote) setService(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.service.Running = running
	if running {
		r.service.RawState = "active"
	} else {
		r.service.RawState = "inactive"
	}
}

func (r *fakeRemote) setNowPlaying(np core.NowPlaying) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowPlaying = np
}

func (r *fakeRemote) counts() (subscribes, unsubscribes, fetches int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribes, r.unsubscribes, r.fetches
}

func testTrack() *core.Track {
	return &core.Track{
		Name:       "Windowlicker",
		Artists:    []string{"Aphex Twin"},
		Album:      "Windowlicker",
		DurationMs: 200000,
	}
}

func playing(positionMs int64, volume float64) core.NowPlaying {
	return core.NowPlaying{
		Connected:  true,
		Track:      testTrack(),
		Phase:      core.PhasePlaying,
		PositionMs: positionMs,
		Volume:     volume,
	}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

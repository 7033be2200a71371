package core

import "context"

// ServiceController manages the speaker's system service. A false result with
// a nil error means the backend declined the request.
type ServiceController interface {
	FetchServiceState(ctx context.Context) (ServiceState, error)
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
	Restart(ctx context.Context) (bool, error)
	Enable(ctx context.Context) (bool, error)
	Disable(ctx context.Context) (bool, error)
}

// Log line limits for LogSource.
const (
	DefaultLogLines = 50
	MaxLogLines     = 1000
)

// LogSource reads the service's recent log output.
type LogSource interface {
	// Logs returns up to lines of the most recent log lines, oldest first.
	Logs(ctx context.Context, lines int) ([]string, error)
}

// ClampLogLines maps a requested line count into [1, MaxLogLines]. A
// non-positive count asks for DefaultLogLines.
func ClampLogLines(n int) int {
	if n <= 0 {
		return DefaultLogLines
	}
	return min(n, MaxLogLines)
}

// PlaybackController sends transport commands to the speaker.
type PlaybackController interface {
	PlayPause(ctx context.Context) (bool, error)
	Previous(ctx context.Context) (bool, error)
	Next(ctx context.Context) (bool, error)
	SetVolume(ctx context.Context, fraction float64) (bool, error)
}

// NowPlayingSource produces snapshots of the speaker, both on demand and as
// a push stream.
type NowPlayingSource interface {
	FetchNowPlaying(ctx context.Context) (NowPlaying, error)
	// SubscribeNowPlaying delivers snapshots to handler in the order the
	// backend emits them until the returned Subscription is released.
	// handler may be called from any goroutine.
	SubscribeNowPlaying(ctx context.Context, handler func(NowPlaying)) (Subscription, error)
}

// SettingsStore reads and writes the speaker settings.
type SettingsStore interface {
	FetchSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) (bool, error)
}

// Remote is the full boundary to a speaker backend.
type Remote interface {
	ServiceController
	LogSource
	PlaybackController
	NowPlayingSource
	SettingsStore
}

// Subscription is an owned push subscription. Unsubscribe is idempotent and
// returns once no further handler calls will be made.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

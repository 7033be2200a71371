package httpapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

var _ core.Remote = (*Client)(nil)

// FetchServiceState returns the state of the speaker service.
func (c *Client) FetchServiceState(ctx context.Context) (core.ServiceState, error) {
	var st ServiceStatus
	if err := c.Get(ctx, PathStatus, &st); err != nil {
		return core.ServiceState{}, panelerrors.Transport("fetch service state", err)
	}
	return st.ToCore(), nil
}

// FetchNowPlaying returns the current snapshot.
func (c *Client) FetchNowPlaying(ctx context.Context) (core.NowPlaying, error) {
	var np NowPlaying
	if err := c.Get(ctx, PathNowPlaying, &np); err != nil {
		return core.NowPlaying{}, panelerrors.Transport("fetch now playing", err)
	}
	return np.ToCore(), nil
}

// Logs returns the most recent lines of the speaker service's log.
func (c *Client) Logs(ctx context.Context, lines int) ([]string, error) {
	q := url.Values{"lines": {strconv.Itoa(core.ClampLogLines(lines))}}
	var out Logs
	if err := c.Get(ctx, PathLogs+"?"+q.Encode(), &out); err != nil {
		return nil, panelerrors.Transport("fetch logs", err)
	}
	if out.Lines == nil {
		out.Lines = []string{}
	}
	return out.Lines, nil
}

// FetchSettings returns the persisted speaker settings.
func (c *Client) FetchSettings(ctx context.Context) (core.Settings, error) {
	var s Settings
	if err := c.Get(ctx, PathSettings, &s); err != nil {
		return core.Settings{}, panelerrors.Transport("fetch settings", err)
	}
	return s.ToCore(), nil
}

// SaveSettings persists s on the agent.
func (c *Client) SaveSettings(ctx context.Context, s core.Settings) (bool, error) {
	return c.post(ctx, PathSettings, FromSettings(s), "save settings")
}

func (c *Client) Start(ctx context.Context) (bool, error)   { return c.command(ctx, CommandStart) }
func (c *Client) Stop(ctx context.Context) (bool, error)    { return c.command(ctx, CommandStop) }
func (c *Client) Restart(ctx context.Context) (bool, error) { return c.command(ctx, CommandRestart) }
func (c *Client) Enable(ctx context.Context) (bool, error)  { return c.command(ctx, CommandEnable) }
func (c *Client) Disable(ctx context.Context) (bool, error) { return c.command(ctx, CommandDisable) }

func (c *Client) PlayPause(ctx context.Context) (bool, error) {
	return c.command(ctx, CommandPlayPause)
}

func (c *Client) Next(ctx context.Context) (bool, error) { return c.command(ctx, CommandNext) }

func (c *Client) Previous(ctx context.Context) (bool, error) {
	return c.command(ctx, CommandPrevious)
}

// SetVolume sets the speaker volume to a fraction in [0, 1].
func (c *Client) SetVolume(ctx context.Context, fraction float64) (bool, error) {
	req := VolumeRequest{Volume: core.ClampFraction(fraction)}
	return c.post(ctx, PathSetVolume, req, "set volume")
}

func (c *Client) command(ctx context.Context, name string) (bool, error) {
	return c.post(ctx, CommandPath(name), nil, name)
}

func (c *Client) post(ctx context.Context, path string, body any, op string) (bool, error) {
	var res Result
	if err := c.Post(ctx, path, body, &res); err != nil {
		return false, panelerrors.Transport(op, err)
	}
	return res.OK, nil
}

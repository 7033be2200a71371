package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
)

const (
	mprisPath        = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayer      = "org.mpris.MediaPlayer2.Player"
	propertiesIface  = "org.freedesktop.DBus.Properties"
	busDest          = "org.freedesktop.DBus"
	busPath          = dbus.ObjectPath("/org/freedesktop/DBus")
	refetchTimeout   = 2 * time.Second
	signalBufferSize = 32
)

// Player controls the speaker through its MPRIS interface.
type Player struct {
	prefix      string
	addressFile string
	log         *zap.Logger

	// dial is used when no address file is configured.
	dial busDialer
}

// NewPlayer returns a player for bus names starting with prefix. When
// addressFile is set, the bus address is read from it on every connect,
// since the speaker may run its own bus that moves on restart.
func NewPlayer(prefix, addressFile string, log *zap.Logger) *Player {
	return &Player{
		prefix:      prefix,
		addressFile: addressFile,
		log:         log.With(zap.String("component", "mpris")),
		dial:        sessionBus,
	}
}

// errNoBus means the speaker's private bus does not exist yet.
var errNoBus = errors.New("speaker bus not available")

func (p *Player) connect(ctx context.Context) (*dbus.Conn, error) {
	if p.addressFile == "" {
		return p.dial(ctx)
	}
	data, err := os.ReadFile(p.addressFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNoBus
	}
	if err != nil {
		return nil, fmt.Errorf("read bus address: %w", err)
	}
	address := strings.TrimSpace(string(data))
	if address == "" {
		return nil, errNoBus
	}
	conn, err := dbus.Connect(address, dbus.WithContext(ctx))
	if err != nil {
		// A stale address file points at a bus that went away.
		p.log.Debug("speaker bus unreachable", zap.String("address", address), zap.Error(err))
		return nil, errNoBus
	}
	return conn, nil
}

// findName returns the speaker's bus name, or "" if it is not on the bus.
func (p *Player) findName(ctx context.Context, conn *dbus.Conn) (string, error) {
	var names []string
	if err := conn.Object(busDest, busPath).CallWithContext(ctx, busDest+".ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("list names: %w", err)
	}
	for _, name := range names {
		if strings.HasPrefix(name, p.prefix) {
			return name, nil
		}
	}
	return "", nil
}

// FetchNowPlaying reads the player's properties. A missing bus or player is
// reported as a disconnected snapshot.
func (p *Player) FetchNowPlaying(ctx context.Context) (core.NowPlaying, error) {
	conn, err := p.connect(ctx)
	if errors.Is(err, errNoBus) {
		return core.Disconnected(), nil
	}
	if err != nil {
		return core.NowPlaying{}, err
	}
	defer conn.Close()
	return p.snapshot(ctx, conn)
}

func (p *Player) snapshot(ctx context.Context, conn *dbus.Conn) (core.NowPlaying, error) {
	name, err := p.findName(ctx, conn)
	if err != nil {
		return core.NowPlaying{}, err
	}
	if name == "" {
		return core.Disconnected(), nil
	}

	var props map[string]dbus.Variant
	call := conn.Object(name, mprisPath).CallWithContext(ctx, propertiesIface+".GetAll", 0, mprisPlayer)
	if err := call.Store(&props); err != nil {
		return core.NowPlaying{}, fmt.Errorf("player properties: %w", err)
	}
	return snapshotFromProperties(props), nil
}

func (p *Player) PlayPause(ctx context.Context) (bool, error) { return p.call(ctx, "PlayPause") }
func (p *Player) Next(ctx context.Context) (bool, error)      { return p.call(ctx, "Next") }
func (p *Player) Previous(ctx context.Context) (bool, error)  { return p.call(ctx, "Previous") }

// SetVolume writes the Volume property.
func (p *Player) SetVolume(ctx context.Context, fraction float64) (bool, error) {
	return p.withPlayer(ctx, func(obj dbus.BusObject) error {
		return obj.CallWithContext(ctx, propertiesIface+".Set", 0,
			mprisPlayer, "Volume", dbus.MakeVariant(core.ClampFraction(fraction))).Err
	})
}

func (p *Player) call(ctx context.Context, method string) (bool, error) {
	return p.withPlayer(ctx, func(obj dbus.BusObject) error {
		return obj.CallWithContext(ctx, mprisPlayer+"."+method, 0).Err
	})
}

// withPlayer runs fn against the player object. A player that is not on the
// bus declines the command.
func (p *Player) withPlayer(ctx context.Context, fn func(obj dbus.BusObject) error) (bool, error) {
	conn, err := p.connect(ctx)
	if errors.Is(err, errNoBus) {
		p.log.Debug("command declined", zap.Error(panelerrors.ErrPlayerNotFound))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer conn.Close()

	name, err := p.findName(ctx, conn)
	if err != nil {
		return false, err
	}
	if name == "" {
		p.log.Debug("command declined", zap.Error(panelerrors.ErrPlayerNotFound))
		return false, nil
	}
	if err := fn(conn.Object(name, mprisPath)); err != nil {
		return false, err
	}
	return true, nil
}

// SubscribeNowPlaying watches PropertiesChanged and NameOwnerChanged on a
// dedicated connection and delivers a fresh snapshot after each. When the
// bus goes away a disconnected snapshot is delivered and the watcher keeps
// reconnecting until it is released.
//
// ctx bounds only the first connect and match registration. The watch
// connection lives until Unsubscribe.
func (p *Player) SubscribeNowPlaying(ctx context.Context, handler func(core.NowPlaying)) (core.Subscription, error) {
	wctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		player:  p,
		handler: handler,
		ctx:     wctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// The first connection is made synchronously so that a broken session
	// bus is reported to the caller.
	sess, err := p.watch(wctx, ctx)
	switch {
	case errors.Is(err, errNoBus):
		p.log.Debug("speaker bus not available yet, watching for it")
	case err != nil:
		cancel()
		return nil, err
	}
	go w.run(sess)
	return w, nil
}

// session is one watch connection. Its context is a child of the watcher's,
// released when the connection is closed.
type session struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	release context.CancelFunc
}

func (s *session) close() {
	_ = s.conn.Close()
	s.release()
}

// dialFor opens a connection that stays up until life is done or the
// connection is closed. ctx only bounds the connect: if it ends first the
// half-open connection is torn down.
func (p *Player) dialFor(life, ctx context.Context) (*dbus.Conn, context.CancelFunc, error) {
	connCtx, release := context.WithCancel(life)
	stop := context.AfterFunc(ctx, release)
	conn, err := p.connect(connCtx)
	if !stop() {
		if conn != nil {
			_ = conn.Close()
		}
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, nil, err
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return conn, release, nil
}

// watch connects for the lifetime of life and registers the signal matches
// within ctx.
func (p *Player) watch(life, ctx context.Context) (*session, error) {
	conn, release, err := p.dialFor(life, ctx)
	if err != nil {
		return nil, err
	}
	sess := &session{conn: conn, release: release}
	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		sess.close()
		return nil, fmt.Errorf("watch properties: %w", err)
	}
	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(busDest),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace(strings.TrimSuffix(p.prefix, ".")),
	); err != nil {
		sess.close()
		return nil, fmt.Errorf("watch names: %w", err)
	}
	sess.signals = make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sess.signals)
	return sess, nil
}

const reconnectInterval = 2 * time.Second

type watcher struct {
	player  *Player
	handler func(core.NowPlaying)

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu   sync.Mutex
	conn *dbus.Conn
}

func (w *watcher) run(sess *session) {
	defer close(w.done)
	for {
		if sess != nil {
			if !w.setConn(sess.conn) {
				sess.close()
				return
			}
			if np, err := w.refetch(sess.conn); err == nil {
				w.deliver(np)
			}
			w.follow(sess.conn, sess.signals)
			w.setConn(nil)
			sess.close()
			if w.ctx.Err() != nil {
				return
			}
			w.deliver(core.Disconnected())
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(reconnectInterval):
		}

		var err error
		sess, err = w.player.watch(w.ctx, w.ctx)
		if err != nil && !errors.Is(err, errNoBus) && w.ctx.Err() == nil {
			w.player.log.Debug("reconnect failed", zap.Error(err))
		}
	}
}

// follow handles signals until the connection drops or the watcher stops.
func (w *watcher) follow(conn *dbus.Conn, signals chan *dbus.Signal) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if !w.relevant(sig) {
				continue
			}
			// Coalesce bursts: spotifyd sends several PropertiesChanged per
			// track change.
			if !drain(signals) {
				return
			}
			np, err := w.refetch(conn)
			if err != nil {
				w.player.log.Debug("refetch after signal failed", zap.Error(err))
				continue
			}
			w.deliver(np)
		}
	}
}

func (w *watcher) refetch(conn *dbus.Conn) (core.NowPlaying, error) {
	ctx, cancel := context.WithTimeout(w.ctx, refetchTimeout)
	defer cancel()
	return w.player.snapshot(ctx, conn)
}

func (w *watcher) deliver(np core.NowPlaying) {
	if w.ctx.Err() != nil {
		return
	}
	w.handler(np)
}

// setConn records the live connection. It reports false once the watcher
// has been released.
func (w *watcher) setConn(conn *dbus.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if conn != nil && w.ctx.Err() != nil {
		return false
	}
	w.conn = conn
	return true
}

func (w *watcher) relevant(sig *dbus.Signal) bool {
	switch sig.Name {
	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) == 0 {
			return false
		}
		iface, _ := sig.Body[0].(string)
		return iface == mprisPlayer
	case busDest + ".NameOwnerChanged":
		if len(sig.Body) == 0 {
			return false
		}
		name, _ := sig.Body[0].(string)
		return strings.HasPrefix(name, w.player.prefix)
	}
	return false
}

// drain discards queued signals. It reports false if the channel closed.
func drain(signals chan *dbus.Signal) bool {
	for {
		select {
		case _, ok := <-signals:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

// Unsubscribe stops the watcher and closes its connection.
func (w *watcher) Unsubscribe() {
	w.once.Do(func() {
		w.mu.Lock()
		w.cancel()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.mu.Unlock()
		<-w.done
	})
}

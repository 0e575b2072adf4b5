package wsio

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultCloseTimeout     = 5 * time.Second
)

// Hooks receives session lifecycle and I/O callbacks. All methods run one at
// a time, in order; all but an accepted session's OnHandshake run on the
// session strand.
type Hooks interface {
	// OnHandshake runs before the WebSocket upgrade. For outgoing sessions
	// header is the upgrade request header and may be modified in place; for
	// accepted sessions it is the incoming request header and the call is made
	// by Accept itself, before the strand starts. Returning false aborts the
	// session.
	OnHandshake(header http.Header) bool

	// OnOpen runs once the WebSocket handshake completed. resp is the upgrade
	// response for outgoing sessions and nil for accepted sessions.
	OnOpen(resp *http.Response)

	// OnMessage delivers one inbound WebSocket message. The slice is owned by
	// the callee.
	OnMessage(data []byte)

	// OnClose runs exactly once, when the session reaches its terminal state.
	OnClose()

	// OnError reports an I/O or handshake failure. The session closes itself
	// afterwards; errors caused by a local Close call are not reported.
	OnError(err error)
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithTLSConfig sets the TLS configuration used by the default dialer.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Session) { s.tlsConfig = cfg }
}

// WithPingInterval sets the keepalive ping interval for outgoing sessions.
// Zero disables keepalive.
func WithPingInterval(d time.Duration) Option {
	return func(s *Session) { s.pingInterval = d }
}

// Session is a WebSocket session driven by a single-goroutine strand.
//
// The open and closed fields follow a monotonic -1 -> 0 -> 1 progression:
// open is -1 before Run, 0 while connecting and 1 once the handshake
// completed; closed is -1 until a close is requested, 0 while the close
// handshake runs and 1 once OnClose fired.
type Session struct {
	rawURL string
	hooks  Hooks
	header http.Header

	dialer       *websocket.Dialer
	tlsConfig    *tls.Config
	pingInterval time.Duration

	mu       sync.Mutex
	queue    []func()
	wake     chan struct{}
	done     chan struct{}
	readDone chan struct{}

	conn    *websocket.Conn
	sendQ   [][]byte
	writing bool
	dialing bool
	open    int
	closed  int

	dialCancel context.CancelFunc
}

// NewSession creates a session for rawURL (ws:// or wss://) and starts its
// strand. The session connects only when Run is called. header seeds the
// upgrade request headers and may be nil.
func NewSession(rawURL string, header http.Header, hooks Hooks, opts ...Option) *Session {
	s := &Session{
		rawURL:       rawURL,
		hooks:        hooks,
		header:       header,
		pingInterval: defaultPingInterval,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		readDone:     make(chan struct{}),
		open:         -1,
		closed:       -1,
	}
	if s.header == nil {
		s.header = http.Header{}
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Run initiates the connection. Calling Run more than once, or after Close,
// is a no-op.
func (s *Session) Run() {
	s.Post(s.onPostRun)
}

// Send queues data for transmission. Messages are written in Send order, one
// at a time. Send after Run and before the handshake completes is buffered;
// Send before Run or after Close is a no-op.
func (s *Session) Send(data []byte) {
	s.Post(func() { s.onPostSend(data) })
}

// Close initiates the close handshake. Safe to call multiple times and from
// any goroutine; only the first call has an effect.
func (s *Session) Close() {
	s.Post(s.onPostClose)
}

// Post schedules op on the session strand. Operations run in post order,
// serialized with the hooks. Posts after the session terminated are dropped.
func (s *Session) Post(op func()) {
	select {
	case <-s.done:
		return
	default:
	}
	s.mu.Lock()
	s.queue = append(s.queue, op)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is the strand: it drains posted operations in FIFO order until the
// session terminates.
func (s *Session) loop() {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			op := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			op()
			select {
			case <-s.done:
				return
			default:
			}
		}
	}
}

func (s *Session) onPostRun() {
	if s.open >= 0 || s.closed >= 0 {
		return
	}
	s.open = 0
	if !s.hooks.OnHandshake(s.header) {
		s.onPostClose()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel
	s.dialing = true
	go s.dial(ctx)
}

func (s *Session) dial(ctx context.Context) {
	d := s.dialer
	if d == nil {
		u, err := url.Parse(s.rawURL)
		if err != nil {
			s.Post(func() { s.onDialDone(nil, nil, err) })
			return
		}
		cfg := s.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: u.Hostname()}
		}
		d = &websocket.Dialer{
			NetDialContext:   (&net.Dialer{Timeout: defaultHandshakeTimeout}).DialContext,
			HandshakeTimeout: defaultHandshakeTimeout,
			TLSClientConfig:  cfg,
		}
	}
	conn, resp, err := d.DialContext(ctx, s.rawURL, s.header)
	s.Post(func() { s.onDialDone(conn, resp, err) })
}

func (s *Session) onDialDone(conn *websocket.Conn, resp *http.Response, err error) {
	s.dialing = false
	if s.closed >= 0 {
		if conn != nil {
			conn.Close()
		}
		if s.closed == 0 {
			s.onDisconnect()
		}
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.hooks.OnError(err)
		}
		s.onPostClose()
		return
	}
	s.conn = conn
	s.hooks.OnOpen(resp)
	s.open = 1
	if s.pingInterval > 0 {
		idle := 2*s.pingInterval + s.pingInterval/2
		conn.SetReadDeadline(time.Now().Add(idle))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(idle))
		})
		go s.pingLoop(conn)
	}
	go s.readLoop(conn)
	s.startWrite()
}

func (s *Session) onPostSend(data []byte) {
	if s.open < 0 || s.closed >= 0 {
		return
	}
	s.sendQ = append(s.sendQ, data)
	if s.open > 0 && !s.writing {
		s.startWrite()
	}
}

// startWrite launches the next queued write. At most one write is in flight;
// completions chain back through onWrite until the queue drains.
func (s *Session) startWrite() {
	if s.writing || len(s.sendQ) == 0 || s.conn == nil {
		return
	}
	s.writing = true
	msg := s.sendQ[0]
	conn := s.conn
	go func() {
		err := conn.WriteMessage(websocket.BinaryMessage, msg)
		s.Post(func() { s.onWrite(err) })
	}()
}

func (s *Session) onWrite(err error) {
	s.writing = false
	if err != nil {
		if s.closed < 0 {
			s.hooks.OnError(err)
			s.onPostClose()
		}
		return
	}
	s.sendQ = s.sendQ[1:]
	if s.closed < 0 {
		s.startWrite()
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer close(s.readDone)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.Post(func() { s.onReadError(err) })
			return
		}
		s.Post(func() { s.onRead(data) })
	}
}

func (s *Session) onRead(data []byte) {
	if s.closed >= 0 {
		return
	}
	slog.Debug("wsio: message received", "len", len(data))
	s.hooks.OnMessage(data)
}

func (s *Session) onReadError(err error) {
	if s.closed >= 0 {
		return
	}
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.hooks.OnError(err)
	}
	s.onPostClose()
}

func (s *Session) pingLoop(conn *websocket.Conn) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			deadline := time.Now().Add(s.pingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) onPostClose() {
	if s.closed >= 0 {
		return
	}
	s.closed = 0
	if s.dialCancel != nil {
		s.dialCancel()
	}
	switch {
	case s.conn != nil:
		go s.closeConn(s.conn)
	case s.dialing:
		// onDialDone finishes the close.
	default:
		s.onDisconnect()
	}
}

// closeConn runs the close handshake: send a close frame, give the peer a
// chance to respond (the read loop exits once it does), then drop the
// connection.
func (s *Session) closeConn(conn *websocket.Conn) {
	deadline := time.Now().Add(defaultCloseTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, deadline)
	select {
	case <-s.readDone:
	case <-time.After(defaultCloseTimeout):
	}
	conn.Close()
	s.Post(s.onDisconnect)
}

func (s *Session) onDisconnect() {
	if s.closed != 0 {
		return
	}
	s.hooks.OnClose()
	s.closed = 1
	close(s.done)
}

package wsio

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Accept upgrades an incoming HTTP request to a WebSocket session. The hooks'
// OnHandshake is invoked with the request headers before the upgrade;
// returning false rejects the request with 403. On success the returned
// session is already open: OnOpen(nil) is delivered on the strand, followed
// by inbound messages.
//
// Accepted sessions do not send keepalive pings; they answer the peer's.
func Accept(w http.ResponseWriter, r *http.Request, hooks Hooks, opts ...Option) (*Session, error) {
	s := &Session{
		hooks:  hooks,
		header: r.Header,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		open:     0,
		closed:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !hooks.OnHandshake(r.Header) {
		http.Error(w, "handshake rejected", http.StatusForbidden)
		return nil, ErrHandshakeRejected
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.open = 1
	s.Post(func() { s.hooks.OnOpen(nil) })
	go s.loop()
	go s.readLoop(conn)
	return s, nil
}

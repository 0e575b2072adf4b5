package wsio_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/volctts/pkg/wsio"
)

// hookRec records session callbacks on channels.
type hookRec struct {
	handshakeFn func(http.Header) bool
	open        chan *http.Response
	msgs        chan []byte
	closed      chan struct{}
	errs        chan error
}

func newHookRec() *hookRec {
	return &hookRec{
		open:   make(chan *http.Response, 1),
		msgs:   make(chan []byte, 1024),
		closed: make(chan struct{}),
		errs:   make(chan error, 16),
	}
}

func (h *hookRec) OnHandshake(header http.Header) bool {
	if h.handshakeFn != nil {
		return h.handshakeFn(header)
	}
	return true
}

func (h *hookRec) OnOpen(resp *http.Response) { h.open <- resp }
func (h *hookRec) OnMessage(data []byte)      { h.msgs <- data }
func (h *hookRec) OnClose()                   { close(h.closed) }
func (h *hookRec) OnError(err error)          { h.errs <- err }

func waitClosed(t *testing.T, h *hookRec) {
	t.Helper()
	select {
	case <-h.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for OnClose")
	}
}

// echoHooks echoes every inbound message back on its own session.
type echoHooks struct {
	mu      sync.Mutex
	sess    *wsio.Session
	pending [][]byte
}

func (h *echoHooks) setSession(s *wsio.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = s
	for _, msg := range h.pending {
		s.Send(msg)
	}
	h.pending = nil
}

func (h *echoHooks) OnHandshake(http.Header) bool { return true }
func (h *echoHooks) OnOpen(*http.Response)        {}
func (h *echoHooks) OnClose()                     {}
func (h *echoHooks) OnError(error)                {}

func (h *echoHooks) OnMessage(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess == nil {
		h.pending = append(h.pending, data)
		return
	}
	h.sess.Send(data)
}

// newEchoServer runs an Accept-based echo WebSocket server.
func newEchoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &echoHooks{}
		s, err := wsio.Accept(w, r, h)
		if err != nil {
			return
		}
		h.setSession(s)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSession_Echo(t *testing.T) {
	url := newEchoServer(t)
	h := newHookRec()
	s := wsio.NewSession(url, nil, h)
	s.Run()

	select {
	case <-h.open:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for OnOpen")
	}

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three"), {0x00, 0xff}, {}}
	for _, msg := range want {
		s.Send(msg)
	}
	for i, w := range want {
		select {
		case got := <-h.msgs:
			if !bytes.Equal(got, w) {
				t.Errorf("echo %d = %q, want %q", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for echo %d", i)
		}
	}

	s.Close()
	waitClosed(t, h)
	select {
	case err := <-h.errs:
		t.Errorf("unexpected error: %v", err)
	default:
	}
}

func TestSession_SendBeforeOpenIsBuffered(t *testing.T) {
	url := newEchoServer(t)
	h := newHookRec()
	s := wsio.NewSession(url, nil, h)

	s.Run()
	s.Send([]byte("early"))

	select {
	case got := <-h.msgs:
		if string(got) != "early" {
			t.Errorf("echo = %q, want early", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for buffered send echo")
	}
	s.Close()
	waitClosed(t, h)
}

func TestSession_HandshakeHeaderInjection(t *testing.T) {
	var mu sync.Mutex
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHeader = r.Header.Get("X-Test-Token")
		mu.Unlock()
		h := &echoHooks{}
		s, err := wsio.Accept(w, r, h)
		if err != nil {
			return
		}
		h.setSession(s)
	}))
	defer srv.Close()

	h := newHookRec()
	h.handshakeFn = func(header http.Header) bool {
		header.Set("X-Test-Token", "secret")
		return true
	}
	s := wsio.NewSession("ws"+strings.TrimPrefix(srv.URL, "http"), nil, h)
	s.Run()

	select {
	case <-h.open:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for OnOpen")
	}
	mu.Lock()
	defer mu.Unlock()
	if gotHeader != "secret" {
		t.Errorf("server saw X-Test-Token = %q, want secret", gotHeader)
	}
	s.Close()
	waitClosed(t, h)
}

func TestSession_HandshakeAbort(t *testing.T) {
	url := newEchoServer(t)
	h := newHookRec()
	h.handshakeFn = func(http.Header) bool { return false }
	s := wsio.NewSession(url, nil, h)
	s.Run()

	waitClosed(t, h)
	select {
	case <-h.open:
		t.Error("OnOpen after aborted handshake")
	default:
	}
	select {
	case err := <-h.errs:
		t.Errorf("unexpected error: %v", err)
	default:
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	url := newEchoServer(t)
	h := newHookRec()
	s := wsio.NewSession(url, nil, h)
	s.Run()

	select {
	case <-h.open:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for OnOpen")
	}

	s.Close()
	s.Close()
	waitClosed(t, h)

	// terminated 后 Send / Run 均为空操作
	s.Send([]byte("late"))
	s.Run()
	time.Sleep(50 * time.Millisecond)
}

func TestSession_CloseBeforeRun(t *testing.T) {
	h := newHookRec()
	s := wsio.NewSession("ws://127.0.0.1:1/nowhere", nil, h)
	s.Close()
	waitClosed(t, h)

	s.Run()
	time.Sleep(50 * time.Millisecond)
	select {
	case <-h.open:
		t.Error("OnOpen after close")
	case err := <-h.errs:
		t.Errorf("unexpected error: %v", err)
	default:
	}
}

func TestSession_DialFailure(t *testing.T) {
	h := newHookRec()
	s := wsio.NewSession("ws://127.0.0.1:1/nowhere", nil, h)
	s.Run()

	select {
	case <-h.errs:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for dial error")
	}
	waitClosed(t, h)
}

func TestSession_ServerInitiatedClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &echoHooks{}
		s, err := wsio.Accept(w, r, h)
		if err != nil {
			return
		}
		h.setSession(s)
		go func() {
			time.Sleep(50 * time.Millisecond)
			s.Close()
		}()
	}))
	defer srv.Close()

	h := newHookRec()
	s := wsio.NewSession("ws"+strings.TrimPrefix(srv.URL, "http"), nil, h)
	s.Run()

	select {
	case <-h.open:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for OnOpen")
	}
	waitClosed(t, h)
	select {
	case err := <-h.errs:
		t.Errorf("clean peer close reported as error: %v", err)
	default:
	}
}

func TestAccept_Reject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &echoHooks{}
		_, err := wsio.Accept(w, r, rejectHooks{h})
		if err != wsio.ErrHandshakeRejected {
			t.Errorf("Accept err = %v, want ErrHandshakeRejected", err)
		}
	}))
	defer srv.Close()

	h := newHookRec()
	s := wsio.NewSession("ws"+strings.TrimPrefix(srv.URL, "http"), nil, h)
	s.Run()

	select {
	case <-h.errs:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for rejected dial error")
	}
	waitClosed(t, h)
}

// rejectHooks refuses every handshake.
type rejectHooks struct{ *echoHooks }

func (rejectHooks) OnHandshake(http.Header) bool { return false }

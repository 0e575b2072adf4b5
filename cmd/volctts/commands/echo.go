package commands

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	"github.com/haivivi/volctts/pkg/wsio"
)

var echoAddr string

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run an echo WebSocket server",
	Long: `Run a WebSocket server that echoes every message back to its sender.

Useful for exercising the transport layer without the TTS service.

Example:
  volctts echo --addr :8080
  # connect to ws://localhost:8080/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			h := &echoHooks{remote: r.RemoteAddr}
			s, err := wsio.Accept(w, r, h)
			if err != nil {
				slog.Warn("echo: accept failed", "remote", r.RemoteAddr, "err", err)
				return
			}
			h.setSession(s)
		})
		slog.Info("echo: listening", "addr", echoAddr)
		return http.ListenAndServe(echoAddr, mux)
	},
}

// echoHooks echoes every inbound message back on its own session.
type echoHooks struct {
	remote string

	mu      sync.Mutex
	sess    *wsio.Session
	pending [][]byte
}

// setSession wires the accepted session in and flushes messages that arrived
// before it was known.
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

func (h *echoHooks) OnOpen(*http.Response) {
	slog.Info("echo: session open", "remote", h.remote)
}

func (h *echoHooks) OnMessage(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess == nil {
		h.pending = append(h.pending, data)
		return
	}
	h.sess.Send(data)
}

func (h *echoHooks) OnClose() {
	slog.Info("echo: session closed", "remote", h.remote)
}

func (h *echoHooks) OnError(err error) {
	slog.Warn("echo: session error", "remote", h.remote, "err", err)
}

func init() {
	echoCmd.Flags().StringVar(&echoAddr, "addr", ":8080", "listen address")
}

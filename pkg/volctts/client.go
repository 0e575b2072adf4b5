package volctts

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/haivivi/volctts/pkg/wsio"
)

const (
	// DefaultEndpoint 火山引擎双向 TTS WebSocket 端点
	DefaultEndpoint = "wss://openspeech.bytedance.com:443/api/v3/tts/bidirection"
)

// 连接状态机
//
// 带 * 的为瞬态，等待特定服务端事件或 I/O 完成后离开。
const (
	stateInit          = iota // 0
	stateConnecting           // 1 *
	stateConnected            // 2
	stateCreating             // 3 *
	stateSessionReady         // 4
	stateDeleting             // 5 *
	stateDisconnecting        // 6 *
	stateClosed               // 7
)

// Request 用户意图
//
// 字段语义:
//   - SessionID 非空、Text 非空: 向会话追加一段文本；若当前活跃会话不同则先结束
//     旧会话，若无活跃会话则以 Speaker 新建。
//   - SessionID 非空、Text 为空: 仅确保会话已建立，Speaker 作为其音色。
//   - SessionID 为空: 哨兵，结束当前活跃会话（若有）。
type Request struct {
	// SessionID 客户端选定的逻辑会话 ID
	SessionID string

	// Text 待合成文本分片
	Text string

	// Speaker 音色（服务端声音模型名），会话建立时绑定
	Speaker string
}

// Option 客户端配置选项
type Option func(*Client)

// WithEndpoint 覆盖 WebSocket 端点
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithConnectID 覆盖自动生成的 X-Api-Connect-Id
func WithConnectID(id string) Option {
	return func(c *Client) { c.connectID = id }
}

// WithSessionOptions 传递底层 wsio 会话选项
func WithSessionOptions(opts ...wsio.Option) Option {
	return func(c *Client) { c.sessOpts = opts }
}

// Client 火山引擎双向 TTS 客户端
//
// 驱动一条 TLS + WebSocket 连接上的多会话控制面状态机。状态只在底层会话
// strand 上变更，所有回调按序触发。
type Client struct {
	appID      string
	accessKey  string
	resourceID string
	cb         Callback

	endpoint  string
	connectID string
	sessOpts  []wsio.Option

	sess *wsio.Session

	// 以下字段仅在 strand 上修改；除 LogID 读取 logID 外也仅在 strand 上读取
	state          int
	serverConnID   string
	logID          string
	currentSession string
	currentSpeaker string
	pending        []Request
}

// NewClient 创建双向 TTS 客户端
//
// appID / accessKey / resourceID 来自火山引擎控制台；cb 接收全部用户可见事件。
// 创建后调用 Run 发起连接。
func NewClient(appID, accessKey, resourceID string, cb Callback, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		accessKey:  accessKey,
		resourceID: resourceID,
		cb:         cb,
		endpoint:   DefaultEndpoint,
		connectID:  uuid.New().String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess = wsio.NewSession(c.endpoint, nil, hooks{c}, c.sessOpts...)
	return c
}

// LogID 返回服务端诊断日志 ID（响应头 X-Tt-Logid），握手完成后可用
func (c *Client) LogID() string {
	return c.logID
}

// Run 发起连接，仅在初始状态有效，重复调用为空操作
func (c *Client) Run() {
	c.sess.Post(func() {
		if c.state != stateInit {
			return
		}
		c.state = stateConnecting
		c.sess.Run()
	})
}

// Request 追加一个用户意图并调度处理，连接关闭后为空操作
func (c *Client) Request(req Request) {
	c.sess.Post(func() {
		if c.state >= stateDisconnecting {
			return
		}
		c.pending = append(c.pending, req)
		c.processNext()
	})
}

// Close 强制断开，任意非终态下合法，幂等
func (c *Client) Close() {
	c.sess.Post(c.forceClose)
}

// ================== wsio 钩子 ==================

// hooks 把底层会话事件注入状态机
type hooks struct {
	c *Client
}

func (h hooks) OnHandshake(header http.Header) bool {
	header.Set("X-Api-App-Key", h.c.appID)
	header.Set("X-Api-Access-Key", h.c.accessKey)
	header.Set("X-Api-Resource-Id", h.c.resourceID)
	header.Set("X-Api-Connect-Id", h.c.connectID)
	return true
}

func (h hooks) OnOpen(resp *http.Response) {
	c := h.c
	if resp != nil {
		c.logID = resp.Header.Get("X-Tt-Logid")
	}
	slog.Debug("volctts: websocket open", "log_id", c.logID)
	c.sendFrame(&message{
		msgType: msgTypeFullClient,
		flags:   msgFlagWithEvent,
		event:   eventStartConnection,
		payload: emptyPayload,
	})
}

func (h hooks) OnMessage(data []byte) {
	c := h.c
	msg, err := unmarshal(data)
	if err != nil {
		c.fatal(err)
		return
	}
	c.dispatch(msg)
}

func (h hooks) OnClose() {
	c := h.c
	c.state = stateClosed
	c.emit(&Event{Type: EventClose, ConnectID: c.serverConnID})
}

func (h hooks) OnError(err error) {
	c := h.c
	if c.state == stateClosed {
		return
	}
	c.emit(&Event{Type: EventError, Err: &Error{Kind: classify(err), LogID: c.logID, Err: err}})
	if c.state < stateDisconnecting {
		c.state = stateDisconnecting
	}
}

// ================== 状态机 ==================

// dispatch 处理一条服务端帧
func (c *Client) dispatch(msg *message) {
	if c.state == stateClosed {
		return
	}

	slog.Debug("volctts: frame received",
		"type", byte(msg.msgType), "event", msg.event, "session", msg.sessionID)

	// Error 类型帧: 致命
	if msg.isError() {
		c.fatal(&Error{Kind: KindProtocol, Code: msg.errorCode, LogID: c.logID,
			Message: string(msg.payload)})
		return
	}

	if msg.flags != msgFlagWithEvent {
		return
	}

	// 服务端致命事件
	switch msg.event {
	case eventConnectionFailed, eventConnectionFinished, eventSessionFailed:
		c.fatal(&Error{Kind: KindProtocol, LogID: c.logID, Message: string(msg.payload)})
		return
	}

	active := c.state >= stateConnected && c.state < stateDisconnecting

	switch {
	case msg.msgType == msgTypeFullServer && msg.event == eventConnectionStarted:
		if c.state != stateConnecting {
			return
		}
		c.serverConnID = msg.connectID
		c.state = stateConnected
		c.emit(&Event{Type: EventOpen, ConnectID: msg.connectID, Payload: msg.payload})
		c.processNext()

	case msg.msgType == msgTypeFullServer && msg.event == eventSessionStarted:
		if !active {
			return
		}
		c.state = stateSessionReady
		c.emit(&Event{Type: EventSessionStarted, SessionID: msg.sessionID, Payload: msg.payload})
		c.processNext()

	case msg.msgType == msgTypeFullServer && msg.event == eventSessionFinished:
		if !active {
			return
		}
		c.currentSession = ""
		c.currentSpeaker = ""
		c.state = stateConnected
		c.emit(&Event{Type: EventSessionFinished, SessionID: msg.sessionID, Payload: msg.payload})
		c.processNext()

	case msg.msgType == msgTypeFullServer && msg.event == eventTTSSentenceStart:
		if !active {
			return
		}
		var sentence struct {
			Text string `json:"text"`
		}
		json.Unmarshal(msg.payload, &sentence)
		c.emit(&Event{Type: EventSentence, SessionID: msg.sessionID, Text: sentence.Text})

	case msg.isAudio() && msg.event == eventTTSResponse:
		if !active {
			return
		}
		c.emit(&Event{Type: EventAudio, SessionID: msg.sessionID, Audio: msg.payload})

	default:
		// 未知事件透传忽略，保持前向兼容
	}
}

// processNext 从队首推导下一条线控动作
//
// 仅在状态 2 / 4 下消费队列；瞬态下请求积压，等服务端事件到达后重新审视队首。
func (c *Client) processNext() {
	for len(c.pending) > 0 && (c.state == stateConnected || c.state == stateSessionReady) {
		head := c.pending[0]

		if c.state == stateConnected {
			if head.SessionID != "" {
				c.sendStartSession(head.SessionID, head.Speaker)
				c.currentSession = head.SessionID
				c.currentSpeaker = head.Speaker
				c.state = stateCreating
				if head.Text == "" {
					c.pop()
				}
				// Text 非空时保留队首，SessionStarted 到达后再发送文本
			} else {
				// 无活跃会话时的哨兵，丢弃
				c.pop()
			}
			continue
		}

		// stateSessionReady
		if head.SessionID != c.currentSession {
			if c.currentSession != "" {
				c.sendFinishSession(c.currentSession)
				c.state = stateDeleting
			}
			if head.SessionID == "" {
				c.pop()
			}
		} else {
			if head.Text != "" {
				c.sendTaskRequest(c.currentSession, c.currentSpeaker, head.Text)
			}
			c.pop()
		}
	}
}

func (c *Client) pop() {
	c.pending = c.pending[1:]
}

// fatal 上抛错误并强制关闭
func (c *Client) fatal(err error) {
	if c.state >= stateDisconnecting {
		return
	}
	if _, ok := AsError(err); !ok {
		err = &Error{Kind: KindProtocol, LogID: c.logID, Err: err}
	}
	c.emit(&Event{Type: EventError, Err: err})
	c.forceClose()
}

// forceClose 进入断开态并发起 WebSocket 关闭握手
func (c *Client) forceClose() {
	if c.state >= stateDisconnecting {
		return
	}
	c.state = stateDisconnecting
	c.sess.Close()
}

func (c *Client) emit(ev *Event) {
	if c.cb != nil {
		c.cb(ev)
	}
}

// ================== 线控帧 ==================

func (c *Client) sendFrame(msg *message) {
	data, err := msg.marshal()
	if err != nil {
		c.fatal(err)
		return
	}
	slog.Debug("volctts: frame sent", "event", msg.event, "session", msg.sessionID)
	c.sess.Send(data)
}

func (c *Client) sendStartSession(sessionID, speaker string) {
	c.sendFrame(&message{
		msgType:   msgTypeFullClient,
		flags:     msgFlagWithEvent,
		event:     eventStartSession,
		sessionID: sessionID,
		payload:   buildSessionPayload(eventStartSession, speaker, ""),
	})
}

func (c *Client) sendTaskRequest(sessionID, speaker, text string) {
	c.sendFrame(&message{
		msgType:   msgTypeFullClient,
		flags:     msgFlagWithEvent,
		event:     eventTaskRequest,
		sessionID: sessionID,
		payload:   buildSessionPayload(eventTaskRequest, speaker, text),
	})
}

func (c *Client) sendFinishSession(sessionID string) {
	c.sendFrame(&message{
		msgType:   msgTypeFullClient,
		flags:     msgFlagWithEvent,
		event:     eventFinishSession,
		sessionID: sessionID,
		payload:   emptyPayload,
	})
}

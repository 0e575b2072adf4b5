package volctts

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ================== 协议常量 ==================

type messageType byte
type messageFlags byte

const (
	protocolVersion byte = 0b0001

	// Message Types
	msgTypeFullClient      messageType = 0b0001
	msgTypeAudioOnlyClient messageType = 0b0010
	msgTypeFullServer      messageType = 0b1001
	msgTypeAudioOnlyServer messageType = 0b1011
	msgTypeFrontEndResult  messageType = 0b1100
	msgTypeError           messageType = 0b1111

	// Message Type Specific Flags
	msgFlagNoSeq     messageFlags = 0b0000
	msgFlagPosSeq    messageFlags = 0b0001
	msgFlagLastNoSeq messageFlags = 0b0010
	msgFlagNegSeq    messageFlags = 0b0011
	msgFlagWithEvent messageFlags = 0b0100

	// Serialization / Compression (固定 JSON、无压缩)
	serializationJSON byte = 0b0001
	compressionNone   byte = 0b0000
)

// 协议事件
const (
	eventNone               int32 = 0
	eventStartConnection    int32 = 1
	eventFinishConnection   int32 = 2
	eventConnectionStarted  int32 = 50
	eventConnectionFailed   int32 = 51
	eventConnectionFinished int32 = 52
	eventStartSession       int32 = 100
	eventFinishSession      int32 = 102
	eventSessionStarted     int32 = 150
	eventSessionFinished    int32 = 152
	eventSessionFailed      int32 = 153
	eventTaskRequest        int32 = 200
	eventTTSSentenceStart   int32 = 350
	eventTTSSentenceEnd     int32 = 351
	eventTTSResponse        int32 = 352
)

// ================== 协议结构 ==================

// message 双向 TTS 二进制协议消息
//
// 帧格式（所有整数大端序）:
//   - Header (4 bytes):
//     (4bits) version + (4bits) header_size     — 固定 0x11
//     (4bits) message_type + (4bits) flags
//     (4bits) serialization + (4bits) compression — 固定 0x10 (JSON, 无压缩)
//     (8bits) reserved
//   - [optional] error_code (4 bytes)            — 仅 msgTypeError
//   - [optional] event (4 bytes)                 — 仅 msgFlagWithEvent
//   - [optional] session_id (4 bytes len + data) — 事件为会话级时
//   - [optional] connect_id (4 bytes len + data) — 事件为连接级服务端事件时
//   - payload (4 bytes len + data)
type message struct {
	msgType   messageType
	flags     messageFlags
	event     int32
	errorCode uint32
	sessionID string
	connectID string
	payload   []byte
}

// connectionEvent 连接级事件不携带 session_id
func connectionEvent(event int32) bool {
	switch event {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

// connectIDEvent 连接级服务端事件携带 connect_id
func connectIDEvent(event int32) bool {
	switch event {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

// marshal 序列化消息
//
// 只写出该消息 type/flags/event 要求的字段。携带 msgFlagWithEvent 却未设置
// event 属于调用方错误。
func (msg *message) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)

	// Header (4 bytes)
	buf.WriteByte(protocolVersion<<4 | 0x01)
	buf.WriteByte(byte(msg.msgType)<<4 | byte(msg.flags))
	buf.WriteByte(serializationJSON<<4 | compressionNone)
	buf.WriteByte(0x00) // reserved

	// Error code
	if msg.msgType == msgTypeError {
		binary.Write(buf, binary.BigEndian, msg.errorCode)
	}

	// Event
	if msg.flags == msgFlagWithEvent {
		if msg.event == eventNone {
			return nil, fmt.Errorf("volctts: marshal: flags carry an event but none is set")
		}
		binary.Write(buf, binary.BigEndian, msg.event)

		if !connectionEvent(msg.event) {
			writeLPString(buf, []byte(msg.sessionID))
		}
		if connectIDEvent(msg.event) {
			writeLPString(buf, []byte(msg.connectID))
		}
	}

	// Payload
	writeLPString(buf, msg.payload)

	return buf.Bytes(), nil
}

// unmarshal 反序列化消息
//
// 长度安全: 任何字段被截断都返回 Kind 为 KindMalformed 的 *Error，绝不读越界。未知的
// message_type / event 原样透传。
func unmarshal(data []byte) (*message, error) {
	r := frameReader{data: data}

	// Header
	hdr, err := r.bytes(4, "header")
	if err != nil {
		return nil, err
	}
	msg := &message{
		msgType: messageType(hdr[1] >> 4),
		flags:   messageFlags(hdr[1] & 0x0f),
	}

	// 多余的 header 32-bit words 跳过
	if extra := int(hdr[0]&0x0f) - 1; extra > 0 {
		if _, err := r.bytes(extra*4, "extended header"); err != nil {
			return nil, err
		}
	}

	// Error code
	if msg.msgType == msgTypeError {
		ec, err := r.uint32("error code")
		if err != nil {
			return nil, err
		}
		msg.errorCode = ec
	}

	// Event
	if msg.flags == msgFlagWithEvent {
		ev, err := r.uint32("event")
		if err != nil {
			return nil, err
		}
		msg.event = int32(ev)

		if !connectionEvent(msg.event) {
			id, err := r.lpString("session id")
			if err != nil {
				return nil, err
			}
			msg.sessionID = string(id)
		}
		if connectIDEvent(msg.event) {
			id, err := r.lpString("connect id")
			if err != nil {
				return nil, err
			}
			msg.connectID = string(id)
		}
	}

	// Payload
	payload, err := r.lpString("payload")
	if err != nil {
		return nil, err
	}
	msg.payload = payload

	return msg, nil
}

// isAudio 是否为服务端音频消息
func (msg *message) isAudio() bool {
	return msg.msgType == msgTypeAudioOnlyServer
}

// isError 是否为错误消息
func (msg *message) isError() bool {
	return msg.msgType == msgTypeError
}

// ================== 读写辅助 ==================

// writeLPString 写入 4 字节大端长度前缀的字符串
func writeLPString(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

// frameReader 带边界检查的帧读取器
type frameReader struct {
	data []byte
	pos  int
}

func (r *frameReader) bytes(n int, field string) ([]byte, error) {
	if n < 0 || len(r.data)-r.pos < n {
		return nil, malformedFrame(field)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *frameReader) uint32(field string) (uint32, error) {
	b, err := r.bytes(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *frameReader) lpString(field string) ([]byte, error) {
	n, err := r.uint32(field + " length")
	if err != nil {
		return nil, err
	}
	if uint64(len(r.data)-r.pos) < uint64(n) {
		return nil, malformedFrame(field)
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

package volctts

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	// KindTransport 解析地址 / 连接 / 握手 / 读写失败
	KindTransport ErrorKind = iota
	// KindTLS 证书校验或 SNI 失败
	KindTLS
	// KindMalformed 帧长度前缀不一致或字段被截断
	KindMalformed
	// KindProtocol 服务端致命事件或 Error 类型帧
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTLS:
		return "tls"
	case KindMalformed:
		return "malformed frame"
	case KindProtocol:
		return "protocol"
	}
	return "unknown"
}

// Error 双向 TTS 客户端错误
//
// 所有非调用方错误都通过唯一的 error 事件回调上抛，随后连接强制关闭。
type Error struct {
	// Kind 错误分类
	Kind ErrorKind

	// Code 服务端错误码（仅 Error 类型帧）
	Code uint32

	// Message 错误消息
	Message string

	// LogID 诊断日志 ID（从响应头 X-Tt-Logid 获取）
	LogID string

	// Err 底层错误
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("volctts: %s: %s (code=%d)", e.Kind, msg, e.Code)
	}
	return fmt.Sprintf("volctts: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError 尝试将 error 转换为 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// malformedFrame 构造帧解析错误
func malformedFrame(field string) error {
	return &Error{
		Kind:    KindMalformed,
		Message: fmt.Sprintf("no enough %s bytes", field),
	}
}

// classify 将底层 I/O 错误归类为 TLS 或传输错误
func classify(err error) ErrorKind {
	var (
		certErr   x509.CertificateInvalidError
		authErr   x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		recordErr tls.RecordHeaderError
		verifyErr *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &certErr),
		errors.As(err, &authErr),
		errors.As(err, &hostErr),
		errors.As(err, &recordErr),
		errors.As(err, &verifyErr):
		return KindTLS
	}
	return KindTransport
}

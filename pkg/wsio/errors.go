package wsio

import "errors"

// ErrHandshakeRejected is returned by Accept when the hooks' OnHandshake
// callback refuses the incoming upgrade request.
var ErrHandshakeRejected = errors.New("wsio: handshake rejected")

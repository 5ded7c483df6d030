// One long-lived goroutine per remote peer, reading frames off that peer's
// connection and dispatching them, with connection failure folded into an ordinary
// terminal event rather than a propagated error.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import (
	"io"

	"github.com/NVIDIA/rankmesh/cmn/cos"
	"github.com/NVIDIA/rankmesh/cmn/nlog"
	"github.com/NVIDIA/rankmesh/wire"
)

// receiver is the task bound to one remote peer: it owns that peer's
// reader end exclusively and is the sole writer into that peer's Inbox.
type receiver struct {
	peer     int
	conn     io.Reader
	inbox    *Inbox
	compress bool
}

// run decodes frames until the connection ends, dispatching CLOSE/REQUEST/MESSAGE
// into the bound inbox. Any decode error — short read, EOF, malformed REQUEST
// payload — is treated the same as an explicit CLOSE: the peer is gone. classify
// only picks the log line; it never changes that outcome.
func (rv *receiver) run() error {
	for {
		frame, err := wire.Decode(rv.conn, rv.compress)
		if err != nil {
			rv.classify(err)
			rv.inbox.close()
			return nil
		}

		switch frame.Header.Tag {
		case wire.TagClose:
			rv.inbox.close()
			return nil

		case wire.TagRequest:
			tag, size, err := wire.DecodeRequest(frame.Payload)
			if err != nil {
				rv.inbox.close()
				return nil
			}
			rv.inbox.saveRequest(tag, int(size))

		default:
			rv.inbox.saveMessage(frame.Header.Tag, frame.Payload)
		}
	}
}

// classify reports why peer's connection ended, for diagnostics: a reset or broken
// pipe point at an abrupt peer exit, anything else (including plain EOF, the normal
// case after CLOSE) is logged at a lower level.
func (rv *receiver) classify(err error) {
	switch {
	case cos.IsErrConnectionReset(err):
		nlog.Warningf("mesh: peer %d: connection reset: %v", rv.peer, err)
	case cos.IsErrBrokenPipe(err):
		nlog.Warningf("mesh: peer %d: broken pipe: %v", rv.peer, err)
	default:
		nlog.Infof("mesh: peer %d: connection ended: %v", rv.peer, err)
	}
}

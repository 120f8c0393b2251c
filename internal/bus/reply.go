package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"

	"github.com/docloom/docloom/types"
)

// Handler turns one request payload into a reply value. The reply is
// marshalled by the serve loop; returning a struct with a status field is
// the convention.
type Handler func(req []byte) any

// failsafeReply goes out when a handler's reply cannot be encoded, so the
// requester never hangs waiting for a frame.
var failsafeReply = []byte(`{"status":"error","error":"internal encoding failure"}`)

// Replier answers requests one at a time on a bound REP socket.
type Replier struct {
	sock zmq4.Socket
}

func NewReplier(ctx context.Context, port int) (*Replier, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(bindAddr(port)); err != nil {
		return nil, types.E(types.TransportError, fmt.Sprintf("bind rep socket on port %d", port), err)
	}
	return &Replier{sock: sock}, nil
}

// Serve answers requests until ctx ends or the socket closes. A cancelled
// ctx makes Serve return nil; any other socket failure is returned.
func (r *Replier) Serve(ctx context.Context, handle Handler) error {
	for {
		msg, err := r.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return types.E(types.TransportError, "receive request", err)
		}
		reply := marshalReply(handle(msg.Bytes()))
		if err := r.sock.Send(zmq4.NewMsg(reply)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return types.E(types.TransportError, "send reply", err)
		}
	}
}

func (r *Replier) Close() error {
	return r.sock.Close()
}

// Router answers requests on a bound ROUTER socket. The identity envelope
// (all frames before the payload) is echoed back so replies reach the
// requesting peer.
type Router struct {
	sock zmq4.Socket
}

func NewRouter(ctx context.Context, port int) (*Router, error) {
	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen(bindAddr(port)); err != nil {
		return nil, types.E(types.TransportError, fmt.Sprintf("bind router socket on port %d", port), err)
	}
	return &Router{sock: sock}, nil
}

func (r *Router) Serve(ctx context.Context, handle Handler) error {
	for {
		msg, err := r.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return types.E(types.TransportError, "receive routed request", err)
		}
		frames := msg.Frames
		if len(frames) < 2 {
			slog.Warn("dropping routed request without envelope", "frames", len(frames))
			continue
		}
		payload := frames[len(frames)-1]
		reply := marshalReply(handle(payload))
		out := make([][]byte, 0, len(frames))
		out = append(out, frames[:len(frames)-1]...)
		out = append(out, reply)
		if err := r.sock.Send(zmq4.NewMsgFrom(out...)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return types.E(types.TransportError, "send routed reply", err)
		}
	}
}

func (r *Router) Close() error {
	return r.sock.Close()
}

func marshalReply(reply any) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error("encode reply", "error", err)
		return failsafeReply
	}
	return data
}

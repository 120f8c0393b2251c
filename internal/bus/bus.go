// Package bus wraps the ZeroMQ sockets the pipeline daemons talk over.
// Every payload is a single JSON frame; REQ/REP envelopes are handled here
// so callers only ever see payload bytes.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/docloom/docloom/types"
)

func bindAddr(port int) string {
	return fmt.Sprintf("tcp://*:%d", port)
}

// Pusher streams JSON payloads to downstream pullers over a bound PUSH
// socket. Sends block until a puller is connected, which gives the pipeline
// natural backpressure during restarts.
type Pusher struct {
	sock zmq4.Socket
}

func NewPusher(ctx context.Context, port int) (*Pusher, error) {
	sock := zmq4.NewPush(ctx)
	if err := sock.Listen(bindAddr(port)); err != nil {
		return nil, types.E(types.TransportError, fmt.Sprintf("bind push socket on port %d", port), err)
	}
	return &Pusher{sock: sock}, nil
}

// Push encodes v and sends it as one frame.
func (p *Pusher) Push(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return types.E(types.SchemaError, "encode push payload", err)
	}
	if err := p.sock.Send(zmq4.NewMsg(data)); err != nil {
		return types.E(types.TransportError, "send push payload", err)
	}
	return nil
}

func (p *Pusher) Close() error {
	return p.sock.Close()
}

// Puller receives JSON payloads from an upstream pusher over a connected
// PULL socket.
type Puller struct {
	sock zmq4.Socket
}

func NewPuller(ctx context.Context, endpoint string) (*Puller, error) {
	sock := zmq4.NewPull(ctx)
	if err := sock.Dial(endpoint); err != nil {
		return nil, types.E(types.TransportError, fmt.Sprintf("dial %s", endpoint), err)
	}
	return &Puller{sock: sock}, nil
}

// Pull blocks for the next payload and decodes it into v. A decode failure
// is a SchemaError; the frame is consumed either way.
func (p *Puller) Pull(v any) error {
	msg, err := p.sock.Recv()
	if err != nil {
		return types.E(types.TransportError, "receive payload", err)
	}
	if err := json.Unmarshal(msg.Bytes(), v); err != nil {
		return types.E(types.SchemaError, "decode payload", err)
	}
	return nil
}

func (p *Puller) Close() error {
	return p.sock.Close()
}

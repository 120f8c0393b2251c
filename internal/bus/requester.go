package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/docloom/docloom/types"
)

// Requester is a REQ client with a per-call deadline. REQ sockets alternate
// send and receive strictly, so a timed-out call leaves the socket stuck
// mid-conversation; the requester closes it and redials on the next call,
// discarding any late reply with the old socket.
type Requester struct {
	ctx      context.Context
	endpoint string
	timeout  time.Duration

	mu   sync.Mutex
	sock zmq4.Socket
}

func NewRequester(ctx context.Context, endpoint string, timeout time.Duration) *Requester {
	return &Requester{ctx: ctx, endpoint: endpoint, timeout: timeout}
}

// Request encodes req, sends it, and decodes the reply into reply. Calls
// are serialized; concurrent callers queue on an internal lock.
func (r *Requester) Request(req, reply any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return types.E(types.SchemaError, "encode request", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sock, err := r.socketLocked()
	if err != nil {
		return err
	}

	type result struct {
		msg zmq4.Msg
		err error
	}
	done := make(chan result, 1)
	go func() {
		if err := sock.Send(zmq4.NewMsg(data)); err != nil {
			done <- result{err: fmt.Errorf("send: %w", err)}
			return
		}
		msg, err := sock.Recv()
		if err != nil {
			err = fmt.Errorf("receive: %w", err)
		}
		done <- result{msg: msg, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			r.resetLocked()
			return types.E(types.TransportError, fmt.Sprintf("request to %s", r.endpoint), res.err)
		}
		if err := json.Unmarshal(res.msg.Bytes(), reply); err != nil {
			return types.E(types.SchemaError, fmt.Sprintf("decode reply from %s", r.endpoint), err)
		}
		return nil
	case <-timer.C:
		// Closing the socket unblocks the in-flight Send/Recv goroutine.
		r.resetLocked()
		return types.E(types.TransportError, fmt.Sprintf("request to %s timed out after %s", r.endpoint, r.timeout), nil)
	case <-r.ctx.Done():
		r.resetLocked()
		return types.E(types.TransportError, fmt.Sprintf("request to %s cancelled", r.endpoint), r.ctx.Err())
	}
}

func (r *Requester) socketLocked() (zmq4.Socket, error) {
	if r.sock != nil {
		return r.sock, nil
	}
	sock := zmq4.NewReq(r.ctx)
	if err := sock.Dial(r.endpoint); err != nil {
		return nil, types.E(types.TransportError, fmt.Sprintf("dial %s", r.endpoint), err)
	}
	r.sock = sock
	return sock, nil
}

func (r *Requester) resetLocked() {
	if r.sock != nil {
		_ = r.sock.Close()
		r.sock = nil
	}
}

func (r *Requester) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock == nil {
		return nil
	}
	err := r.sock.Close()
	r.sock = nil
	return err
}

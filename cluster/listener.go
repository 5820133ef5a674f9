package cluster

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/golang/glog"
)

// wsConn is an accepted websocket whose http handler stays parked until the
// coordinator is done with it.
type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// wsListener hands websockets accepted by reduceHandler to the coordinator.
type wsListener struct {
	ch     chan wsConn
	ctx    context.Context
	cancel context.CancelFunc
}

func newWSListener() *wsListener {
	ctx, cancel := context.WithCancel(context.Background())
	return &wsListener{
		ch:     make(chan wsConn),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Accept waits for the next peer connection.
func (l *wsListener) Accept(ctx context.Context) (wsConn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-ctx.Done():
		return wsConn{}, ctx.Err()
	case <-l.ctx.Done():
		return wsConn{}, ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.cancel()
	return nil
}

// reduceHandler upgrades the request and passes the websocket to l.
func reduceHandler(l *wsListener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			glog.Warningf("websocket accept from %s: %v", r.RemoteAddr, err)
			return
		}
		glog.V(2).Infof("peer connected from %s", r.RemoteAddr)

		wc := wsConn{conn: c, done: make(chan struct{})}
		select {
		case l.ch <- wc:
		case <-l.ctx.Done():
			c.Close(websocket.StatusGoingAway, "coordinator closed")
			return
		}

		select {
		case <-wc.done:
		case <-l.ctx.Done():
		}
	}
}

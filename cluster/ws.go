package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/golang/glog"
)

const (
	reducePath = "/reduce"
	closeWait  = 5 * time.Second
)

// Server is the coordinator of a websocket world. It listens for peers and
// combines their buffers in Reduce.
type Server struct {
	size int
	ln   net.Listener
	l    *wsListener
	srv  *http.Server
}

// Serve starts the coordinator of a group of size ranks on addr.
// Use ":0" or "127.0.0.1:0" to pick a free port and read it back with Addr.
func Serve(addr string, size int) (*Server, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: group size %d", ErrRankMismatch, size)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen: %w", err)
	}

	l := newWSListener()
	mux := http.NewServeMux()
	mux.HandleFunc(reducePath, reduceHandler(l))

	s := &Server{
		size: size,
		ln:   ln,
		l:    l,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("coordinator http server: %v", err)
		}
	}()

	glog.V(1).Infof("coordinator listening on %s for %d peers", s.Addr(), size-1)
	return s, nil
}

// Addr is the host:port peers should dial.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Rank() int { return Coordinator }
func (s *Server) Size() int { return s.size }

// Reduce waits for all size-1 peers and folds their buffers into a copy of local.
func (s *Server) Reduce(ctx context.Context, local []byte, op ReduceOp) ([]byte, error) {
	result := append([]byte(nil), local...)
	seen := make(map[int]bool, s.size-1)

	for len(seen) < s.size-1 {
		wc, err := s.l.Accept(ctx)
		if err != nil {
			return nil, fmt.Errorf("accept peer: %w", err)
		}
		err = s.receive(ctx, wc.conn, seen, result, op)
		close(wc.done)
		if err != nil {
			return nil, err
		}
		glog.V(1).Infof("reduce: %d/%d contributions", len(seen)+1, s.size)
	}
	return result, nil
}

// receive takes one contribution from c, folds it into result and acknowledges it.
func (s *Server) receive(ctx context.Context, c *websocket.Conn, seen map[int]bool, result []byte, op ReduceOp) error {
	defer c.CloseNow()
	c.SetReadLimit(readLimit(len(result)))

	var h hello
	if err := readJSON(ctx, c, &h); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	err := check(h.Rank, s.size, seen, h.Length, len(result))
	if err == nil && h.Size != s.size {
		err = fmt.Errorf("%w: rank %d believes the group has %d ranks, not %d", ErrRankMismatch, h.Rank, h.Size, s.size)
	}
	if err != nil {
		reject(ctx, c, h.Rank, err)
		return err
	}

	buf, err := readPayload(ctx, c, h.Length)
	if err != nil {
		reject(ctx, c, h.Rank, err)
		return fmt.Errorf("rank %d: %w", h.Rank, err)
	}
	op(result, buf)
	seen[h.Rank] = true

	if err := writeJSON(ctx, c, ack{OK: true}); err != nil {
		return fmt.Errorf("ack rank %d: %w", h.Rank, err)
	}

	// wait for the peer's close frame so it sees a clean shutdown
	cctx, cancel := context.WithTimeout(ctx, closeWait)
	defer cancel()
	if _, _, err := c.Read(cctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		glog.V(1).Infof("rank %d did not close cleanly: %v", h.Rank, err)
	}
	return nil
}

// reject tells the peer why its contribution was refused.
func reject(ctx context.Context, c *websocket.Conn, rank int, reason error) {
	if err := writeJSON(ctx, c, ack{Error: reason.Error()}); err != nil {
		glog.V(1).Infof("rank %d: send rejection: %v", rank, err)
	}
}

// Close stops accepting peers. Ranks blocked in Reduce fail with ErrClosed.
func (s *Server) Close() error {
	s.l.Close()
	return s.srv.Close()
}

// Peer is a non-coordinator rank of a websocket world.
type Peer struct {
	rank, size int
	conn       *websocket.Conn
	closed     bool
}

const (
	dialAttempts = 25
	dialBackoff  = 200 * time.Millisecond
)

// Dial connects rank to the coordinator at addr, which is either host:port
// or a full ws:// URL. The coordinator may still be starting, so refused
// connections are retried for a few seconds.
func Dial(ctx context.Context, addr string, rank, size int) (*Peer, error) {
	if rank <= Coordinator || rank >= size {
		return nil, fmt.Errorf("%w: rank %d in group of %d", ErrRankMismatch, rank, size)
	}
	url := addr
	if !strings.Contains(url, "://") {
		url = "ws://" + addr + reducePath
	}

	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		var c *websocket.Conn
		c, _, err = websocket.Dial(ctx, url, nil)
		if err == nil {
			glog.V(1).Infof("rank %d connected to %s", rank, url)
			return &Peer{rank: rank, size: size, conn: c}, nil
		}
		glog.V(2).Infof("rank %d dial %s (attempt %d): %v", rank, url, attempt, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return nil, fmt.Errorf("websocket.Dial %s: %w", url, err)
}

func (p *Peer) Rank() int { return p.rank }
func (p *Peer) Size() int { return p.size }

// Reduce sends local to the coordinator and waits for its acknowledgement.
func (p *Peer) Reduce(ctx context.Context, local []byte, op ReduceOp) ([]byte, error) {
	h := hello{Rank: p.rank, Size: p.size, Length: len(local)}
	if err := writeJSON(ctx, p.conn, h); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}
	if err := writePayload(ctx, p.conn, local); err != nil {
		return nil, fmt.Errorf("send payload: %w", err)
	}

	var a ack
	if err := readJSON(ctx, p.conn, &a); err != nil {
		return nil, fmt.Errorf("read ack: %w", err)
	}
	if !a.OK {
		return nil, fmt.Errorf("coordinator rejected rank %d: %s", p.rank, a.Error)
	}
	p.closed = true
	if err := p.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		glog.V(1).Infof("rank %d close: %v", p.rank, err)
	}
	return nil, nil
}

func (p *Peer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.CloseNow()
}

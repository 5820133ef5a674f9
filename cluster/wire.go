package cluster

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/klauspost/compress/zstd"
)

// A contribution on the wire is two messages from the peer, a text hello
// followed by the zstd-compressed buffer, answered by one text ack.

type hello struct {
	Rank   int `json:"rank"`
	Size   int `json:"size"`
	Length int `json:"length"`
}

type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

var (
	encoder = must(zstd.NewWriter(nil))
	decoder = must(zstd.NewReader(nil))
)

// must panics on errors that only invalid options can cause.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func writeJSON(ctx context.Context, c *websocket.Conn, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	return c.Write(ctx, websocket.MessageText, b)
}

func readJSON(ctx context.Context, c *websocket.Conn, v any) error {
	typ, b, err := c.Read(ctx)
	if err != nil {
		return err
	}
	if typ != websocket.MessageText {
		return fmt.Errorf("expected text message for %T, got %v", v, typ)
	}
	if err := sonic.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func writePayload(ctx context.Context, c *websocket.Conn, buf []byte) error {
	return c.Write(ctx, websocket.MessageBinary, encoder.EncodeAll(buf, nil))
}

// readPayload reads one compressed buffer that must decode to exactly n bytes.
func readPayload(ctx context.Context, c *websocket.Conn, n int) ([]byte, error) {
	typ, b, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageBinary {
		return nil, fmt.Errorf("expected binary payload, got %v", typ)
	}
	buf, err := decoder.DecodeAll(b, make([]byte, 0, n))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	if len(buf) != n {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrPayloadSize, len(buf), n)
	}
	return buf, nil
}

// readLimit bounds a single message for buffers of n bytes.
func readLimit(n int) int64 {
	return int64(n) + 1<<16
}

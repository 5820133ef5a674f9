package cluster

import (
	"context"
	"fmt"
	"sync"
)

type contribution struct {
	rank int
	buf  []byte
	done chan error
}

// localWorld is shared by all ranks of one NewLocalWorld call.
type localWorld struct {
	size    int
	inbox   chan contribution
	closing chan struct{}
	once    sync.Once
}

type localComm struct {
	world *localWorld
	rank  int
}

// NewLocalWorld returns size communicators whose ranks are goroutines of
// the calling process. Index i of the result has rank i.
func NewLocalWorld(size int) []Communicator {
	if size < 1 {
		size = 1
	}
	w := &localWorld{
		size:    size,
		inbox:   make(chan contribution),
		closing: make(chan struct{}),
	}
	comms := make([]Communicator, size)
	for r := 0; r < size; r++ {
		comms[r] = &localComm{world: w, rank: r}
	}
	return comms
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.world.size }

func (c *localComm) Reduce(ctx context.Context, local []byte, op ReduceOp) ([]byte, error) {
	if c.rank != Coordinator {
		return nil, c.contribute(ctx, local)
	}

	result := append([]byte(nil), local...)
	seen := make(map[int]bool, c.world.size-1)
	for len(seen) < c.world.size-1 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.world.closing:
			return nil, ErrClosed
		case in := <-c.world.inbox:
			err := check(in.rank, c.world.size, seen, len(in.buf), len(result))
			if err == nil {
				op(result, in.buf)
				seen[in.rank] = true
			}
			in.done <- err
			if err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// contribute hands the buffer to the coordinator and waits until it is folded in.
func (c *localComm) contribute(ctx context.Context, local []byte) error {
	in := contribution{rank: c.rank, buf: local, done: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.world.closing:
		return ErrClosed
	case c.world.inbox <- in:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-in.done:
		return err
	}
}

// Close on the coordinator releases every rank still blocked in Reduce.
// Closing other ranks has no effect on the group.
func (c *localComm) Close() error {
	if c.rank == Coordinator {
		c.world.once.Do(func() { close(c.world.closing) })
	}
	return nil
}

// check validates one incoming contribution against the ranks seen so far.
func check(rank, size int, seen map[int]bool, got, want int) error {
	switch {
	case rank <= Coordinator || rank >= size:
		return fmt.Errorf("%w: rank %d in group of %d", ErrRankMismatch, rank, size)
	case seen[rank]:
		return fmt.Errorf("%w: rank %d contributed twice", ErrRankMismatch, rank)
	case got != want:
		return fmt.Errorf("%w: rank %d sent %d bytes, want %d", ErrPayloadSize, rank, got, want)
	}
	return nil
}

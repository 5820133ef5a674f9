// Package cluster provides the process group used by the distributed strategy:
// every rank knows its number and the group size, and the group can combine
// one byte buffer per rank into a single buffer on the coordinator (rank 0).
//
// Two worlds are available. NewLocalWorld runs ranks as goroutines of one
// process and exchanges buffers over channels. Serve and Dial connect ranks
// living in separate processes over websockets.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Coordinator is the rank that receives the combined buffer.
const Coordinator = 0

// Environment variables read by FromEnv. The launcher sets them for each child.
const (
	EnvRank        = "JULIA_RANK"
	EnvSize        = "JULIA_SIZE"
	EnvCoordinator = "JULIA_COORDINATOR"
)

var (
	ErrRankMismatch = errors.New("rank mismatch")
	ErrPayloadSize  = errors.New("payload size mismatch")
	ErrClosed       = errors.New("communicator closed")
)

// Communicator is one rank's handle on the group.
type Communicator interface {
	Rank() int
	Size() int
	// Reduce is collective: every rank calls it once with a buffer of the
	// same length. The coordinator gets the combined buffer; other ranks
	// get nil once the coordinator has taken their contribution.
	Reduce(ctx context.Context, local []byte, op ReduceOp) ([]byte, error)
	Close() error
}

// ReduceOp folds src into dst elementwise. len(dst) == len(src).
type ReduceOp func(dst, src []byte)

// Max keeps the larger byte. Equal inputs are preserved.
func Max(dst, src []byte) {
	for i, v := range src {
		if v > dst[i] {
			dst[i] = v
		}
	}
}

// KeepRoot ignores contributions and keeps the coordinator's own buffer.
func KeepRoot(dst, src []byte) {}

// Ops maps reduce operation names accepted on the command line.
var Ops = map[string]ReduceOp{
	"max":  Max,
	"root": KeepRoot,
}

// Env describes a rank as seen through the environment.
type Env struct {
	Rank        int
	Size        int
	Coordinator string
}

// LookupEnv reads the rank environment. ok is false when EnvRank is unset,
// meaning the process was not started by a launcher.
func LookupEnv() (env Env, ok bool, err error) {
	r, ok := os.LookupEnv(EnvRank)
	if !ok {
		return Env{}, false, nil
	}
	if env.Rank, err = strconv.Atoi(r); err != nil {
		return Env{}, true, fmt.Errorf("%s: %w", EnvRank, err)
	}
	if env.Size, err = strconv.Atoi(os.Getenv(EnvSize)); err != nil {
		return Env{}, true, fmt.Errorf("%s: %w", EnvSize, err)
	}
	if env.Rank < 0 || env.Rank >= env.Size {
		return Env{}, true, fmt.Errorf("%w: rank %d outside group of %d", ErrRankMismatch, env.Rank, env.Size)
	}
	env.Coordinator = os.Getenv(EnvCoordinator)
	if env.Rank != Coordinator && env.Coordinator == "" {
		return Env{}, true, fmt.Errorf("%s is not set", EnvCoordinator)
	}
	return env, true, nil
}

// Environ returns the variables a launcher passes to the child of the given rank.
func (e Env) Environ() []string {
	return []string{
		EnvRank + "=" + strconv.Itoa(e.Rank),
		EnvSize + "=" + strconv.Itoa(e.Size),
		EnvCoordinator + "=" + e.Coordinator,
	}
}

// FromEnv joins the group described by the environment. Rank 0 listens on
// the coordinator address; other ranks dial it.
func FromEnv(ctx context.Context, env Env) (Communicator, error) {
	if env.Rank == Coordinator {
		return Serve(env.Coordinator, env.Size)
	}
	return Dial(ctx, env.Coordinator, env.Rank, env.Size)
}

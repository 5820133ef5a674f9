package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	julia "github.com/marben/julia_dist"
	"github.com/marben/julia_dist/cluster"
	"github.com/marben/julia_dist/config"
)

// rankCommand returns the command that runs one more rank of this program.
var rankCommand = func(ctx context.Context) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("os.Executable: %w", err)
	}
	return exec.CommandContext(ctx, exe, os.Args[1:]...), nil
}

// launch makes this process rank 0, listening on cfg.Coordinator, and
// starts ranks 1..n-1 as copies of this binary with the same arguments.
// A rank that exits with an error fails the run and stops the others.
func launch(ctx context.Context, cfg config.Config, d julia.Domain) error {
	srv, err := cluster.Serve(cfg.Coordinator, cfg.Processes)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer srv.Close()

	g, ctx := errgroup.WithContext(ctx)
	for r := 1; r < cfg.Processes; r++ {
		r := r
		cmd, err := startRank(ctx, r, cluster.Env{Rank: r, Size: cfg.Processes, Coordinator: srv.Addr()})
		if err != nil {
			// ranks already started are killed through ctx
			g.Go(func() error { return err })
			return g.Wait()
		}
		g.Go(func() error {
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("rank %d: %w", r, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return evaluateRank(ctx, cfg, d, srv)
	})
	return g.Wait()
}

func startRank(ctx context.Context, r int, env cluster.Env) (*exec.Cmd, error) {
	cmd, err := rankCommand(ctx)
	if err != nil {
		return nil, err
	}
	cmd.Env = append(os.Environ(), env.Environ()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start rank %d: %w", r, err)
	}
	glog.V(1).Infof("started rank %d as pid %d", r, cmd.Process.Pid)
	return cmd, nil
}

// runLocalWorld runs every rank as a goroutine of this process.
func runLocalWorld(ctx context.Context, cfg config.Config, d julia.Domain) error {
	comms := cluster.NewLocalWorld(cfg.Processes)
	g, ctx := errgroup.WithContext(ctx)
	for _, comm := range comms {
		comm := comm
		g.Go(func() error {
			defer comm.Close()
			return evaluateRank(ctx, cfg, d, comm)
		})
	}
	return g.Wait()
}

// juliaset plots the Julia set of z <- z^2 - 0.8 + 0.156i into a TGA file.
//
// The threaded strategy splits the rows among goroutines of one process.
// The distributed strategy runs every rank over the whole field and reduces
// the buffers onto rank 0, which writes the file:
//
//	juliaset -strategy distributed -processes 4
//
// starts rank 0 here and three more copies of this binary as ranks 1..3.
// With -transport local the ranks are goroutines instead of processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/gops/agent"

	julia "github.com/marben/julia_dist"
	"github.com/marben/julia_dist/cluster"
	"github.com/marben/julia_dist/config"
	"github.com/marben/julia_dist/tga"
)

func main() {
	// log to stderr unless told otherwise
	flag.Set("logtostderr", "true")

	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		glog.Exitf("run: %v", err)
	}
	glog.Flush()
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fmt.Errorf("gops agent: %w", err)
		}
		defer agent.Close()
	}

	d, err := cfg.Domain()
	if err != nil {
		return err
	}

	if cfg.Strategy == julia.Threaded.String() {
		return runThreaded(ctx, cfg, d)
	}
	return runDistributed(ctx, cfg, d)
}

func runThreaded(ctx context.Context, cfg config.Config, d julia.Domain) error {
	e := cfg.Evaluator(nil)
	banner(d)

	start := time.Now()
	buf, err := e.Evaluate(ctx, d)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	glog.Infof("The main parallelized function was executed using %d threads, in the time of %g seconds",
		e.WorkerCount(), time.Since(start).Seconds())

	return save(cfg.OutputPath, d, buf)
}

func runDistributed(ctx context.Context, cfg config.Config, d julia.Domain) error {
	env, launched, err := cluster.LookupEnv()
	if err != nil {
		return err
	}
	if launched {
		return runRank(ctx, cfg, d, env)
	}
	if cfg.Transport == "local" {
		return runLocalWorld(ctx, cfg, d)
	}
	return launch(ctx, cfg, d)
}

// runRank is one rank of a group whose members were started separately,
// by launch or by hand with the cluster environment set.
func runRank(ctx context.Context, cfg config.Config, d julia.Domain, env cluster.Env) error {
	comm, err := cluster.FromEnv(ctx, env)
	if err != nil {
		return fmt.Errorf("rank %d: join group: %w", env.Rank, err)
	}
	defer comm.Close()
	return evaluateRank(ctx, cfg, d, comm)
}

// evaluateRank runs the distributed evaluation on comm. Only the coordinator
// reports and writes the file.
func evaluateRank(ctx context.Context, cfg config.Config, d julia.Domain, comm cluster.Communicator) error {
	root := comm.Rank() == cluster.Coordinator
	if root {
		banner(d)
	}

	start := time.Now()
	buf, err := cfg.Evaluator(comm).Evaluate(ctx, d)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if !root {
		glog.V(1).Infof("rank %d done in %s", comm.Rank(), time.Since(start))
		return nil
	}
	glog.Infof("Execution time = %f seconds on %d processes", time.Since(start).Seconds(), comm.Size())

	return save(cfg.OutputPath, d, buf)
}

func save(path string, d julia.Domain, buf julia.Buffer) error {
	if err := tga.WriteFile(path, d.Width, d.Height, buf); err != nil {
		return err
	}
	glog.Infof("TGA_WRITE: Graphics data saved as '%s'", path)
	glog.V(1).Infof("%d of %d pixels bounded", buf.Count(), d.Pixels())
	glog.Infof("JULIA_SET: Normal end of execution.")
	glog.Infof("%s", timestamp())
	return nil
}

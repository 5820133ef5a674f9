// Package config assembles a run configuration from defaults, an optional
// YAML/JSON file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"

	julia "github.com/marben/julia_dist"
	"github.com/marben/julia_dist/cluster"
)

// EnvThreads overrides the threaded worker count, like OMP_NUM_THREADS.
const EnvThreads = "JULIA_NUM_THREADS"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is one run of the renderer.
type Config struct {
	Width  int     `json:"width,default=1000"`
	Height int     `json:"height,default=1000"`
	Region string  `json:"region,optional"` // overrides the bounds below
	Xl     float64 `json:"xl,default=-1.5"`
	Xr     float64 `json:"xr,default=1.5"`
	Yb     float64 `json:"yb,default=-1.5"`
	Yt     float64 `json:"yt,default=1.5"`

	OutputPath string `json:"outputPath,default=julia_set.tga"`
	Strategy   string `json:"strategy,default=threaded,options=threaded|distributed"`

	Threads  int `json:"threads,optional"`
	BandRows int `json:"bandRows,default=8"`

	Processes   int    `json:"processes,default=1"`
	Transport   string `json:"transport,default=ws,options=ws|local"`
	Coordinator string `json:"coordinator,default=127.0.0.1:0"`
	Reduce      string `json:"reduce,default=max,options=max|root"`

	Gops bool `json:"gops,optional"`
}

// Default returns the configuration of the fixed run: 1000x1000 over
// [-1.5,1.5]^2 written to julia_set.tga.
func Default() Config {
	var c Config
	if err := conf.FillDefault(&c); err != nil {
		panic(err)
	}
	return c
}

// Load returns the defaults overlaid with the file at path, if any, and the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		c = Config{}
		if err := conf.Load(path, &c); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	v, ok := os.LookupEnv(EnvThreads)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvThreads, v, err)
	}
	c.Threads = n
	return nil
}

// Parse loads the file named by -config in args, then lets the flags in
// args override it. Flags are registered on fs, which must not define them yet.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	path := configPath(args)
	c, err := Load(path)
	if err != nil {
		return Config{}, err
	}

	fs.String("config", path, "YAML or JSON configuration file")
	c.bind(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.IntVar(&c.Width, "width", c.Width, "image width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "image height in pixels")
	fs.StringVar(&c.Region, "region", c.Region, "named region (full, core, spiral); overrides the bounds")
	fs.Float64Var(&c.Xl, "xl", c.Xl, "left bound")
	fs.Float64Var(&c.Xr, "xr", c.Xr, "right bound")
	fs.Float64Var(&c.Yb, "yb", c.Yb, "bottom bound")
	fs.Float64Var(&c.Yt, "yt", c.Yt, "top bound")
	fs.StringVar(&c.OutputPath, "output-path", c.OutputPath, "TGA file to write")
	fs.StringVar(&c.Strategy, "strategy", c.Strategy, "threaded or distributed")
	fs.IntVar(&c.Threads, "threads", c.Threads, "threaded workers, 0 for GOMAXPROCS (env "+EnvThreads+")")
	fs.IntVar(&c.BandRows, "band-rows", c.BandRows, "rows a threaded worker takes at once")
	fs.IntVar(&c.Processes, "processes", c.Processes, "ranks of the distributed strategy")
	fs.StringVar(&c.Transport, "transport", c.Transport, "ws (one process per rank) or local (one goroutine per rank)")
	fs.StringVar(&c.Coordinator, "coordinator", c.Coordinator, "host:port the coordinating rank listens on")
	fs.StringVar(&c.Reduce, "reduce", c.Reduce, "combine operation: max or root")
	fs.BoolVar(&c.Gops, "gops", c.Gops, "start the gops diagnostics agent")
}

// configPath finds the value of -config / --config without parsing the other flags.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Domain returns the grid and bounds to sample.
func (c Config) Domain() (julia.Domain, error) {
	if c.Region != "" {
		r, ok := julia.Regions[c.Region]
		if !ok {
			return julia.Domain{}, fmt.Errorf("%w: unknown region %q", ErrInvalid, c.Region)
		}
		return r.Domain(c.Width, c.Height), nil
	}
	return julia.Domain{
		Width:  c.Width,
		Height: c.Height,
		Xl:     float32(c.Xl),
		Xr:     float32(c.Xr),
		Yb:     float32(c.Yb),
		Yt:     float32(c.Yt),
	}, nil
}

// Validate fails fast on settings the evaluator cannot run with.
func (c Config) Validate() error {
	d, err := c.Domain()
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := julia.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, ok := cluster.Ops[c.Reduce]; !ok {
		return fmt.Errorf("%w: unknown reduce operation %q", ErrInvalid, c.Reduce)
	}
	switch {
	case c.OutputPath == "":
		return fmt.Errorf("%w: empty output path", ErrInvalid)
	case c.Threads < 0:
		return fmt.Errorf("%w: threads %d", ErrInvalid, c.Threads)
	case c.BandRows <= 0:
		return fmt.Errorf("%w: band rows %d", ErrInvalid, c.BandRows)
	case c.Processes < 1:
		return fmt.Errorf("%w: processes %d", ErrInvalid, c.Processes)
	case c.Transport != "ws" && c.Transport != "local":
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	return nil
}

// Evaluator returns the evaluator for this configuration. comm is used by
// the distributed strategy and may be nil for the threaded one.
func (c Config) Evaluator(comm cluster.Communicator) *julia.Evaluator {
	strategy, _ := julia.ParseStrategy(c.Strategy)
	return &julia.Evaluator{
		Strategy: strategy,
		Workers:  c.Threads,
		BandRows: c.BandRows,
		Comm:     comm,
		Op:       cluster.Ops[c.Reduce],
	}
}

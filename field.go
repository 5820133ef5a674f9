package julia

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/marben/julia_dist/cluster"
)

var (
	ErrWorkerPanic    = errors.New("worker panicked")
	ErrNoCommunicator = errors.New("distributed strategy needs a communicator")
)

// Strategy selects how the field is decomposed across workers.
type Strategy int

const (
	// Threaded splits the rows among goroutines sharing one buffer.
	Threaded Strategy = iota
	// Distributed computes the whole field on every rank and reduces the
	// buffers onto the coordinator.
	Distributed
)

func (s Strategy) String() string {
	switch s {
	case Threaded:
		return "threaded"
	case Distributed:
		return "distributed"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "threaded":
		return Threaded, nil
	case "distributed":
		return Distributed, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// DefaultBandRows is the number of rows a threaded worker takes at once.
const DefaultBandRows = 8

// Evaluator fills the pixel buffer of a domain. The zero value evaluates
// DefaultParams with the threaded strategy on GOMAXPROCS workers.
type Evaluator struct {
	Strategy   Strategy
	Classifier Classifier // DefaultParams if nil

	// Threaded only
	Workers  int // GOMAXPROCS if <= 0
	BandRows int // DefaultBandRows if <= 0

	// Distributed only
	Comm cluster.Communicator
	Op   cluster.ReduceOp // cluster.Max if nil
}

// Evaluate returns the buffer of d. With the distributed strategy only the
// coordinator gets the buffer; other ranks return nil, nil after their
// contribution has been taken.
func (e *Evaluator) Evaluate(ctx context.Context, d Domain) (Buffer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch e.Strategy {
	case Threaded:
		return e.threaded(ctx, d)
	case Distributed:
		return e.distributed(ctx, d)
	}
	return nil, fmt.Errorf("evaluate: unknown strategy %v", e.Strategy)
}

func (e *Evaluator) classifier() Classifier {
	if e.Classifier == nil {
		return DefaultParams
	}
	return e.Classifier
}

// WorkerCount is the pool size the threaded strategy uses.
func (e *Evaluator) WorkerCount() int {
	if e.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return e.Workers
}

func (e *Evaluator) threaded(ctx context.Context, d Domain) (Buffer, error) {
	buf := NewBuffer(d.Width, d.Height)
	cl := e.classifier()
	rows := e.BandRows
	if rows <= 0 {
		rows = DefaultBandRows
	}
	s := newBandScheduler(d.Height, rows)
	workers := e.WorkerCount()
	glog.V(1).Infof("threaded: %s on %d workers, %d rows per band", d, workers, rows)

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() (err error) {
			defer recoverWorker(id, &err)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				b, found := s.popBand()
				if !found {
					return nil
				}
				// the band owns this slice exclusively
				renderRows(buf[offset(d.Width, 0, b.Y0):offset(d.Width, 0, b.Y1)], d, cl, b.Y0)
				s.bandFinished(b)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *Evaluator) distributed(ctx context.Context, d Domain) (Buffer, error) {
	if e.Comm == nil {
		return nil, ErrNoCommunicator
	}
	op := e.Op
	if op == nil {
		op = cluster.Max
	}
	rank := e.Comm.Rank()

	local := NewBuffer(d.Width, d.Height)
	if err := render(local, d, e.classifier(), rank); err != nil {
		return nil, err
	}
	glog.V(1).Infof("rank %d/%d: field done, reducing", rank, e.Comm.Size())

	combined, err := e.Comm.Reduce(ctx, local, op)
	if err != nil {
		return nil, fmt.Errorf("rank %d: reduce: %w", rank, err)
	}
	if rank != cluster.Coordinator {
		return nil, nil
	}
	buf := Buffer(combined)
	if err := buf.Check(d.Width, d.Height); err != nil {
		return nil, fmt.Errorf("reduced buffer: %w", err)
	}
	return buf, nil
}

// render fills the whole buffer on the calling goroutine.
func render(buf Buffer, d Domain, cl Classifier, rank int) (err error) {
	defer recoverWorker(rank, &err)
	renderRows(buf, d, cl, 0)
	return nil
}

// renderRows fills dst, which holds whole rows of d starting at row y0.
func renderRows(dst Buffer, d Domain, cl Classifier, y0 int) {
	rows := len(dst) / (BytesPerPixel * d.Width)
	for r := 0; r < rows; r++ {
		j := y0 + r
		for i := 0; i < d.Width; i++ {
			x, y := d.Point(i, j)
			dst.Set(d.Width, i, r, cl.Classify(x, y))
		}
	}
}

func recoverWorker(id int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: worker %d: %v", ErrWorkerPanic, id, r)
	}
}

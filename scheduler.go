package julia

import (
	"sync"

	"github.com/golang/glog"
)

// band is the half-open row range [Y0, Y1) of the grid.
type band struct {
	Y0, Y1 int
}

// bandScheduler hands out row bands to workers until none are left.
type bandScheduler struct {
	unstarted []band

	totalRows    int
	finishedRows int

	m sync.Mutex
}

func newBandScheduler(h, rowsPerBand int) *bandScheduler {
	return &bandScheduler{
		unstarted: splitRows(h, rowsPerBand),
		totalRows: h,
	}
}

func (s *bandScheduler) popBand() (b band, found bool) {
	s.m.Lock()
	defer s.m.Unlock()

	if len(s.unstarted) == 0 {
		return band{}, false
	}
	b = s.unstarted[0]
	s.unstarted = s.unstarted[1:]
	return b, true
}

func (s *bandScheduler) finished() float32 {
	s.m.Lock()
	defer s.m.Unlock()
	return float32(s.finishedRows) / float32(s.totalRows)
}

func (s *bandScheduler) bandFinished(b band) {
	s.m.Lock()
	s.finishedRows += b.Y1 - b.Y0
	s.m.Unlock()

	if glog.V(2) {
		glog.Infof("finished: %f", s.finished())
	}
}

// splitRows splits h rows into bands of rowsPerBand rows.
// The last band is shorter if h is not divisible.
func splitRows(h, rowsPerBand int) []band {
	if rowsPerBand <= 0 {
		panic("band height must be positive")
	}

	bands := make([]band, 0, (h+rowsPerBand-1)/rowsPerBand)
	for y := 0; y < h; y += rowsPerBand {
		bands = append(bands, band{Y0: y, Y1: min(y+rowsPerBand, h)})
	}
	return bands
}

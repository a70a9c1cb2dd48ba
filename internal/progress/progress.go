// Package progress implements the live progress reporter: a
// periodically redrawn bar with a rolling-window ETA, whose mean and
// variance are recomputed with Welford's recurrence over the 30-sample
// window on each tick. Grounded on the teacher's scoped-component pattern (a Reporter
// is constructed, Run starts a background ticker, Close stops it and
// prints the trailing newline) and on the corpus's general preference
// for fatih/color over a bespoke ANSI implementation.
package progress

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// windowSize is the rolling sample count the ETA estimate is drawn from:
// a rolling window of the last 30 per-second deltas.
const windowSize = 30

// minSamplesForETA and the mean/stddev gates below are the exact
// conditions required before an ETA is shown.
const minSamplesForETA = 10

// Reporter is the live variant: construction prints a banner, Run starts
// a 1-second ticker that redraws the bar, Close prints the trailing
// newline and stops the ticker.
type Reporter struct {
	out   io.Writer
	label string

	mu        sync.Mutex
	total     uint64
	completed uint64
	lastDrawn uint64

	window    [windowSize]float64
	windowLen int
	windowPos int
	mean      float64
	m2        float64
	lastTick  time.Time

	stop chan struct{}
	done chan struct{}
}

// Interface is satisfied by both Reporter and the no-op Silent variant,
// so callers don't branch on --no-progress/--quiet themselves.
type Interface interface {
	Total(n uint64)
	TotalIncr(by uint64)
	Completed(n uint64)
	CompletedIncr(by uint64)
	Run()
	Close()
}

// New builds a live Reporter writing to out, printing label as a banner.
func New(out io.Writer, label string) *Reporter {
	fmt.Fprintf(out, "%s\n", label)
	return &Reporter{out: out, label: label, stop: make(chan struct{}), done: make(chan struct{})}
}

func (r *Reporter) Total(n uint64) {
	r.mu.Lock()
	r.total = n
	r.mu.Unlock()
}

func (r *Reporter) TotalIncr(by uint64) {
	r.mu.Lock()
	r.total += by
	r.mu.Unlock()
}

func (r *Reporter) Completed(n uint64) {
	r.mu.Lock()
	r.completed = n
	r.mu.Unlock()
}

func (r *Reporter) CompletedIncr(by uint64) {
	r.mu.Lock()
	r.completed += by
	r.mu.Unlock()
}

// Run starts the 1-second redraw ticker in a background goroutine. Close
// must be called to stop it and print the trailing newline.
func (r *Reporter) Run() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		r.lastTick = time.Now()
		for {
			select {
			case <-r.stop:
				r.draw()
				return
			case now := <-ticker.C:
				r.tick(now)
			}
		}
	}()
}

// Close stops the ticker, waits for it to settle, and prints the
// terminating newline a scoped progress component owes its output.
func (r *Reporter) Close() {
	close(r.stop)
	<-r.done
	fmt.Fprintln(r.out)
}

func (r *Reporter) tick(now time.Time) {
	r.mu.Lock()
	completed := r.completed
	changed := completed != r.lastDrawn
	elapsed := now.Sub(r.lastTick).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	delta := float64(completed-r.lastDrawn) / elapsed
	r.lastTick = now
	r.observe(delta)
	r.mu.Unlock()

	if changed {
		r.draw()
	}
}

// observe folds one per-second delta into the rolling window using
// Welford's algorithm, recomputed over the live window contents since
// entries age out (a textbook sliding-window variant of Welford, not
// the unbounded-stream form).
func (r *Reporter) observe(delta float64) {
	r.window[r.windowPos] = delta
	r.windowPos = (r.windowPos + 1) % windowSize
	if r.windowLen < windowSize {
		r.windowLen++
	}

	var mean, m2 float64
	for i := 0; i < r.windowLen; i++ {
		x := r.window[i]
		count := float64(i + 1)
		delta := x - mean
		mean += delta / count
		delta2 := x - mean
		m2 += delta * delta2
	}
	r.mean = mean
	if r.windowLen > 1 {
		r.m2 = m2 / float64(r.windowLen-1)
	} else {
		r.m2 = 0
	}
}

func (r *Reporter) draw() {
	r.mu.Lock()
	total, completed := r.total, r.completed
	r.lastDrawn = completed
	mean := r.mean
	stddev := math.Sqrt(r.m2)
	samples := r.windowLen
	r.mu.Unlock()

	bar := renderBar(total, completed)
	line := fmt.Sprintf("\r%s %s/%s", bar, humanize.Comma(int64(completed)), humanize.Comma(int64(total)))
	if eta, ok := estimateETA(total, completed, mean, stddev, samples); ok {
		line += " ETA " + eta
	}
	color.New(color.FgCyan).Fprint(r.out, line)
}

func renderBar(total, completed uint64) string {
	const width = 30
	filled := 0
	if total > 0 {
		filled = int(float64(width) * math.Min(1, float64(completed)/float64(total)))
	}
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	return "[" + string(bar) + "]"
}

// estimateETA applies the gating rule: samples strictly greater than 10,
// mean at least 1 per second, and stddev below mean (otherwise the
// estimate is too noisy to show).
func estimateETA(total, completed uint64, mean, stddev float64, samples int) (string, bool) {
	if samples <= minSamplesForETA || mean < 1 || stddev >= mean {
		return "", false
	}
	if completed >= total {
		return "", false
	}
	remaining := float64(total-completed) / mean
	return formatDuration(remaining), true
}

// formatDuration rounds to whole seconds below 2 minutes, and to whole
// minutes (half-up at the 30s boundary) at or above 2 minutes.
func formatDuration(seconds float64) string {
	if seconds < 120 {
		return fmt.Sprintf("%ds", int(math.Round(seconds)))
	}
	minutes := math.Floor(seconds / 60)
	remainder := seconds - minutes*60
	if remainder >= 30 {
		minutes++
	}
	return fmt.Sprintf("%dm", int(minutes))
}

// Silent satisfies Interface with no I/O, used for --no-progress/--quiet.
type Silent struct{}

func (Silent) Total(uint64)         {}
func (Silent) TotalIncr(uint64)     {}
func (Silent) Completed(uint64)     {}
func (Silent) CompletedIncr(uint64) {}
func (Silent) Run()                 {}
func (Silent) Close()               {}

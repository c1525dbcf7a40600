package plate

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// progressBar renders an in-place terminal bar for one pyramid level.
// Workers call Increment concurrently; a ticker redraws every 100ms.
type progressBar struct {
	w         io.Writer
	label     string
	total     int64
	processed atomic.Int64
	written   atomic.Int64
	width     int
	start     time.Time
	done      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex
}

func newProgressBar(w io.Writer, label string, total int64) *progressBar {
	pb := &progressBar{
		w:       w,
		label:   label,
		total:   total,
		width:   30,
		start:   time.Now(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go pb.run()
	return pb
}

// Increment records one finished tile, written or skipped.
func (pb *progressBar) Increment(written bool) {
	if pb == nil {
		return
	}
	pb.processed.Add(1)
	if written {
		pb.written.Add(1)
	}
}

// Finish stops the refresh loop and prints the final state.
func (pb *progressBar) Finish() {
	if pb == nil {
		return
	}
	close(pb.done)
	<-pb.stopped
	pb.draw()
	fmt.Fprint(pb.w, "\n")
}

func (pb *progressBar) run() {
	defer close(pb.stopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-pb.done:
			return
		case <-ticker.C:
			pb.draw()
		}
	}
}

func (pb *progressBar) draw() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	processed := pb.processed.Load()
	frac := 1.0
	if pb.total > 0 {
		frac = min(float64(processed)/float64(pb.total), 1)
	}
	filled := int(float64(pb.width) * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)

	elapsed := time.Since(pb.start)
	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}
	fmt.Fprintf(pb.w, "\r%s [%s] %3.0f%%  %d/%d tiles (%d written)  %.0f/s  %s\033[K",
		pb.label, bar, frac*100, processed, pb.total, pb.written.Load(), rate, formatDuration(elapsed))
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s").
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	return fmt.Sprintf("%dm%02ds", m, int(d.Seconds())-m*60)
}

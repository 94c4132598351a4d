package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer
}

// ProgressManager owns the bar container. A disabled manager hands out
// no-op bars.
type ProgressManager struct {
	container *mpb.Progress
	enabled   bool
	mu        sync.Mutex
}

// ProgressBar tracks decoded audio time against the total duration.
type ProgressBar struct {
	bar     *mpb.Bar
	enabled bool
}

// ShouldShow reports whether a bar belongs on f: always when forced,
// otherwise only when f is a terminal.
func ShouldShow(force bool, f *os.File) bool {
	if force {
		return true
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NewProgressManager(config ProgressConfig) *ProgressManager {
	if !config.Enabled {
		return &ProgressManager{enabled: false}
	}

	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	container := mpb.New(
		mpb.WithOutput(writer),
		mpb.WithRefreshRate(120*time.Millisecond),
		mpb.WithWidth(40),
		mpb.WithAutoRefresh(),
	)

	return &ProgressManager{
		container: container,
		enabled:   true,
	}
}

// CreateBar adds a bar spanning totalSeconds of audio. Unknown durations
// yield a no-op bar.
func (pm *ProgressManager) CreateBar(totalSeconds float64, description string) *ProgressBar {
	if !pm.enabled || pm.container == nil || totalSeconds <= 0 {
		return &ProgressBar{enabled: false}
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	bar := pm.container.AddBar(toMillis(totalSeconds),
		mpb.PrependDecorators(
			decor.Name(description+" ", decor.WC{W: len(description) + 1, C: decor.DindentRight}),
			decor.Any(audioCounters, decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.NewPercentage("%.1f", decor.WCSyncSpace),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncWidth), " ✓ ",
			),
		),
	)

	return &ProgressBar{
		bar:     bar,
		enabled: true,
	}
}

func audioCounters(s decor.Statistics) string {
	return fmt.Sprintf("(%.1fs/%.1fs)", float64(s.Current)/1000, float64(s.Total)/1000)
}

// SetCurrent moves the bar to the given audio position. Positions never
// move backwards.
func (pb *ProgressBar) SetCurrent(seconds float64) {
	if pb.enabled && pb.bar != nil {
		current := toMillis(seconds)
		if current > pb.bar.Current() {
			pb.bar.SetCurrent(current)
		}
	}
}

func (pb *ProgressBar) Complete() {
	if pb.enabled && pb.bar != nil {
		pb.bar.SetTotal(pb.bar.Current(), true)
	}
}

// Abort removes the bar from the display.
func (pb *ProgressBar) Abort() {
	if pb.enabled && pb.bar != nil {
		pb.bar.Abort(true)
	}
}

func (pm *ProgressManager) Wait() {
	if pm.enabled && pm.container != nil {
		pm.container.Wait()
	}
}

func toMillis(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	return int64(seconds * 1000)
}

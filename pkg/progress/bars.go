package progress

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Bars renders one terminal bar per handle plus a total bar at the bottom.
type Bars struct {
	progress *mpb.Progress

	mu        sync.Mutex
	totalBar  *mpb.Bar
	totalSize int64
}

func NewBars(out io.Writer) *Bars {
	opts := []mpb.ContainerOption{}
	if out != nil {
		opts = append(opts, mpb.WithOutput(out))
	}
	return &Bars{progress: mpb.New(opts...)}
}

func (b *Bars) Register() Handle {
	b.ensureTotalBar()

	h := &barHandle{owner: b}
	h.message.Store(new(string))
	h.bar = b.progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string { return *h.message.Load() }, decor.WCSyncSpaceR),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		downloadInfo(),
	)
	return h
}

// Wait blocks until every registered handle has finished.
func (b *Bars) Wait() {
	b.mu.Lock()
	if b.totalBar != nil {
		b.totalBar.SetTotal(-1, true)
	}
	b.mu.Unlock()
	b.progress.Wait()
}

func (b *Bars) ensureTotalBar() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.totalBar == nil {
		b.totalBar = b.progress.AddBar(0,
			mpb.BarPriority(100), // Ensure it's at the bottom
			mpb.PrependDecorators(
				decor.Name("Total ", decor.WC{W: 6}),
				decor.CountersKibiByte("% .2f / % .2f"),
			),
			downloadInfo(),
		)
	}
}

func downloadInfo() mpb.BarOption {
	return mpb.AppendDecorators(
		decor.Percentage(decor.WCSyncSpace),
		decor.Name(" | "),
		decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
		decor.Name(" | "),
		decor.AverageETA(decor.ET_STYLE_GO),
	)
}

func (b *Bars) addTotalSize(n int64) {
	if n == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSize += n
	if b.totalBar != nil {
		b.totalBar.SetTotal(b.totalSize, false)
	}
}

func (b *Bars) addTotalPos(n int64) {
	if n == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.totalBar != nil {
		b.totalBar.IncrInt64(n)
	}
}

type barHandle struct {
	owner   *Bars
	bar     *mpb.Bar
	message atomic.Pointer[string]

	pos    int64
	length int64
}

func (h *barHandle) SetPosition(pos uint64) {
	diff := int64(pos) - h.pos
	h.pos = int64(pos)
	h.bar.SetCurrent(h.pos)
	h.owner.addTotalPos(diff)
}

func (h *barHandle) SetLength(length uint64) {
	diff := int64(length) - h.length
	h.length = int64(length)
	h.bar.SetTotal(h.length, false)
	h.owner.addTotalSize(diff)
}

func (h *barHandle) SetMessage(msg string) {
	h.message.Store(&msg)
}

func (h *barHandle) Increment(n uint64) {
	h.pos += int64(n)
	h.bar.IncrInt64(int64(n))
	h.owner.addTotalPos(int64(n))
}

func (h *barHandle) Finish(msg string) {
	h.SetMessage(msg)
	h.bar.SetTotal(-1, true)
}

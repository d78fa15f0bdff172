package job

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress reports finished directories. The zero value discards updates.
type progress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// newProgress renders a bar for total directories on w. A nil writer
// disables rendering.
func newProgress(w io.Writer, total int) *progress {
	if w == nil || total == 0 {
		return &progress{}
	}
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(64), mpb.WithAutoRefresh())
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Balancing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	return &progress{p: p, bar: bar}
}

func (pr *progress) increment() {
	if pr.bar != nil {
		pr.bar.Increment()
	}
}

// wait flushes the bar. Call it once every worker has returned.
func (pr *progress) wait() {
	if pr.p == nil {
		return
	}
	// The bar is short of its total when the run stopped early.
	if !pr.bar.Completed() {
		pr.bar.Abort(false)
	}
	pr.p.Wait()
}

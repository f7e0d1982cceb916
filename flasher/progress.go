package flasher

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	progressBarWidth       = 50
	defaultProgramDuration = 25 * time.Second
)

// progressBar paces a wall-clock animation while the external tool
// runs. The estimate only drives the animation speed, completion is
// whatever Stop reports.
type progressBar struct {
	w        io.Writer
	message  string
	done     chan bool
	finished chan struct{}
}

func startProgress(w io.Writer, message string, estimate time.Duration) *progressBar {
	p := &progressBar{
		w:        w,
		message:  message,
		done:     make(chan bool),
		finished: make(chan struct{}),
	}
	go p.run(estimate)
	return p
}

func (p *progressBar) run(estimate time.Duration) {
	defer close(p.finished)
	step := estimate / progressBarWidth
	for i := 0; i < progressBarWidth; i++ {
		p.render(i)
		select {
		case ok := <-p.done:
			if ok {
				p.render(progressBarWidth)
			}
			fmt.Fprintln(p.w)
			return
		case <-time.After(step):
		}
	}
	// estimate elapsed, hold just short of full until the tool is done
	p.render(progressBarWidth - 1)
	ok := <-p.done
	if ok {
		p.render(progressBarWidth)
	}
	fmt.Fprintln(p.w)
}

func (p *progressBar) render(i int) {
	percentage := i * 100 / progressBarWidth
	filled := strings.Repeat("█", i)
	empty := strings.Repeat(" ", progressBarWidth-i)
	fmt.Fprintf(p.w, "\r%s [%s%s] %d%%", p.message, filled, empty, percentage)
}

// Stop ends the animation; ok selects whether the bar completes to
// 100% or stops where it is.
func (p *progressBar) Stop(ok bool) {
	p.done <- ok
	<-p.finished
}

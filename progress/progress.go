// progress.go - Terminal-Fortschrittsanzeige
//
// Dieses Modul enthaelt:
// - State: Interface fuer eine renderbare Zeile
// - Progress: Sammlung von Zeilen, periodisch neu gezeichnet
package progress

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// State is one renderable progress line.
type State interface {
	String() string
}

// Progress renders a set of progress lines to a terminal, redrawing them in
// place a few times per second until stopped.
type Progress struct {
	mu sync.Mutex
	w  io.Writer

	pos int

	ticker *time.Ticker
	states []State
}

// NewProgress starts rendering to w.
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w}
	go p.start()
	return p
}

func (p *Progress) stop() bool {
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}

	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.render()
		return true
	}

	return false
}

// Stop halts rendering, leaving the lines in place.
func (p *Progress) Stop() bool {
	stopped := p.stop()
	if stopped {
		fmt.Fprint(p.w, "\n")
	}
	return stopped
}

// StopAndClear halts rendering and erases all lines.
func (p *Progress) StopAndClear() bool {
	fmt.Fprint(p.w, "\033[?25l")
	defer fmt.Fprint(p.w, "\033[?25h")

	stopped := p.stop()
	if stopped {
		// clear all progress lines
		for i := range p.pos {
			if i > 0 {
				fmt.Fprint(p.w, "\033[A")
			}
			fmt.Fprint(p.w, "\033[2K\033[1G")
		}
	}

	return stopped
}

// Add appends a new line to the display.
func (p *Progress) Add(key string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := bufio.NewWriter(p.w)
	fmt.Fprint(buf, "\033[?25l")
	defer fmt.Fprint(buf, "\033[?25h")

	// move the cursor back to the beginning
	for range p.pos - 1 {
		fmt.Fprint(buf, "\033[A")
	}
	fmt.Fprint(buf, "\033[1G")

	// render progress lines
	for i, state := range p.states {
		fmt.Fprint(buf, state.String(), "\033[K")
		if i < len(p.states)-1 {
			fmt.Fprint(buf, "\n")
		}
	}
	buf.Flush()

	p.pos = len(p.states)
}

func (p *Progress) start() {
	p.ticker = time.NewTicker(100 * time.Millisecond)
	for range p.ticker.C {
		p.render()
	}
}

// bar.go - Determinierter Fortschrittsbalken
//
// Dieses Modul enthaelt:
// - Bar: Schritt-Balken mit Prozentanzeige und Restzeit-Schaetzung
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Bar renders determinate progress: a message, a percentage, the bar itself
// and an ETA once enough updates have arrived.
type Bar struct {
	message string

	maxValue     int64
	currentValue int64

	started time.Time
	updated time.Time
}

// NewBar creates a bar expecting maxValue updates.
func NewBar(message string, maxValue, initialValue int64) *Bar {
	return &Bar{
		message:      message,
		maxValue:     maxValue,
		currentValue: initialValue,
		started:      time.Now(),
	}
}

// Set moves the bar to value.
func (b *Bar) Set(value int64) {
	if value >= b.maxValue {
		value = b.maxValue
	}

	b.currentValue = value
	b.updated = time.Now()
}

func (b *Bar) percent() float64 {
	if b.maxValue > 0 {
		return float64(b.currentValue) / float64(b.maxValue) * 100
	}
	return 0
}

func (b *Bar) remaining() time.Duration {
	if b.currentValue <= 0 || b.updated.IsZero() {
		return 0
	}
	elapsed := b.updated.Sub(b.started)
	perStep := elapsed / time.Duration(b.currentValue)
	return perStep * time.Duration(b.maxValue-b.currentValue)
}

func (b *Bar) String() string {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = 80
	}

	var pre strings.Builder
	if len(b.message) > 0 {
		message := strings.TrimSpace(b.message)
		if len(message) > 25 {
			message = message[:22] + "..."
		}
		fmt.Fprintf(&pre, "%-25s", message)
	}
	fmt.Fprintf(&pre, " %3.0f%% ", b.percent())

	var suf strings.Builder
	fmt.Fprintf(&suf, " %d/%d", b.currentValue, b.maxValue)
	if b.currentValue > 0 && b.currentValue < b.maxValue {
		if eta := b.remaining(); eta > 0 {
			fmt.Fprintf(&suf, " %s", eta.Round(time.Second))
		}
	}

	barWidth := termWidth - pre.Len() - suf.Len() - 2
	if barWidth < 10 {
		return pre.String() + suf.String()
	}

	filled := int(float64(barWidth) * b.percent() / 100)
	var mid strings.Builder
	mid.WriteString("▕")
	mid.WriteString(strings.Repeat("█", filled))
	mid.WriteString(strings.Repeat(" ", barWidth-filled))
	mid.WriteString("▏")

	return pre.String() + mid.String() + suf.String()
}

package render

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerStyle defines different spinner animation styles.
type SpinnerStyle int

const (
	// SpinnerBraille uses smooth braille dot animation
	SpinnerBraille SpinnerStyle = iota
	// SpinnerDots uses growing dots animation
	SpinnerDots
	// SpinnerLine is the plain ASCII fallback
	SpinnerLine
)

func (s SpinnerStyle) frames() []string {
	switch s {
	case SpinnerBraille:
		return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	case SpinnerDots:
		return []string{"   ", ".  ", ".. ", "...", " ..", "  .", "   "}
	default:
		return []string{"|", "/", "-", "\\"}
	}
}

// Spinner animates a status line on w until stopped.
type Spinner struct {
	w        io.Writer
	style    SpinnerStyle
	message  string
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer, style SpinnerStyle, message string) *Spinner {
	return &Spinner{w: w, style: style, message: message, interval: 80 * time.Millisecond}
}

// Frame returns the frame shown at tick n.
func (s *Spinner) Frame(n int) string {
	frames := s.style.frames()
	return frames[n%len(frames)]
}

// Start begins animating. Calling Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fmt.Fprint(s.w, CursorHide)
	for n := 0; ; n++ {
		fmt.Fprintf(s.w, "\r%s%s %s", ClearLine, s.Frame(n), s.message)
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r"+ClearLine+CursorShow)
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the status line and waits for the animation to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

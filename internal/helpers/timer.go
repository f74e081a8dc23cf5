package helpers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/esmlink/esmlink/internal/logger"
)

// A nil timer is valid and does nothing, so phases can call Begin and End
// unconditionally and only pay for timing when it was requested.
type Timer struct {
	mutex sync.Mutex
	spans []timerSpan

	// Indices into "spans" of the phases that haven't ended yet
	open []int
}

type timerSpan struct {
	name     string
	depth    int
	start    time.Time
	duration time.Duration
}

func (t *Timer) Begin(name string) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.open = append(t.open, len(t.spans))
	t.spans = append(t.spans, timerSpan{name: name, depth: len(t.open) - 1, start: time.Now()})
}

func (t *Timer) End(name string) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	last := len(t.open) - 1
	span := &t.spans[t.open[last]]
	if span.name != name {
		panic(fmt.Sprintf("Internal error: ended timer %q while %q was running", name, span.name))
	}
	span.duration = time.Since(span.start)
	t.open = t.open[:last]
}

// Spans are listed in the order they began, indented by nesting depth
func (t *Timer) Log(log logger.Log) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	notes := make([]logger.MsgData, len(t.spans))
	for i, span := range t.spans {
		notes[i].Text = fmt.Sprintf("%s%s: %dms", strings.Repeat("  ", span.depth), span.name, span.duration.Milliseconds())
	}
	log.AddInfo("Timing information", notes)
}

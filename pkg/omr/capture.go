package omr

import (
	"strings"
	"sync"
)

// captureLimit bounds each end of a captured stream. Notes only ever use
// the first few hundred runes and the last few lines.
const captureLimit = 4 << 10

// outputCapture keeps the head and the tail of a subprocess stream and
// drops the middle, so a chatty engine cannot grow memory for the length of
// a run.
type outputCapture struct {
	mu    sync.Mutex
	limit int
	head  []byte
	ring  []byte // last bytes written after head, circular once full
	next  int    // oldest byte in ring once full
	rest  int64  // bytes written after head
}

func newOutputCapture(limit int) *outputCapture {
	return &outputCapture{limit: limit}
}

func (c *outputCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	if room := c.limit - len(c.head); room > 0 {
		k := min(room, len(p))
		c.head = append(c.head, p[:k]...)
		p = p[k:]
	}
	c.rest += int64(len(p))
	if len(p) > c.limit {
		p = p[len(p)-c.limit:]
	}
	for len(p) > 0 {
		if len(c.ring) < c.limit {
			k := min(c.limit-len(c.ring), len(p))
			c.ring = append(c.ring, p[:k]...)
			p = p[k:]
			continue
		}
		k := copy(c.ring[c.next:], p)
		p = p[k:]
		c.next = (c.next + k) % c.limit
	}
	return n, nil
}

// Head returns the beginning of the stream.
func (c *outputCapture) Head() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.head)
}

// Tail returns up to limit bytes from the end of the stream.
func (c *outputCapture) Tail() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tail := make([]byte, 0, 2*c.limit)
	if c.rest < int64(c.limit) {
		tail = append(tail, c.head...)
	}
	tail = append(tail, c.ring[c.next:]...)
	tail = append(tail, c.ring[:c.next]...)
	if len(tail) > c.limit {
		tail = tail[len(tail)-c.limit:]
	}
	// The cut may split a rune.
	return strings.ToValidUTF8(string(tail), "")
}

// Truncated reports whether bytes between head and tail were discarded.
func (c *outputCapture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rest > int64(c.limit)
}

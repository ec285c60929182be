// Package tokens counts tokens the way the target assistants do, using the
// cl100k_base BPE encoding. When the encoding cannot be loaded (offline
// environments) counting falls back to a chars/4 heuristic.
package tokens

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the tiktoken encoding used for all counts.
const Encoding = "cl100k_base"

// Counter counts tokens in text. The zero value is not usable; create one
// with NewCounter. Counter is safe for concurrent use.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter creates a Counter. The encoding is loaded lazily on first use.
func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the number of tokens in text. It never fails: when the
// encoding is unavailable it estimates one token per four characters.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(Encoding)
		if err != nil {
			log.Printf("[tokens] %s unavailable, using heuristic counts: %v", Encoding, err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

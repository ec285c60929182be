package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmpty(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Count(""))
}

func TestCountNonEmpty(t *testing.T) {
	c := NewCounter()
	n := c.Count("func main() { fmt.Println(\"hello world\") }")
	assert.Greater(t, n, 0)
}

func TestCountGrowsWithInput(t *testing.T) {
	c := NewCounter()
	short := c.Count("package main")
	long := c.Count("package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hello\")\n}\n")
	assert.Greater(t, long, short)
}

func TestCountDeterministic(t *testing.T) {
	c := NewCounter()
	text := "def login(user, password): return authenticate(user, password)"
	assert.Equal(t, c.Count(text), c.Count(text))
}

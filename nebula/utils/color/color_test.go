package color

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestStylesArePlainWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	for _, f := range []func(string) string{Prompt, Info, Warning, Error, Assistant, Event} {
		assert.Equal(t, "text", f("text"))
	}
}

func TestStylesWrapWithColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	out := Error("boom")
	assert.Contains(t, out, "boom")
	assert.NotEqual(t, "boom", out)
}

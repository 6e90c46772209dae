package glfwcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMouseTracker(t *testing.T) {
	var m mouseTracker
	assert.Equal(t, [4]float32{0, 0, 0, 0}, m.update(10, 10, false, 100))

	// Press at (20, 30): the click is recorded with a bottom-left origin.
	assert.Equal(t, [4]float32{20, 70, 20, 70}, m.update(20, 30, true, 100))
	// Dragging moves xy, zw keeps the press position.
	assert.Equal(t, [4]float32{25, 60, 20, 70}, m.update(25, 40, true, 100))
	// Release freezes xy and negates zw.
	assert.Equal(t, [4]float32{25, 60, -20, -70}, m.update(50, 50, false, 100))
	assert.Equal(t, [4]float32{25, 60, -20, -70}, m.update(5, 5, false, 100))

	// A new press starts a new click.
	assert.Equal(t, [4]float32{5, 95, 5, 95}, m.update(5, 5, true, 100))
}

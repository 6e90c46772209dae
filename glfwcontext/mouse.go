package glfwcontext

// mouseTracker turns cursor samples into Shadertoy's iMouse: xy is the
// cursor while the button is held, zw the last press position, negated
// once the button is released.
type mouseTracker struct {
	cur   [2]float32
	click [2]float32
	down  bool
}

// update takes the cursor in framebuffer pixels with a top-left origin.
func (m *mouseTracker) update(x, y float64, down bool, fbHeight int) [4]float32 {
	px, py := float32(x), float32(fbHeight)-float32(y)
	if down {
		m.cur = [2]float32{px, py}
		if !m.down {
			m.click = m.cur
		}
	}
	m.down = down
	if !down {
		return [4]float32{m.cur[0], m.cur[1], -m.click[0], -m.click[1]}
	}
	return [4]float32{m.cur[0], m.cur[1], m.click[0], m.click[1]}
}

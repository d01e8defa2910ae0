package pix

// Component is one 4-connected region of a boolean mask.
type Component struct {
	Area       int
	X, Y, W, H int     // bounding box
	CX, CY     float64 // centroid
}

// ConnectedComponents labels 4-connected true regions of a w×h mask and
// returns their stats, largest area first.
func ConnectedComponents(mask []bool, w, h int) []Component {
	if w <= 0 || h <= 0 || len(mask) < w*h {
		return nil
	}
	labels := make([]int32, w*h)
	var comps []Component
	queue := make([]int, 0, 64)

	for start := 0; start < w*h; start++ {
		if !mask[start] || labels[start] != 0 {
			continue
		}
		label := int32(len(comps) + 1)
		labels[start] = label
		queue = queue[:0]
		queue = append(queue, start)

		c := Component{X: start % w, Y: start / w}
		maxX, maxY := c.X, c.Y
		var sumX, sumY int

		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			px, py := p%w, p/w

			c.Area++
			sumX += px
			sumY += py
			if px < c.X {
				c.X = px
			}
			if py < c.Y {
				c.Y = py
			}
			if px > maxX {
				maxX = px
			}
			if py > maxY {
				maxY = py
			}

			if px > 0 && mask[p-1] && labels[p-1] == 0 {
				labels[p-1] = label
				queue = append(queue, p-1)
			}
			if px < w-1 && mask[p+1] && labels[p+1] == 0 {
				labels[p+1] = label
				queue = append(queue, p+1)
			}
			if py > 0 && mask[p-w] && labels[p-w] == 0 {
				labels[p-w] = label
				queue = append(queue, p-w)
			}
			if py < h-1 && mask[p+w] && labels[p+w] == 0 {
				labels[p+w] = label
				queue = append(queue, p+w)
			}
		}

		c.W = maxX - c.X + 1
		c.H = maxY - c.Y + 1
		c.CX = float64(sumX) / float64(c.Area)
		c.CY = float64(sumY) / float64(c.Area)
		comps = append(comps, c)
	}

	// Largest first; callers usually want the dominant cluster.
	for i := 1; i < len(comps); i++ {
		for j := i; j > 0 && comps[j].Area > comps[j-1].Area; j-- {
			comps[j], comps[j-1] = comps[j-1], comps[j]
		}
	}
	return comps
}

// Dilate grows true regions by a square kernel of the given radius,
// applied iterations times. Used to connect nearby pixels into clusters
// before component labeling.
func Dilate(mask []bool, w, h, radius, iterations int) []bool {
	cur := mask
	for it := 0; it < iterations; it++ {
		next := make([]bool, len(cur))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !cur[y*w+x] {
					continue
				}
				for dy := -radius; dy <= radius; dy++ {
					yy := y + dy
					if yy < 0 || yy >= h {
						continue
					}
					for dx := -radius; dx <= radius; dx++ {
						xx := x + dx
						if xx >= 0 && xx < w {
							next[yy*w+xx] = true
						}
					}
				}
			}
		}
		cur = next
	}
	return cur
}

package omr

import "image"

// blob is one 8-connected group of ink pixels inside a band.
type blob struct {
	pixels []image.Point
	bounds image.Rectangle
}

// findBlobs groups the ink pixels of r into 8-connected blobs.
//
// Uses an explicit stack rather than recursion so that a band that is
// entirely ink cannot overflow the goroutine stack.
func findBlobs(m *inkMask, r image.Rectangle) []blob {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	visited := make([]bool, w*h)
	var blobs []blob

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !m.at(x, y) || visited[(y-r.Min.Y)*w+(x-r.Min.X)] {
				continue
			}

			b := blob{bounds: image.Rect(x, y, x+1, y+1)}
			stack := []image.Point{{X: x, Y: y}}
			visited[(y-r.Min.Y)*w+(x-r.Min.X)] = true

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				b.pixels = append(b.pixels, p)
				b.bounds = b.bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p.X+dx, p.Y+dy
						if nx < r.Min.X || nx >= r.Max.X || ny < r.Min.Y || ny >= r.Max.Y {
							continue
						}
						idx := (ny-r.Min.Y)*w + (nx - r.Min.X)
						if visited[idx] || !m.at(nx, ny) {
							continue
						}
						visited[idx] = true
						stack = append(stack, image.Point{X: nx, Y: ny})
					}
				}
			}
			blobs = append(blobs, b)
		}
	}
	return blobs
}

// enclosedArea returns the number of pixels inside the outer boundary of b:
// the blob itself plus any holes it surrounds.
//
// The background is flood filled (4-connected) from a one-pixel frame around
// the blob's bounding box; whatever the fill cannot reach lies inside the blob.
func enclosedArea(b blob) int {
	w, h := b.bounds.Dx()+2, b.bounds.Dy()+2
	origin := b.bounds.Min.Sub(image.Pt(1, 1))

	solid := make([]bool, w*h)
	for _, p := range b.pixels {
		q := p.Sub(origin)
		solid[q.Y*w+q.X] = true
	}

	outside := make([]bool, w*h)
	stack := []image.Point{{}}
	outside[0] = true
	reached := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++

		for _, d := range [4]image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			n := p.Add(d)
			if n.X < 0 || n.X >= w || n.Y < 0 || n.Y >= h {
				continue
			}
			idx := n.Y*w + n.X
			if outside[idx] || solid[idx] {
				continue
			}
			outside[idx] = true
			stack = append(stack, n)
		}
	}
	return w*h - reached
}

// largestBlobArea returns the enclosed area of the biggest blob in r,
// or 0 when r holds no ink.
func largestBlobArea(m *inkMask, r image.Rectangle) int {
	best := 0
	for _, b := range findBlobs(m, r) {
		// The bounding box bounds the enclosed area from above.
		if b.bounds.Dx()*b.bounds.Dy() <= best {
			continue
		}
		if area := enclosedArea(b); area > best {
			best = area
		}
	}
	return best
}

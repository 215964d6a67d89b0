package threshold

// diskOffsets returns the neighborhood offsets of a disk structuring element
// with the given radius, center included.
func diskOffsets(radius float64) [][2]int {
	r := int(radius)
	var offs [][2]int
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dy*dy+dx*dx) <= radius*radius {
				offs = append(offs, [2]int{dy, dx})
			}
		}
	}
	return offs
}

// dilate expands a row-major r×c mask by the structuring element offsets.
// Pixels outside the image contribute nothing.
func dilate(mask []bool, r, c int, offs [][2]int) []bool {
	out := make([]bool, len(mask))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !mask[i*c+j] {
				continue
			}
			for _, o := range offs {
				y, x := i+o[0], j+o[1]
				if y >= 0 && y < r && x >= 0 && x < c {
					out[y*c+x] = true
				}
			}
		}
	}
	return out
}

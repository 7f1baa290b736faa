package frame

// Mirror flips b horizontally in place.
func Mirror(b *Buffer) {
	row := b.Width * 4
	for y := 0; y < b.Height; y++ {
		line := b.Pix[y*row : (y+1)*row]
		for l, r := 0, b.Width-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			line[li], line[ri] = line[ri], line[li]
			line[li+1], line[ri+1] = line[ri+1], line[li+1]
			line[li+2], line[ri+2] = line[ri+2], line[li+2]
			line[li+3], line[ri+3] = line[ri+3], line[li+3]
		}
	}
}

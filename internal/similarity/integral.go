package similarity

import "image"

// table is a summed-area table with one row and column of zero padding, so
// the sum over [x0,x1)x[y0,y1) is t[y1][x1] - t[y0][x1] - t[y1][x0] + t[y0][x0].
// Entries are exact integers, which keeps window sums free of drift.
type table struct {
	stride int
	v      []int64
}

func newTable(w, h int) table {
	return table{stride: w + 1, v: make([]int64, (w+1)*(h+1))}
}

func (t table) at(x, y int) int64 {
	return t.v[y*t.stride+x]
}

// window returns the sum over the WindowSize square whose top-left corner
// is (x, y).
func (t table) window(x, y int) float64 {
	x1, y1 := x+WindowSize, y+WindowSize
	return float64(t.at(x1, y1) - t.at(x1, y) - t.at(x, y1) + t.at(x, y))
}

type integrals struct {
	sum table
	sq  table
}

func newIntegrals(img *image.Gray) integrals {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	in := integrals{sum: newTable(w, h), sq: newTable(w, h)}
	s := in.sum.stride

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		var rowSum, rowSq int64
		for x := 0; x < w; x++ {
			p := int64(row[x])
			rowSum += p
			rowSq += p * p
			i := (y+1)*s + x + 1
			in.sum.v[i] = in.sum.v[i-s] + rowSum
			in.sq.v[i] = in.sq.v[i-s] + rowSq
		}
	}
	return in
}

func newCrossIntegral(a, b *image.Gray) table {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	t := newTable(w, h)

	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(ra[x]) * int64(rb[x])
			i := (y+1)*t.stride + x + 1
			t.v[i] = t.v[i-t.stride] + rowSum
		}
	}
	return t
}

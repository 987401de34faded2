package fourier

// Resize returns a copy of the coefficient vector v with length n, keeping the
// low frequencies at both ends.
//
// The first floor(m/2) entries of the shorter length m stay at the front and
// the remaining entries at the back. Growing inserts zeros in the middle;
// shrinking drops entries from the middle. Growing then shrinking back is the
// identity.
func Resize(v []float64, n int) []float64 {
	out := make([]float64, n)
	m := len(v)
	if n < m {
		m = n
	}
	head := m / 2
	tail := m - head
	copy(out[:head], v[:head])
	copy(out[n-tail:], v[len(v)-tail:])
	return out
}

// Transfer maps coefficients of v, laid out on the retained frequencies of
// from, onto the retained frequencies of to. Frequencies present in both keep
// their value, frequencies new to to are zero. On a 2-D grid the retained
// list is not ordered low-high-low, so matching by position as Resize does
// would pair unrelated frequencies.
//
// When from is nil, v does not match from, or the circular grids differ, it
// falls back to Resize.
func Transfer(v []float64, from, to *Covariance) []float64 {
	if from == nil || len(v) != from.Len() || from.Op.nc != to.Op.nc {
		return Resize(v, to.Len())
	}
	pos := make(map[int]int, len(from.Op.keep))
	for k, id := range from.Op.keep {
		pos[id] = k
	}
	out := make([]float64, to.Len())
	for k, id := range to.Op.keep {
		if j, ok := pos[id]; ok {
			out[k] = v[j]
		}
	}
	return out
}

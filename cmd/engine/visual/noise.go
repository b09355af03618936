package visual

// Noise hashes (seed, tick) to a value in [0, 1). The same inputs give the same
// value on every call, so a frame can be regenerated exactly.
func Noise(seed, tick int64) float64 {
	x := uint64(seed)*0x9E3779B97F4A7C15 ^ uint64(tick)
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return float64(x>>11) / (1 << 53)
}

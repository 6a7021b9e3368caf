package audio

// DownmixMono collapses interleaved N-channel 16-bit PCM to mono. Each output
// sample is the mean of all channel samples at that time index, rounded to the
// nearest integer (halves round toward positive infinity) and clamped to the
// int16 range. Uses int arithmetic to prevent overflow.
//
// For channels <= 1 the input is returned unchanged, as a copy. The returned
// slice is always freshly allocated and never aliases pcm. Trailing bytes that
// do not form a complete sample group are dropped.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out
	}

	// Each sample group is channels * 2 bytes.
	stride := channels * BytesPerSample
	groups := len(pcm) / stride
	out := make([]byte, groups*BytesPerSample)

	for i := range groups {
		base := i * stride
		sum := 0
		for c := range channels {
			off := base + c*BytesPerSample
			sum += int(int16(pcm[off]) | int16(pcm[off+1])<<8)
		}
		avg := roundDiv(sum, channels)

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// roundDiv divides sum by n (n > 0), rounding to the nearest integer with
// halves rounding toward positive infinity. Plain integer division truncates
// toward zero, which is not nearest for magnitudes past one half.
func roundDiv(sum, n int) int {
	num := 2*sum + n
	den := 2 * n
	q := num / den
	if num%den != 0 && num < 0 {
		q--
	}
	return q
}

package analyzer

// DefaultSampleRate is the rate the analysed stream runs at.
const DefaultSampleRate = 44100.0

// Upper band edges in Hz. Everything from VocalsMaxHz up counts as other.
const (
	BassMaxHz   = 250.0
	DrumsMaxHz  = 2000.0
	VocalsMaxHz = 8000.0
)

// BandEnergy is the mean level of each stem band, each in [0, 1].
type BandEnergy struct {
	Bass   float64 `json:"bass"`
	Drums  float64 `json:"drums"`
	Vocals float64 `json:"vocals"`
	Other  float64 `json:"other"`
}

// Bands splits a byte spectrum covering 0 to sampleRate/2 into stem bands and
// averages each one. Bin i starts at i*nyquist/len(spectrum) Hz. Bands without
// bins report 0; a non-positive sampleRate means DefaultSampleRate.
func Bands(spectrum []byte, sampleRate float64) BandEnergy {
	if len(spectrum) == 0 {
		return BandEnergy{}
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	hzPerBin := sampleRate / 2 / float64(len(spectrum))

	var sum, count [4]float64
	for i, v := range spectrum {
		hz := float64(i) * hzPerBin
		band := 3
		switch {
		case hz < BassMaxHz:
			band = 0
		case hz < DrumsMaxHz:
			band = 1
		case hz < VocalsMaxHz:
			band = 2
		}
		sum[band] += float64(v)
		count[band]++
	}
	mean := func(b int) float64 {
		if count[b] == 0 {
			return 0
		}
		return sum[b] / count[b] / 255
	}
	return BandEnergy{Bass: mean(0), Drums: mean(1), Vocals: mean(2), Other: mean(3)}
}

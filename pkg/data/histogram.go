package data

// BinToMs returns the midpoint of a histogram bin in milliseconds
func BinToMs(bin int, binWidth uint32) uint32 {
	return uint32(bin)*binWidth + binWidth/2
}

// CreateHistogram buckets every measured sample into bins of binWidth
// milliseconds. There are 1 + max/binWidth bins; abandoned samples are not
// counted.
func CreateHistogram(r *Ring, binWidth uint32) []uint32 {
	nbins := 1 + r.Max()/binWidth
	histogram := make([]uint32, nbins)

	r.Each(func(s Sample) {
		if ms, ok := s.Millis(); ok {
			histogram[ms/binWidth]++
		}
	})

	return histogram
}

// EstimateXm returns the Pareto scale parameter as the population weighted
// average of the numModes most frequent bins. A mode is the first maximal bin
// found in a left-to-right scan, so ties go to the lowest bin.
//
// We are not a true Pareto curve, so the mode rather than the minimum is used.
func EstimateXm(r *Ring, binWidth uint32, numModes int) (uint32, error) {
	if numModes <= 0 {
		return 0, NewDataError(nil, "number of modes must be at least 1, found %d", numModes)
	}

	histogram := CreateHistogram(r, binWidth)

	var xmTotal, xmCounts uint64
	for n := 0; n < numModes; n++ {
		maxBin := 0
		for i := range histogram {
			if histogram[i] > histogram[maxBin] {
				maxBin = i
			}
		}

		xmCounts += uint64(histogram[maxBin])
		xmTotal += uint64(BinToMs(maxBin, binWidth)) * uint64(histogram[maxBin])

		// Prevent from re-counting this bin
		histogram[maxBin] = 0
	}

	if xmCounts == 0 {
		return 0, NewDataError(ErrNoValidData, "no valid build times out of %d samples, %d modes", r.Total(), numModes)
	}

	return uint32(xmTotal / xmCounts), nil
}

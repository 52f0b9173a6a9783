package binarize

import "image"

// OtsuThreshold returns the luma level that best separates the histogram
// of lum into two classes. Pixels at or below the level form the dark
// class.
func OtsuThreshold(lum *image.Gray) uint8 {
	const bins = 256
	var histogram [bins]int
	w, h := lum.Rect.Dx(), lum.Rect.Dy()
	for y := range h {
		for _, v := range lum.Pix[y*lum.Stride : y*lum.Stride+w] {
			histogram[v]++
		}
	}
	totalPixels := w * h
	if totalPixels == 0 {
		return 127
	}

	var totalSum float64
	for i, n := range histogram {
		totalSum += float64(i) * float64(n)
	}

	var maxVariance, sumB float64
	bestThreshold := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := totalPixels - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		// Between-class variance
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}
	return uint8(bestThreshold) //nolint:gosec // G115: t < 256
}

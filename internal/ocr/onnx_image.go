package ocr

import (
	"image"
	"image/draw"
	"math"
	"strings"

	"github.com/nfnt/resize"
)

const (
	recHeight   = 48
	recMaxWidth = 1280
	unclipRatio = 1.5
)

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// detectorSize scales w×h so the longest side is at most limit and both sides are
// multiples of 32, as the DB detector requires.
func detectorSize(w, h, limit int) (int, int) {
	ratio := 1.0
	if longest := max(w, h); longest > limit {
		ratio = float64(limit) / float64(longest)
	}
	round32 := func(v int) int {
		return max(32, int(math.Round(float64(v)*ratio/32))*32)
	}
	return round32(w), round32(h)
}

// detectorInput resizes img and lays it out as ImageNet-normalised CHW floats.
func detectorInput(img image.Image, w, h int) []float32 {
	resized := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	return chw(resized, func(v float32, ch int) float32 {
		return (v - imagenetMean[ch]) / imagenetStd[ch]
	})
}

func recognizerWidth(bw, bh int) int {
	if bh <= 0 {
		return 1
	}
	w := int(math.Ceil(float64(recHeight) * float64(bw) / float64(bh)))
	return min(max(w, 8), recMaxWidth)
}

// recognizerInput crops box, scales it to the recogniser height and normalises
// samples to [-1, 1].
func recognizerInput(img image.Image, box image.Rectangle, w int) []float32 {
	crop := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(crop, crop.Bounds(), img, box.Min, draw.Src)
	resized := resize.Resize(uint(w), recHeight, crop, resize.Bilinear)
	return chw(resized, func(v float32, _ int) float32 {
		return (v - 0.5) / 0.5
	})
}

func chw(img image.Image, norm func(v float32, ch int) float32) []float32 {
	b := img.Bounds()
	plane := b.Dx() * b.Dy()
	data := make([]float32, 3*plane)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data[i] = norm(float32(r>>8)/255, 0)
			data[plane+i] = norm(float32(g>>8)/255, 1)
			data[2*plane+i] = norm(float32(bl>>8)/255, 2)
			i++
		}
	}
	return data
}

// boxesFromMap thresholds a w×h probability map and returns the bounding box of
// every 4-connected region whose mean probability reaches boxThreshold, grown by
// the unclip distance. Boxes are in map coordinates, in row-major discovery order.
func boxesFromMap(probs []float32, w, h int, threshold, boxThreshold float64) []image.Rectangle {
	if len(probs) < w*h {
		return nil
	}
	seen := make([]bool, w*h)
	var boxes []image.Rectangle
	var queue []int

	for start := 0; start < w*h; start++ {
		if seen[start] || float64(probs[start]) <= threshold {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)

		minX, minY, maxX, maxY := w, h, -1, -1
		var sum float64
		count := 0
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := p%w, p/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			sum += float64(probs[p])
			count++

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				q := ny*w + nx
				if seen[q] || float64(probs[q]) <= threshold {
					continue
				}
				seen[q] = true
				queue = append(queue, q)
			}
		}

		bw, bh := maxX-minX+1, maxY-minY+1
		if min(bw, bh) < 3 || sum/float64(count) < boxThreshold {
			continue
		}

		d := int(math.Round(float64(bw*bh) * unclipRatio / float64(2*(bw+bh))))
		box := image.Rect(minX-d, minY-d, maxX+1+d, maxY+1+d)
		boxes = append(boxes, box.Intersect(image.Rect(0, 0, w, h)))
	}
	return boxes
}

func scaleBox(r image.Rectangle, sx, sy float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*sx)),
		int(math.Floor(float64(r.Min.Y)*sy)),
		int(math.Ceil(float64(r.Max.X)*sx)),
		int(math.Ceil(float64(r.Max.Y)*sy)),
	)
}

// ctcDecode greedily decodes a steps×classes probability matrix. Repeats collapse,
// class 0 is the blank, and confidence is the mean probability of the emitted
// characters.
func ctcDecode(probs []float32, steps, classes int, dict []string) (string, float64) {
	var (
		b    strings.Builder
		conf float64
		n    int
		prev = -1
	)
	for t := 0; t < steps; t++ {
		row := probs[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev && best-1 < len(dict) {
			b.WriteString(dict[best-1])
			conf += float64(row[best])
			n++
		}
		prev = best
	}
	if n == 0 {
		return "", 0
	}
	return strings.TrimSpace(b.String()), conf / float64(n)
}

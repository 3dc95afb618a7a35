package algorithms

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"gonum.org/v1/gonum/interp"

	"arena-nav/models"
)

// SmoothOptions controls spline smoothing.
type SmoothOptions struct {
	Stride  int // 제어점 간격 (2 = 절반으로 줄임)
	Samples int // 최소 출력 점 개수
}

// DefaultSmoothOptions - 기본값 (절반 감축, 100점)
func DefaultSmoothOptions() SmoothOptions {
	return SmoothOptions{Stride: 2, Samples: 100}
}

// Smooth fits parametric natural cubic splines through a decimated copy of path and resamples
// them. Paths shorter than three points come back unchanged. The first and last output points
// are always the first and last input points.
func Smooth(path []models.Point, opts SmoothOptions) []models.Point {
	if len(path) < 3 {
		return append([]models.Point(nil), path...)
	}
	if opts.Stride < 1 {
		opts.Stride = 1
	}

	controls := decimate(dedupe(path), opts.Stride)
	if len(controls) < 3 {
		return controls
	}

	// 누적 현 길이로 [0,1] 매개변수화
	ts := make([]float64, len(controls))
	xs := make([]float64, len(controls))
	ys := make([]float64, len(controls))
	for i, p := range controls {
		xs[i], ys[i] = p.X, p.Y
		if i > 0 {
			ts[i] = ts[i-1] + controls[i-1].DistanceTo(p)
		}
	}
	total := ts[len(ts)-1]
	for i := range ts {
		ts[i] /= total
	}
	ts[len(ts)-1] = 1

	var fx, fy interp.NaturalCubic
	if err := fx.Fit(ts, xs); err != nil {
		return controls
	}
	if err := fy.Fit(ts, ys); err != nil {
		return controls
	}

	n := max(2*len(controls), opts.Samples)
	out := make([]models.Point, n)
	for i := range out {
		t := float64(i) / float64(n-1)
		out[i] = models.Point{X: fx.Predict(t), Y: fy.Predict(t)}
	}
	out[0] = path[0]
	out[n-1] = path[len(path)-1]
	return out
}

// dedupe - 연속 중복점 제거
func dedupe(path []models.Point) []models.Point {
	out := make([]models.Point, 0, len(path))
	for i, p := range path {
		if i > 0 && p.DistanceTo(out[len(out)-1]) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// decimate - stride 간격으로 제어점 추출 (양 끝점 유지)
func decimate(path []models.Point, stride int) []models.Point {
	if stride <= 1 || len(path) < 3 {
		return path
	}
	out := make([]models.Point, 0, len(path)/stride+2)
	for i := 0; i < len(path)-1; i += stride {
		out = append(out, path[i])
	}
	return append(out, path[len(path)-1])
}

// toLineString - orb 타입으로 변환
func toLineString(path []models.Point) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, p := range path {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// PathLength - 경로 총 길이
func PathLength(path []models.Point) float64 {
	if len(path) < 2 {
		return 0
	}
	return planar.Length(toLineString(path))
}

// Simplify reduces a dense path to its corner points with Douglas-Peucker. Endpoints are kept.
func Simplify(path []models.Point, tolerance float64) []models.Point {
	if len(path) < 3 || tolerance <= 0 {
		return append([]models.Point(nil), path...)
	}
	ls := simplify.DouglasPeucker(tolerance).LineString(toLineString(path).Clone())
	out := make([]models.Point, len(ls))
	for i, p := range ls {
		out[i] = models.Point{X: p[0], Y: p[1]}
	}
	return out
}

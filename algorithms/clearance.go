package algorithms

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"arena-nav/models"
)

// wallEntry wraps a wall for R-tree storage
type wallEntry struct {
	wall models.Wall
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (w *wallEntry) Bounds() rtreego.Rect {
	return w.bbox
}

// WallIndex answers nearest-wall distance queries over the arena walls and border.
type WallIndex struct {
	tree  *rtreego.Rtree
	reach float64 // 최대 검색 반경
}

// NewWallIndex - 벽 + 외곽으로 R-tree 구성
func NewWallIndex(arena *models.Arena) *WallIndex {
	tree := rtreego.NewTree(2, 2, 8)

	walls := append(arena.Boundary(), arena.Walls...)
	for _, w := range walls {
		bbox, err := segmentBounds(w)
		if err != nil {
			continue
		}
		tree.Insert(&wallEntry{wall: w, bbox: bbox})
	}

	return &WallIndex{
		tree:  tree,
		reach: math.Hypot(arena.Width, arena.Height),
	}
}

// segmentBounds - 선분의 경계 상자 (길이 0 축은 최소 폭 부여)
func segmentBounds(w models.Wall) (rtreego.Rect, error) {
	const pad = 1e-6
	minX, maxX := math.Min(w.Start.X, w.End.X), math.Max(w.Start.X, w.End.X)
	minY, maxY := math.Min(w.Start.Y, w.End.Y), math.Max(w.Start.Y, w.End.Y)
	return rtreego.NewRect(
		rtreego.Point{minX - pad, minY - pad},
		[]float64{maxX - minX + 2*pad, maxY - minY + 2*pad},
	)
}

// Clearance returns the distance from p to the nearest wall or border segment. The search
// window doubles until it contains a candidate.
func (wi *WallIndex) Clearance(p models.Point) float64 {
	if !p.IsFinite() {
		return 0
	}
	for r := 64.0; ; r *= 2 {
		window, err := rtreego.NewRect(rtreego.Point{p.X - r, p.Y - r}, []float64{2 * r, 2 * r})
		if err != nil {
			return 0
		}
		candidates := wi.tree.SearchIntersect(window)
		best := math.Inf(1)
		for _, c := range candidates {
			best = math.Min(best, SegmentDistance(p, c.(*wallEntry).wall))
		}
		// 창 안에서 찾은 최단 거리가 r 이하면 창 밖의 벽이 더 가까울 수 없음
		if best <= r || r > 2*wi.reach {
			return best
		}
	}
}

// MinClearance - 경로 전체의 최소 여유 거리
func (wi *WallIndex) MinClearance(path []models.Point) float64 {
	best := math.Inf(1)
	for _, p := range path {
		best = math.Min(best, wi.Clearance(p))
	}
	return best
}

// SegmentDistance - 점에서 선분까지 최단 거리
func SegmentDistance(p models.Point, w models.Wall) float64 {
	dx := w.End.X - w.Start.X
	dy := w.End.Y - w.Start.Y
	if dx == 0 && dy == 0 {
		return p.DistanceTo(w.Start)
	}

	t := ((p.X-w.Start.X)*dx + (p.Y-w.Start.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	proj := models.Point{X: w.Start.X + t*dx, Y: w.Start.Y + t*dy}
	return p.DistanceTo(proj)
}

// Package algorithms contains the planning primitives: occupancy grid, grid A*,
// spline smoothing and the wall clearance index.
package algorithms

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"arena-nav/models"
)

// 오류 정의
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoFreeCell    = errors.New("no free cell reachable")
	ErrNoPath        = errors.New("no path between cells")
)

// MaxGridCells - 그리드 셀 수 상한 (20m x 20m 경기장, 10mm 셀)
const MaxGridCells = 4_000_000

// GridCell - 그리드 좌표 (row = y, col = x)
type GridCell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// 8방향 이웃 (상하좌우 + 대각선)
var directions = [8]GridCell{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// OccupancyGrid is a rasterized, inflated view of an arena. It is read-only once built.
type OccupancyGrid struct {
	rows     int
	cols     int
	cellSize float64
	radius   int      // 팽창 반경 (셀)
	raw      [][]bool // 벽/외곽 래스터 (팽창 전)
	blocked  [][]bool // 팽창 후 점유
}

// NewOccupancyGrid - 경기장으로부터 점유 그리드 생성
func NewOccupancyGrid(arena *models.Arena, cellSize float64) (*OccupancyGrid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "cell size must be positive, got %v", cellSize)
	}
	if arena == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "arena is nil")
	}
	if err := arena.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	rows, cols := math.Ceil(arena.Height/cellSize), math.Ceil(arena.Width/cellSize)
	if rows*cols > MaxGridCells {
		return nil, errors.Wrapf(ErrInvalidConfig, "grid of %.0fx%.0f cells exceeds the %d cell limit", cols, rows, MaxGridCells)
	}
	radius := math.Ceil(arena.RobotRadius / cellSize)
	if radius > math.Max(rows, cols) {
		return nil, errors.Wrapf(ErrInvalidConfig, "robot radius of %.0f cells exceeds the %.0fx%.0f grid", radius, cols, rows)
	}

	g := &OccupancyGrid{
		rows:     int(rows),
		cols:     int(cols),
		cellSize: cellSize,
		radius:   int(radius),
	}
	g.raw = newBoolGrid(g.rows, g.cols)
	g.blocked = newBoolGrid(g.rows, g.cols)

	for _, w := range arena.Walls {
		g.rasterize(w)
	}
	g.markBorder()
	g.inflate()
	return g, nil
}

func newBoolGrid(rows, cols int) [][]bool {
	backing := make([]bool, rows*cols)
	grid := make([][]bool, rows)
	for r := range grid {
		grid[r] = backing[r*cols : (r+1)*cols]
	}
	return grid
}

// rasterize - 선분 위에 max(|Δrow|,|Δcol|)+1 개 샘플을 찍어 셀 표시
func (g *OccupancyGrid) rasterize(w models.Wall) {
	a := g.CellAt(w.Start)
	b := g.CellAt(w.End)
	n := max(abs(b.Row-a.Row), abs(b.Col-a.Col)) + 1

	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		p := models.Point{
			X: w.Start.X + t*(w.End.X-w.Start.X),
			Y: w.Start.Y + t*(w.End.Y-w.Start.Y),
		}
		c := g.CellAt(p)
		g.raw[c.Row][c.Col] = true
	}
}

// markBorder - 외곽 셀 전부 점유
func (g *OccupancyGrid) markBorder() {
	for c := 0; c < g.cols; c++ {
		g.raw[0][c] = true
		g.raw[g.rows-1][c] = true
	}
	for r := 0; r < g.rows; r++ {
		g.raw[r][0] = true
		g.raw[r][g.cols-1] = true
	}
}

// inflate - 로봇 반경만큼 장애물 확장 (유클리드 원판)
func (g *OccupancyGrid) inflate() {
	var disc []GridCell
	for dr := -g.radius; dr <= g.radius; dr++ {
		for dc := -g.radius; dc <= g.radius; dc++ {
			if dr*dr+dc*dc <= g.radius*g.radius {
				disc = append(disc, GridCell{dr, dc})
			}
		}
	}

	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if !g.raw[r][c] {
				continue
			}
			for _, d := range disc {
				n := GridCell{r + d.Row, c + d.Col}
				if g.InBounds(n) {
					g.blocked[n.Row][n.Col] = true
				}
			}
		}
	}
}

// Rows - 행 개수
func (g *OccupancyGrid) Rows() int { return g.rows }

// Cols - 열 개수
func (g *OccupancyGrid) Cols() int { return g.cols }

// CellSize - 셀 크기 (mm)
func (g *OccupancyGrid) CellSize() float64 { return g.cellSize }

// InflationRadius - 팽창 반경 (셀)
func (g *OccupancyGrid) InflationRadius() int { return g.radius }

// InBounds - 그리드 범위 내 검사
func (g *OccupancyGrid) InBounds(c GridCell) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// Blocked reports whether the cell is occupied after inflation. Out-of-bounds cells are blocked.
func (g *OccupancyGrid) Blocked(c GridCell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.blocked[c.Row][c.Col]
}

// Free - 이동 가능 셀
func (g *OccupancyGrid) Free(c GridCell) bool {
	return !g.Blocked(c)
}

// Raw reports whether the cell was marked by a wall or the border before inflation.
func (g *OccupancyGrid) Raw(c GridCell) bool {
	return g.InBounds(c) && g.raw[c.Row][c.Col]
}

// CellAt - 월드 좌표 → 그리드 좌표 (범위 밖은 가장자리로 고정)
func (g *OccupancyGrid) CellAt(p models.Point) GridCell {
	return GridCell{
		Row: clamp(int(math.Floor(p.Y/g.cellSize)), 0, g.rows-1),
		Col: clamp(int(math.Floor(p.X/g.cellSize)), 0, g.cols-1),
	}
}

// CellCenter - 그리드 좌표 → 셀 중심 월드 좌표
func (g *OccupancyGrid) CellCenter(c GridCell) models.Point {
	return models.Point{
		X: (float64(c.Col) + 0.5) * g.cellSize,
		Y: (float64(c.Row) + 0.5) * g.cellSize,
	}
}

// PointFree - 점이 속한 셀이 비어있는지
func (g *OccupancyGrid) PointFree(p models.Point) bool {
	return p.IsFinite() && g.Free(g.CellAt(p))
}

// NearestFreeCell snaps a world point to a free cell. A point already in a free cell maps to
// that cell; otherwise an 8-connected BFS returns the first free cell found. It reports false
// when the point is not finite or no free cell exists.
func (g *OccupancyGrid) NearestFreeCell(p models.Point) (GridCell, bool) {
	if !p.IsFinite() {
		return GridCell{}, false
	}
	start := g.CellAt(p)
	if g.Free(start) {
		return start, true
	}

	visited := newBoolGrid(g.rows, g.cols)
	visited[start.Row][start.Col] = true
	queue := []GridCell{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, d := range directions {
			n := GridCell{current.Row + d.Row, current.Col + d.Col}
			if !g.InBounds(n) || visited[n.Row][n.Col] {
				continue
			}
			if g.Free(n) {
				return n, true
			}
			visited[n.Row][n.Col] = true
			queue = append(queue, n)
		}
	}
	return GridCell{}, false
}

// FreeCount - 빈 셀 개수
func (g *OccupancyGrid) FreeCount() int {
	count := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if !g.blocked[r][c] {
				count++
			}
		}
	}
	return count
}

// String renders the grid top row first: '#' raw obstacle, '+' inflation, '.' free.
func (g *OccupancyGrid) String() string {
	var sb strings.Builder
	sb.Grow((g.cols + 1) * g.rows)
	for r := g.rows - 1; r >= 0; r-- {
		for c := 0; c < g.cols; c++ {
			switch {
			case g.raw[r][c]:
				sb.WriteByte('#')
			case g.blocked[r][c]:
				sb.WriteByte('+')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package algorithms

import (
	"container/heap"
	"math"

	"github.com/samber/lo"

	"arena-nav/models"
)

// Node - A* 노드
type Node struct {
	cell  GridCell
	g, f  float64
	index int // for heap
}

// PriorityQueue - A* 우선순위 큐 (f 오름차순, 동점이면 g가 큰 쪽 우선)
type PriorityQueue []*Node

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].f == pq[j].f {
		return pq[i].g > pq[j].g
	}
	return pq[i].f < pq[j].f
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	node := x.(*Node)
	node.index = n
	*pq = append(*pq, node)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*pq = old[0 : n-1]
	return node
}

// heuristic - 유클리드 거리 (셀 단위)
func heuristic(a, b GridCell) float64 {
	return math.Hypot(float64(a.Row-b.Row), float64(a.Col-b.Col))
}

// stepCost - 직교 1, 대각선 √2
func stepCost(d GridCell) float64 {
	if d.Row != 0 && d.Col != 0 {
		return math.Sqrt2
	}
	return 1
}

// FindPath runs A* over the 8-connected grid. The returned cells run from start to goal
// inclusive; the bool is false when either endpoint is blocked or the goal is unreachable.
func FindPath(grid *OccupancyGrid, start, goal GridCell) ([]GridCell, bool) {
	if grid.Blocked(start) || grid.Blocked(goal) {
		return nil, false
	}
	if start == goal {
		return []GridCell{start}, true
	}

	rows, cols := grid.Rows(), grid.Cols()
	idx := func(c GridCell) int { return c.Row*cols + c.Col }

	gScore := make([]float64, rows*cols)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int, rows*cols)
	closed := make([]bool, rows*cols)

	openSet := make(PriorityQueue, 0, 64)
	heap.Init(&openSet)
	gScore[idx(start)] = 0
	cameFrom[idx(start)] = -1
	heap.Push(&openSet, &Node{cell: start, g: 0, f: heuristic(start, goal)})

	for openSet.Len() > 0 {
		current := heap.Pop(&openSet).(*Node)
		ci := idx(current.cell)
		if closed[ci] {
			continue
		}
		closed[ci] = true

		// 목표 도달
		if current.cell == goal {
			return reconstructPath(cameFrom, ci, cols), true
		}

		for _, d := range directions {
			n := GridCell{current.cell.Row + d.Row, current.cell.Col + d.Col}
			if grid.Blocked(n) {
				continue
			}
			ni := idx(n)
			if closed[ni] {
				continue
			}

			tentativeG := current.g + stepCost(d)
			if tentativeG >= gScore[ni] {
				continue
			}
			gScore[ni] = tentativeG
			cameFrom[ni] = ci
			heap.Push(&openSet, &Node{cell: n, g: tentativeG, f: tentativeG + heuristic(n, goal)})
		}
	}

	// 경로 없음
	return nil, false
}

// reconstructPath - 선행 노드를 따라 경로 재구성
func reconstructPath(cameFrom []int, goal, cols int) []GridCell {
	var path []GridCell
	for i := goal; i != -1; i = cameFrom[i] {
		path = append(path, GridCell{Row: i / cols, Col: i % cols})
	}
	return lo.Reverse(path)
}

// PathCost - 셀 경로의 총 이동 비용
func PathCost(cells []GridCell) float64 {
	cost := 0.0
	for i := 1; i < len(cells); i++ {
		cost += stepCost(GridCell{cells[i].Row - cells[i-1].Row, cells[i].Col - cells[i-1].Col})
	}
	return cost
}

// CellsToWorld converts a cell path to cell-centre world points, then pins the first and last
// points to the caller's exact start and end.
func CellsToWorld(grid *OccupancyGrid, cells []GridCell, start, end models.Point) []models.Point {
	if len(cells) == 0 {
		return nil
	}
	points := lo.Map(cells, func(c GridCell, _ int) models.Point {
		return grid.CellCenter(c)
	})
	points[0] = start
	if len(points) == 1 {
		return append(points, end)
	}
	points[len(points)-1] = end
	return points
}

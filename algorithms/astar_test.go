package algorithms

import (
	"math"
	"testing"

	"go.viam.com/test"

	"arena-nav/models"
)

// dijkstraCost - 비교용 단순 O(n²) 다익스트라
func dijkstraCost(grid *OccupancyGrid, start, goal GridCell) (float64, bool) {
	n := grid.Rows() * grid.Cols()
	idx := func(c GridCell) int { return c.Row*grid.Cols() + c.Col }
	dist := make([]float64, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[idx(start)] = 0

	for {
		best := -1
		for i := 0; i < n; i++ {
			if !done[i] && !math.IsInf(dist[i], 1) && (best < 0 || dist[i] < dist[best]) {
				best = i
			}
		}
		if best < 0 {
			return 0, false
		}
		done[best] = true
		cur := GridCell{Row: best / grid.Cols(), Col: best % grid.Cols()}
		if cur == goal {
			return dist[best], true
		}
		for _, d := range directions {
			nb := GridCell{cur.Row + d.Row, cur.Col + d.Col}
			if grid.Blocked(nb) {
				continue
			}
			if alt := dist[best] + stepCost(d); alt < dist[idx(nb)] {
				dist[idx(nb)] = alt
			}
		}
	}
}

func mazeArena() *models.Arena {
	return &models.Arena{
		Width:  2000,
		Height: 1200,
		Walls: []models.Wall{
			{Start: models.Point{X: 500, Y: 0}, End: models.Point{X: 500, Y: 800}},
			{Start: models.Point{X: 1000, Y: 1200}, End: models.Point{X: 1000, Y: 400}},
			{Start: models.Point{X: 1500, Y: 0}, End: models.Point{X: 1500, Y: 700}},
			{Start: models.Point{X: 1200, Y: 900}, End: models.Point{X: 1800, Y: 1000}},
		},
		RobotRadius: 90,
	}
}

func TestFindPathMatchesReferenceCost(t *testing.T) {
	grid, err := NewOccupancyGrid(mazeArena(), 50)
	test.That(t, err, test.ShouldBeNil)

	pairs := [][2]models.Point{
		{{X: 200, Y: 200}, {X: 1800, Y: 200}},
		{{X: 200, Y: 1000}, {X: 1700, Y: 600}},
		{{X: 750, Y: 300}, {X: 1250, Y: 700}},
		{{X: 1800, Y: 800}, {X: 150, Y: 150}},
	}
	for _, pair := range pairs {
		start := grid.CellAt(pair[0])
		goal := grid.CellAt(pair[1])
		test.That(t, grid.Free(start), test.ShouldBeTrue)
		test.That(t, grid.Free(goal), test.ShouldBeTrue)

		cells, ok := FindPath(grid, start, goal)
		want, reachable := dijkstraCost(grid, start, goal)
		test.That(t, ok, test.ShouldEqual, reachable)
		if !ok {
			continue
		}
		test.That(t, cells[0], test.ShouldResemble, start)
		test.That(t, cells[len(cells)-1], test.ShouldResemble, goal)
		test.That(t, PathCost(cells), test.ShouldAlmostEqual, want, 1e-9)

		for i, c := range cells {
			test.That(t, grid.Free(c), test.ShouldBeTrue)
			if i == 0 {
				continue
			}
			dr, dc := abs(c.Row-cells[i-1].Row), abs(c.Col-cells[i-1].Col)
			test.That(t, dr <= 1 && dc <= 1 && dr+dc > 0, test.ShouldBeTrue)
		}
	}
}

func TestFindPathSymmetricCost(t *testing.T) {
	grid, err := NewOccupancyGrid(gapArena(), 100)
	test.That(t, err, test.ShouldBeNil)

	a := GridCell{Row: 5, Col: 40}
	b := GridCell{Row: 15, Col: 5}
	there, ok := FindPath(grid, a, b)
	test.That(t, ok, test.ShouldBeTrue)
	back, ok := FindPath(grid, b, a)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, PathCost(there), test.ShouldAlmostEqual, PathCost(back), 1e-9)
}

func TestFindPathEdgeCases(t *testing.T) {
	grid, err := NewOccupancyGrid(gapArena(), 100)
	test.That(t, err, test.ShouldBeNil)

	t.Run("start equals goal", func(t *testing.T) {
		cells, ok := FindPath(grid, GridCell{10, 30}, GridCell{10, 30})
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, cells, test.ShouldResemble, []GridCell{{10, 30}})
		test.That(t, PathCost(cells), test.ShouldEqual, 0.0)
	})

	t.Run("blocked endpoint", func(t *testing.T) {
		_, ok := FindPath(grid, GridCell{0, 0}, GridCell{10, 30})
		test.That(t, ok, test.ShouldBeFalse)
		_, ok = FindPath(grid, GridCell{10, 30}, GridCell{5, 10})
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("out of bounds endpoint", func(t *testing.T) {
		_, ok := FindPath(grid, GridCell{-1, 5}, GridCell{10, 30})
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("disconnected regions", func(t *testing.T) {
		closed := gapArena()
		closed.Walls = append(closed.Walls, models.Wall{
			Start: models.Point{X: 1000, Y: 1000}, End: models.Point{X: 1000, Y: 2000},
		})
		sealed, err := NewOccupancyGrid(closed, 100)
		test.That(t, err, test.ShouldBeNil)
		_, ok := FindPath(sealed, GridCell{5, 40}, GridCell{15, 5})
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestCellsToWorld(t *testing.T) {
	grid, err := NewOccupancyGrid(gapArena(), 100)
	test.That(t, err, test.ShouldBeNil)

	start := models.Point{X: 2012, Y: 1501}
	end := models.Point{X: 2290, Y: 1530}
	points := CellsToWorld(grid, []GridCell{{15, 20}, {15, 21}, {15, 22}}, start, end)
	test.That(t, points, test.ShouldHaveLength, 3)
	test.That(t, points[0], test.ShouldResemble, start)
	test.That(t, points[1], test.ShouldResemble, models.Point{X: 2150, Y: 1550})
	test.That(t, points[2], test.ShouldResemble, end)

	single := CellsToWorld(grid, []GridCell{{15, 20}}, start, start)
	test.That(t, single, test.ShouldResemble, []models.Point{start, start})

	test.That(t, CellsToWorld(grid, nil, start, end), test.ShouldBeNil)
}

func BenchmarkFindPath(b *testing.B) {
	grid, err := NewOccupancyGrid(gapArena(), 50)
	if err != nil {
		b.Fatal(err)
	}
	start := grid.CellAt(models.Point{X: 4000, Y: 500})
	goal := grid.CellAt(models.Point{X: 500, Y: 1500})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FindPath(grid, start, goal)
	}
}

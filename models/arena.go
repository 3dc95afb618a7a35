package models

import (
	"fmt"
	"math"
	"time"
)

// Point - 월드 좌표 (mm)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo - 두 점 사이 거리
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// IsFinite - NaN/Inf 여부 검사
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Wall represents a line-segment obstacle in the arena
type Wall struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Goal represents a rectangular goal area (display only, lower-left anchored)
type Goal struct {
	ID       int     `json:"id"`
	Position Point   `json:"position"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Arena represents the playing field. Immutable once built; replace it to change walls.
type Arena struct {
	ID          string    `json:"id"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Walls       []Wall    `json:"walls"`
	Goals       []Goal    `json:"goals,omitempty"`
	RobotRadius float64   `json:"robot_radius"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate - 경기장 설정 검사
func (a *Arena) Validate() error {
	if !(a.Width > 0) || !(a.Height > 0) || math.IsInf(a.Width, 0) || math.IsInf(a.Height, 0) {
		return fmt.Errorf("arena dimensions must be positive, got %vx%v", a.Width, a.Height)
	}
	if !(a.RobotRadius > 0) {
		return fmt.Errorf("robot radius must be positive, got %v", a.RobotRadius)
	}
	for i, w := range a.Walls {
		if !w.Start.IsFinite() || !w.End.IsFinite() {
			return fmt.Errorf("wall %d has a non-finite endpoint", i)
		}
	}
	return nil
}

// Contains - 점이 경기장 내부인지 검사
func (a *Arena) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= a.Width && p.Y <= a.Height
}

// Boundary - 경기장 외곽 네 변
func (a *Arena) Boundary() []Wall {
	bl := Point{0, 0}
	br := Point{a.Width, 0}
	tr := Point{a.Width, a.Height}
	tl := Point{0, a.Height}
	return []Wall{{bl, br}, {br, tr}, {tr, tl}, {tl, bl}}
}

// ArenaMessage is the static part of the telemetry stream (sent once per connection / arena change)
type ArenaMessage struct {
	ArenaID     string  `json:"arena_id"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	CellSize    float64 `json:"cell_size"`
	Walls       []Wall  `json:"walls"`
	Goals       []Goal  `json:"goals"`
	RobotRadius float64 `json:"robot_radius"`
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// ErrUnreachable - 시작점/목적지 스냅 실패 또는 경로 없음
var ErrUnreachable = errors.New("destination unreachable")

// UnreachableError reports which planning stage failed. It matches ErrUnreachable and unwraps
// to the algorithms error behind it.
type UnreachableError struct {
	Stage string // "start" | "destination" | "search"
	Point models.Point
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%v: %s (%.1f, %.1f): %v", ErrUnreachable, e.Stage, e.Point.X, e.Point.Y, e.Cause)
}

// Is - errors.Is(err, ErrUnreachable) 지원
func (e *UnreachableError) Is(target error) bool {
	return target == ErrUnreachable
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// PlannerConfig - 경로 계획 설정
type PlannerConfig struct {
	CellSize float64
	Smooth   algorithms.SmoothOptions
	NoSmooth bool // 스플라인 생략 (그리드 경로 그대로)
}

// DefaultPlannerConfig - 기본 계획 설정 (100mm 셀)
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		CellSize: 100,
		Smooth:   algorithms.DefaultSmoothOptions(),
	}
}

// Plan - 계획 결과
type Plan struct {
	ID          string
	Start       models.Point
	Destination models.Point
	Raw         []models.Point // 그리드 셀 중심 경로
	Points      []models.Point // 실제로 따라갈 경로
	GridCost    float64        // 셀 단위 비용
	Length      float64        // mm
	Clearance   float64        // 경로상 최소 벽 거리 (mm)
	Smoothed    bool
	Took        time.Duration
	CreatedAt   time.Time
}

// PathData - 웹소켓/HTTP 응답 형식
func (p *Plan) PathData() models.PathData {
	return models.PathData{
		PlanID:    p.ID,
		Points:    p.Points,
		Length:    p.Length,
		GridCost:  p.GridCost,
		Smoothed:  p.Smoothed,
		Algorithm: "a_star",
		CreatedAt: p.CreatedAt,
	}
}

// Planner - 경기장 하나에 대한 경로 계획 서비스 (그리드는 생성 시 한 번만 구축)
type Planner struct {
	arena   *models.Arena
	grid    *algorithms.OccupancyGrid
	walls   *algorithms.WallIndex
	cfg     PlannerConfig
	logger  *zap.SugaredLogger
	metrics *Metrics
}

// NewPlanner - 점유 그리드와 벽 인덱스 구축
func NewPlanner(arena *models.Arena, cfg PlannerConfig, logger *zap.SugaredLogger, metrics *Metrics) (*Planner, error) {
	grid, err := algorithms.NewOccupancyGrid(arena, cfg.CellSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Debugf("🗺️ 점유 그리드 구축: %dx%d 셀 (cell=%.0fmm, 팽창=%d, 빈 셀=%d)",
		grid.Cols(), grid.Rows(), grid.CellSize(), grid.InflationRadius(), grid.FreeCount())

	return &Planner{
		arena:   arena,
		grid:    grid,
		walls:   algorithms.NewWallIndex(arena),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Arena - 계획 대상 경기장
func (p *Planner) Arena() *models.Arena { return p.arena }

// Grid - 점유 그리드 (읽기 전용)
func (p *Planner) Grid() *algorithms.OccupancyGrid { return p.grid }

// Clearance - 가장 가까운 벽까지 거리
func (p *Planner) Clearance(pt models.Point) float64 {
	return p.walls.Clearance(pt)
}

// ArenaMessage - 정적 경기장 정보 메시지
func (p *Planner) ArenaMessage() models.ArenaMessage {
	return models.ArenaMessage{
		ArenaID:     p.arena.ID,
		Width:       p.arena.Width,
		Height:      p.arena.Height,
		CellSize:    p.grid.CellSize(),
		Walls:       p.arena.Walls,
		Goals:       p.arena.Goals,
		RobotRadius: p.arena.RobotRadius,
	}
}

// Plan snaps start and destination to free cells, runs A* and smooths the result. The returned
// path starts exactly at start and ends exactly at dest. A start equal to dest yields a
// single-point plan. Failures match ErrUnreachable.
func (p *Planner) Plan(ctx context.Context, start, dest models.Point) (*Plan, error) {
	ctx, span := tracer().Start(ctx, "Planner.Plan")
	defer span.End()
	began := time.Now()

	span.SetAttributes(
		attribute.Float64("start.x", start.X), attribute.Float64("start.y", start.Y),
		attribute.Float64("dest.x", dest.X), attribute.Float64("dest.y", dest.Y),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan, err := p.plan(start, dest)
	took := time.Since(began)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObservePlan(PlanResultUnreachable, took)
		p.logger.Debugf("🚫 경로 없음: %v", err)
		return nil, err
	}

	plan.Took = took
	result := PlanResultOK
	if len(plan.Points) == 1 {
		result = PlanResultTrivial
	}
	p.metrics.ObservePlan(result, took)

	span.SetAttributes(
		attribute.String("plan.id", plan.ID),
		attribute.Int("plan.points", len(plan.Points)),
		attribute.Float64("plan.length", plan.Length),
		attribute.Bool("plan.smoothed", plan.Smoothed),
	)
	p.logger.Debugf("🧭 경로 계획 완료: %d점, %.0fmm, 최소 여유 %.0fmm (%v)",
		len(plan.Points), plan.Length, plan.Clearance, took)
	return plan, nil
}

func (p *Planner) plan(start, dest models.Point) (*Plan, error) {
	plan := &Plan{
		ID:          uuid.New().String(),
		Start:       start,
		Destination: dest,
		CreatedAt:   time.Now(),
	}

	if !start.IsFinite() {
		return nil, &UnreachableError{Stage: "start", Point: start, Cause: algorithms.ErrNoFreeCell}
	}
	if !dest.IsFinite() {
		return nil, &UnreachableError{Stage: "destination", Point: dest, Cause: algorithms.ErrNoFreeCell}
	}

	// 제자리: 이동 없이 도착
	if start.DistanceTo(dest) < arrivalEpsilon {
		plan.Raw = []models.Point{dest}
		plan.Points = []models.Point{dest}
		plan.Clearance = p.walls.Clearance(dest)
		return plan, nil
	}

	startCell, ok := p.grid.NearestFreeCell(start)
	if !ok {
		return nil, &UnreachableError{Stage: "start", Point: start, Cause: algorithms.ErrNoFreeCell}
	}
	goalCell, ok := p.grid.NearestFreeCell(dest)
	if !ok {
		return nil, &UnreachableError{Stage: "destination", Point: dest, Cause: algorithms.ErrNoFreeCell}
	}

	cells, ok := algorithms.FindPath(p.grid, startCell, goalCell)
	if !ok {
		return nil, &UnreachableError{Stage: "search", Point: dest, Cause: algorithms.ErrNoPath}
	}

	plan.Raw = algorithms.CellsToWorld(p.grid, cells, start, dest)
	plan.GridCost = algorithms.PathCost(cells)
	plan.Points = plan.Raw

	if !p.cfg.NoSmooth {
		smoothed := algorithms.Smooth(plan.Raw, p.cfg.Smooth)
		if p.interiorFree(smoothed) {
			plan.Points = smoothed
			plan.Smoothed = len(plan.Raw) >= 3
		}
	}

	plan.Length = algorithms.PathLength(plan.Points)
	plan.Clearance = p.walls.MinClearance(plan.Points)
	return plan, nil
}

// interiorFree - 양 끝점을 제외한 모든 점이 빈 셀에 있는지 (스플라인이 모서리를 깎은 경우 거부)
func (p *Planner) interiorFree(path []models.Point) bool {
	for i := 1; i < len(path)-1; i++ {
		if !p.grid.PointFree(path[i]) {
			return false
		}
	}
	return true
}

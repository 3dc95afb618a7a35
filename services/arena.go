package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// 경기장 프리셋 이름
const (
	PresetStage  = "stage"  // 대회 경기장 (5000x3000, 중앙 벽 + 골 3개)
	PresetOpen   = "open"   // 내부 벽 없음
	PresetRandom = "random" // 무작위 벽
)

// DefaultArena - 대회 경기장 (x=800 벽, y 1000~2000 통로)
func DefaultArena(robotRadius float64) *models.Arena {
	return &models.Arena{
		ID:     PresetStage,
		Width:  5000,
		Height: 3000,
		Walls: []models.Wall{
			{Start: models.Point{X: 800, Y: 0}, End: models.Point{X: 800, Y: 1000}},
			{Start: models.Point{X: 800, Y: 2000}, End: models.Point{X: 800, Y: 3000}},
		},
		Goals: []models.Goal{
			{ID: 1, Position: models.Point{X: 1900, Y: 0}, Width: 800, Height: 800},
			{ID: 2, Position: models.Point{X: 3300, Y: 2200}, Width: 800, Height: 800},
			{ID: 3, Position: models.Point{X: 0, Y: 2200}, Width: 800, Height: 800},
		},
		RobotRadius: robotRadius,
		CreatedAt:   time.Now(),
	}
}

// ArenaStore handles arena generation and owns the active arena's planner.
type ArenaStore struct {
	mu           sync.RWMutex
	active       *Planner
	generationMu sync.Mutex
	rng          *rand.Rand
	cfg          PlannerConfig
	logger       *zap.SugaredLogger
	metrics      *Metrics
}

// NewArenaStore - 경기장 저장소 생성
func NewArenaStore(cfg PlannerConfig, logger *zap.SugaredLogger, metrics *Metrics) *ArenaStore {
	return &ArenaStore{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Preset - 이름으로 경기장 생성
func (s *ArenaStore) Preset(name string, robotRadius float64) (*models.Arena, error) {
	switch name {
	case PresetStage:
		return DefaultArena(robotRadius), nil
	case PresetOpen:
		return &models.Arena{
			ID:          PresetOpen,
			Width:       5000,
			Height:      3000,
			RobotRadius: robotRadius,
			CreatedAt:   time.Now(),
		}, nil
	case PresetRandom:
		return s.GenerateArena(5000, 3000, robotRadius, 4), nil
	default:
		return nil, errors.Wrapf(algorithms.ErrInvalidConfig, "unknown arena preset %q", name)
	}
}

// GenerateArena creates an arena with count random axis-aligned walls kept off the border.
func (s *ArenaStore) GenerateArena(width, height, robotRadius float64, count int) *models.Arena {
	s.generationMu.Lock()
	defer s.generationMu.Unlock()

	// 경계에서 안전한 여백 (10%)
	margin := 0.1
	minX, maxX := width*margin, width*(1-margin)
	minY, maxY := height*margin, height*(1-margin)

	walls := make([]models.Wall, 0, count)
	for i := 0; i < count; i++ {
		start := models.Point{
			X: minX + s.rng.Float64()*(maxX-minX),
			Y: minY + s.rng.Float64()*(maxY-minY),
		}
		length := (0.1 + s.rng.Float64()*0.2) * height // 높이의 10~30%
		end := start
		if s.rng.Intn(2) == 0 {
			end.X = min(start.X+length, maxX)
		} else {
			end.Y = min(start.Y+length, maxY)
		}
		walls = append(walls, models.Wall{Start: start, End: end})
	}

	return &models.Arena{
		ID:          uuid.New().String(),
		Width:       width,
		Height:      height,
		Walls:       walls,
		RobotRadius: robotRadius,
		CreatedAt:   time.Now(),
	}
}

// Activate builds a planner for arena and makes it the active one. The previous planner stays
// active when the arena is invalid.
func (s *ArenaStore) Activate(arena *models.Arena) (*Planner, error) {
	if arena == nil {
		return nil, errors.Wrap(algorithms.ErrInvalidConfig, "arena is nil")
	}
	if arena.ID == "" {
		arena.ID = uuid.New().String()
	}
	if arena.CreatedAt.IsZero() {
		arena.CreatedAt = time.Now()
	}

	planner, err := NewPlanner(arena, s.cfg, s.logger, s.metrics)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = planner
	s.mu.Unlock()

	s.logger.Infof("🗺️ 경기장 활성화: %s (%.0fx%.0f, 벽 %d개, 로봇 반경 %.0f)",
		arena.ID, arena.Width, arena.Height, len(arena.Walls), arena.RobotRadius)
	return planner, nil
}

// Active - 현재 플래너 (없으면 nil)
func (s *ArenaStore) Active() *Planner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ArenaMessage - 정적 경기장 정보 (없으면 nil)
func (s *ArenaStore) ArenaMessage() *models.ArenaMessage {
	planner := s.Active()
	if planner == nil {
		return nil
	}
	msg := planner.ArenaMessage()
	return &msg
}

// IsPositionValid - 경기장 안이고 로봇이 들어갈 수 있는 위치인지
func (s *ArenaStore) IsPositionValid(p models.Point) bool {
	planner := s.Active()
	if planner == nil || !planner.Arena().Contains(p) {
		return false
	}
	return planner.Grid().PointFree(p)
}

package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// 이 거리 이내의 웨이포인트는 이동 없이 통과 처리
const arrivalEpsilon = 1e-6

// 컨트롤러 오류
var (
	ErrNoActuator = errors.New("hardware drive requires an actuator")
	ErrNoPlanner  = errors.New("no planner configured")
)

// ControllerConfig - 주행 속도/주기 설정
type ControllerConfig struct {
	RobotID           string
	Mode              models.DriveMode
	MovementSpeed     float64       // mm/s
	RotationSpeed     float64       // rad/s
	HeadingTolerance  float64       // rad, 이 이하의 방향 오차는 회전 없이 직진
	TickInterval      time.Duration // Step()이 사용하는 dt
	ChunkInterval     time.Duration // 하드웨어 주행 중 포즈 커밋/취소 확인 주기
	Duty              float64       // 모터 듀티 (0~1)
	SimplifyTolerance float64       // mm, 하드웨어 구간 추출 허용 오차
}

// DefaultControllerConfig - 하드웨어 측정값 기반 기본값
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		RobotID:           "robot-1",
		Mode:              models.DriveModeSimulated,
		MovementSpeed:     DefaultMovementSpeed,
		RotationSpeed:     DefaultRotationSpeed,
		HeadingTolerance:  0.02,
		TickInterval:      time.Second / DefaultTickHz,
		ChunkInterval:     time.Second / DefaultTickHz,
		Duty:              DefaultDuty,
		SimplifyTolerance: 10,
	}
}

// ControllerOption - 선택 의존성
type ControllerOption func(*Controller)

// WithClock - 시계 주입 (테스트용)
func WithClock(clk clock.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clk }
}

// WithActuator - 하드웨어 주행용 액추에이터
func WithActuator(a Actuator) ControllerOption {
	return func(c *Controller) { c.actuator = a }
}

// WithEventSink - 이벤트 수신자
func WithEventSink(sink EventSink) ControllerOption {
	return func(c *Controller) { c.sink = sink }
}

// WithMetrics - 메트릭 수집기
func WithMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithPlanner - 초기 플래너
func WithPlanner(p *Planner) ControllerOption {
	return func(c *Controller) { c.planner = p }
}

// Controller owns the robot pose and the path being followed. In simulated mode an external
// loop calls Tick; in hardware mode Drive runs a background worker that commands the actuator
// once per segment and commits pose in small increments. mu guards pose and path and is never
// held across a wait. opMu serializes operations that start or stop the drive worker.
type Controller struct {
	cfg      ControllerConfig
	clock    clock.Clock
	logger   *zap.SugaredLogger
	metrics  *Metrics
	sink     EventSink
	actuator Actuator

	opMu sync.Mutex
	slot TaskSlot

	mu      sync.RWMutex
	pose    models.Pose
	path    []models.Point
	cursor  int
	state   models.RobotState
	driving bool
	planID  string
	planner *Planner
}

// NewController - 초기 포즈로 컨트롤러 생성
func NewController(cfg ControllerConfig, pose models.Pose, logger *zap.SugaredLogger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pose.Heading = models.NormalizeAngle(pose.Heading)
	c := &Controller{
		cfg:    cfg,
		clock:  clock.New(),
		logger: logger,
		pose:   pose,
		state:  models.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config - 현재 설정
func (c *Controller) Config() ControllerConfig { return c.cfg }

// ========================================
// 상태 조회
// ========================================

// Pose - 현재 포즈
func (c *Controller) Pose() models.Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose
}

// State - 현재 상태
func (c *Controller) State() models.RobotState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Cursor - 다음 웨이포인트 인덱스
func (c *Controller) Cursor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor
}

// Path - 현재 경로 (복사본, 없으면 nil)
func (c *Controller) Path() []models.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Point(nil), c.path...)
}

// Driving - 하드웨어 주행 진행 중 여부
func (c *Controller) Driving() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.driving
}

// Planner - 현재 플래너
func (c *Controller) Planner() *Planner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.planner
}

// SetPlanner - 경기장 변경 시 플래너 교체
func (c *Controller) SetPlanner(p *Planner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planner = p
}

// Snapshot - 텔레메트리용 상태 복사
func (c *Controller) Snapshot() models.Telemetry {
	c.mu.RLock()
	t := models.Telemetry{
		RobotID:   c.cfg.RobotID,
		Pose:      c.pose,
		State:     c.state,
		Mode:      c.cfg.Mode,
		Cursor:    c.cursor,
		Driving:   c.driving,
		Timestamp: c.clock.Now(),
	}
	if c.cursor < len(c.path) {
		t.Remaining = append([]models.Point(nil), c.path[c.cursor:]...)
	}
	planner := c.planner
	c.mu.RUnlock()

	if planner != nil {
		t.Clearance = planner.Clearance(t.Pose.Position())
	}
	return t
}

// ========================================
// 협조 모드 (시뮬레이션)
// ========================================

// Tick advances the pose by one control step of length dt. It never blocks and does nothing
// while a hardware drive is in flight or once the path is exhausted.
func (c *Controller) Tick(dt time.Duration) models.RobotState {
	c.mu.Lock()
	if c.driving {
		st := c.state
		c.mu.Unlock()
		return st
	}
	rotRate := c.cfg.RotationSpeed * dt.Seconds()
	moveRate := c.cfg.MovementSpeed * dt.Seconds()
	st, finished := c.stepLocked(rotRate, moveRate)
	pose, planID := c.pose, c.planID
	c.mu.Unlock()

	c.metrics.Tick()
	if finished {
		c.arrived(pose, planID)
	}
	return st
}

// Step - 설정된 주기로 한 틱
func (c *Controller) Step() models.RobotState {
	return c.Tick(c.cfg.TickInterval)
}

// stepLocked applies one rotate-then-move step. Rotation is bounded by rotRate on every step and
// a step whose heading error exceeds max(HeadingTolerance, rotRate) does not translate. It
// reports whether this step finished the path.
func (c *Controller) stepLocked(rotRate, moveRate float64) (models.RobotState, bool) {
	if c.path == nil {
		return c.state, false
	}

	for c.cursor < len(c.path) {
		wp := c.path[c.cursor]
		delta := r2.Point{X: wp.X - c.pose.X, Y: wp.Y - c.pose.Y}
		distance := delta.Norm()
		if distance <= arrivalEpsilon {
			// 이미 도달한 웨이포인트는 건너뜀
			c.cursor++
			continue
		}

		target := math.Atan2(delta.Y, delta.X)
		diff := models.NormalizeAngle(target - c.pose.Heading)
		if math.Abs(diff) > math.Max(c.cfg.HeadingTolerance, rotRate) {
			c.pose.Heading = models.NormalizeAngle(c.pose.Heading + math.Copysign(rotRate, diff))
			c.state = models.StateRotating
			return c.state, false
		}

		// 허용 오차 안이라도 한 틱 회전은 rotRate 이하
		if math.Abs(diff) <= rotRate {
			c.pose.Heading = target
		} else {
			c.pose.Heading = models.NormalizeAngle(c.pose.Heading + math.Copysign(rotRate, diff))
		}
		step := math.Min(moveRate, distance)
		next := r2.Point{X: c.pose.X, Y: c.pose.Y}.Add(delta.Normalize().Mul(step))
		c.pose.X, c.pose.Y = next.X, next.Y
		c.state = models.StateTranslating

		if distance <= moveRate {
			// 정확히 웨이포인트에 맞춤
			c.pose.X, c.pose.Y = wp.X, wp.Y
			c.cursor++
			if c.cursor >= len(c.path) {
				c.finishLocked()
				return c.state, true
			}
		}
		return c.state, false
	}

	c.finishLocked()
	return c.state, true
}

// finishLocked - 경로 끝: 도착 상태, 경로 해제
func (c *Controller) finishLocked() {
	c.state = models.StateArrived
	c.path = nil
	c.cursor = 0
}

// ========================================
// 경로 지정 / 취소
// ========================================

// SetPath replaces the path being followed. Any drive in flight is cancelled and joined first.
// Waypoints already at the current pose are consumed, so a path that ends where the robot
// stands arrives immediately.
func (c *Controller) SetPath(path []models.Point) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopDriveLocked()

	c.mu.Lock()
	finished := c.setPathLocked(path, "")
	pose := c.pose
	c.mu.Unlock()

	if finished {
		c.arrived(pose, "")
	}
}

func (c *Controller) setPathLocked(path []models.Point, planID string) bool {
	c.planID = planID
	c.cursor = 0
	if len(path) == 0 {
		c.path = nil
		c.state = models.StateIdle
		return false
	}
	c.path = append([]models.Point(nil), path...)
	for c.cursor < len(c.path) && c.path[c.cursor].DistanceTo(c.pose.Position()) <= arrivalEpsilon {
		c.cursor++
	}
	if c.cursor >= len(c.path) {
		c.finishLocked()
		return true
	}
	c.state = c.classifyLocked()
	return false
}

// classifyLocked - 다음 웨이포인트 기준 상태 판정
func (c *Controller) classifyLocked() models.RobotState {
	wp := c.path[c.cursor]
	target := math.Atan2(wp.Y-c.pose.Y, wp.X-c.pose.X)
	if math.Abs(models.NormalizeAngle(target-c.pose.Heading)) > c.cfg.HeadingTolerance {
		return models.StateRotating
	}
	return models.StateTranslating
}

// Cancel stops the drive in flight, keeps the last committed pose and drops the path.
func (c *Controller) Cancel() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopDriveLocked()

	c.mu.Lock()
	c.path = nil
	c.cursor = 0
	c.planID = ""
	c.state = models.StateIdle
	c.mu.Unlock()
}

// stopDriveLocked - 주행 워커 취소 후 종료 대기 (opMu 보유, mu 미보유 상태에서 호출)
func (c *Controller) stopDriveLocked() {
	c.slot.Cancel()
	c.mu.Lock()
	c.driving = false
	c.mu.Unlock()
}

// ResetPose - 주행 취소 후 포즈 재설정
func (c *Controller) ResetPose(pose models.Pose) {
	c.Cancel()

	pose.Heading = models.NormalizeAngle(pose.Heading)
	c.mu.Lock()
	c.pose = pose
	c.mu.Unlock()

	c.emit(models.RobotEvent{Type: models.EventPoseReset, Pose: pose})
	c.logger.Infof("📍 포즈 재설정: (%.0f, %.0f, %.2frad)", pose.X, pose.Y, pose.Heading)
}

// Wait - 현재 주행 워커 종료 대기
func (c *Controller) Wait() {
	c.slot.Wait()
}

// ========================================
// 목적지 지정
// ========================================

// SetDestination plans from the current pose to dest and starts following the result: SetPath
// in simulated mode, Drive in hardware mode. When planning fails the current path is dropped,
// the controller is left idle and the error is returned.
func (c *Controller) SetDestination(ctx context.Context, dest models.Point) (*Plan, error) {
	planner := c.Planner()
	if planner == nil {
		return nil, ErrNoPlanner
	}

	pose := c.Pose()
	plan, err := planner.Plan(ctx, pose.Position(), dest)
	if err != nil {
		c.Cancel()
		c.emit(models.RobotEvent{Type: models.EventPlanFailed, Pose: pose, Destination: &dest, Detail: err.Error()})
		c.logger.Warnf("🚫 목적지 (%.0f, %.0f) 계획 실패: %v", dest.X, dest.Y, err)
		return nil, err
	}

	c.emit(models.RobotEvent{
		Type:        models.EventPlan,
		PlanID:      plan.ID,
		Pose:        pose,
		Destination: &dest,
		Waypoints:   len(plan.Points),
		PathLength:  plan.Length,
	})
	c.logger.Infof("🧭 목적지 (%.0f, %.0f): %d점, %.0fmm", dest.X, dest.Y, len(plan.Points), plan.Length)

	if c.cfg.Mode == models.DriveModeHardware {
		if err := c.drive(ctx, plan.Points, plan.ID); err != nil {
			return nil, err
		}
		return plan, nil
	}

	c.opMu.Lock()
	c.stopDriveLocked()
	c.mu.Lock()
	finished := c.setPathLocked(plan.Points, plan.ID)
	pose = c.pose
	c.mu.Unlock()
	c.opMu.Unlock()

	if finished {
		c.arrived(pose, plan.ID)
	}
	return plan, nil
}

// ========================================
// 하드웨어 주행
// ========================================

// Drive follows path on a background worker. The path is reduced to corner points; for each
// segment the worker issues one turn and one straight command and waits out the physical
// duration in chunks, committing pose and checking for cancellation after every chunk. ctx
// bounds the lifetime of the drive, not of this call.
func (c *Controller) Drive(ctx context.Context, path []models.Point) error {
	return c.drive(ctx, path, "")
}

func (c *Controller) drive(ctx context.Context, path []models.Point, planID string) error {
	if c.actuator == nil {
		return ErrNoActuator
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopDriveLocked()

	c.mu.Lock()
	finished := c.setPathLocked(path, planID)
	if finished {
		pose := c.pose
		c.mu.Unlock()
		c.arrived(pose, planID)
		return nil
	}
	if c.path == nil {
		c.mu.Unlock()
		return nil
	}

	// 현재 포즈에서 시작하는 구간 목록으로 경로 교체
	start := c.pose
	points := append([]models.Point{start.Position()}, c.path[c.cursor:]...)
	segments := algorithms.Simplify(points, c.cfg.SimplifyTolerance)
	c.path = segments
	c.cursor = 1
	c.driving = true
	c.mu.Unlock()

	// 워커가 도착 이벤트를 먼저 낼 수 없도록 시작 이벤트를 먼저 기록
	c.metrics.DriveStarted()
	c.emit(models.RobotEvent{
		Type:        models.EventDriveStart,
		PlanID:      planID,
		Pose:        start,
		Destination: &segments[len(segments)-1],
		Waypoints:   len(segments),
		PathLength:  algorithms.PathLength(segments),
	})

	c.slot.Start(ctx, func(ctx context.Context, gen uint64) {
		c.runDrive(ctx, gen, segments, planID)
	})
	return nil
}

// runDrive - 백그라운드 주행 루프
func (c *Controller) runDrive(ctx context.Context, gen uint64, segments []models.Point, planID string) {
	for i := 1; i < len(segments); i++ {
		if err := c.driveSegment(ctx, gen, segments[i]); err != nil {
			if stopErr := c.actuator.Stop(context.Background()); stopErr != nil {
				c.logger.Errorf("❌ 모터 정지 실패: %v", stopErr)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// 상위 ctx 만료로 끝난 경우에도 경로/주행 상태 정리 (Cancel 경유면 이후 Cancel이 다시 정리)
				c.mu.Lock()
				if c.slot.Current(gen) {
					c.driving = false
					c.path = nil
					c.cursor = 0
					c.state = models.StateIdle
				}
				pose := c.pose
				c.mu.Unlock()
				c.metrics.DriveCancelled()
				c.emit(models.RobotEvent{Type: models.EventDriveCancelled, PlanID: planID, Pose: pose})
				c.logger.Debugf("🛑 주행 취소: (%.0f, %.0f)", pose.X, pose.Y)
				return
			}
			c.logger.Errorf("❌ 주행 실패: %v", err)
			c.mu.Lock()
			if c.slot.Current(gen) {
				c.driving = false
				c.path = nil
				c.cursor = 0
				c.state = models.StateIdle
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		if c.slot.Current(gen) {
			c.cursor = i + 1
		}
		c.mu.Unlock()
	}

	if err := c.actuator.Stop(ctx); err != nil {
		c.logger.Errorf("❌ 모터 정지 실패: %v", err)
	}

	c.mu.Lock()
	if !c.slot.Current(gen) {
		c.mu.Unlock()
		return
	}
	c.driving = false
	c.finishLocked()
	pose := c.pose
	c.mu.Unlock()

	c.arrived(pose, planID)
}

// driveSegment turns toward target if needed, then drives straight to it.
func (c *Controller) driveSegment(ctx context.Context, gen uint64, target models.Point) error {
	start := c.Pose()
	delta := r2.Point{X: target.X - start.X, Y: target.Y - start.Y}
	distance := delta.Norm()
	if distance <= arrivalEpsilon {
		return nil
	}
	heading := math.Atan2(delta.Y, delta.X)

	// 회전 구간
	if turn := models.NormalizeAngle(heading - start.Heading); math.Abs(turn) > c.cfg.HeadingTolerance {
		left, right := SpinCommand(turn, c.cfg.Duty)
		if err := c.actuator.Apply(ctx, left, right); err != nil {
			return err
		}
		c.setState(gen, models.StateRotating)
		duration := time.Duration(math.Abs(turn) / c.cfg.RotationSpeed * float64(time.Second))
		err := c.waitChunks(ctx, duration, func(frac float64) {
			c.commit(gen, func(p *models.Pose) {
				p.Heading = models.NormalizeAngle(start.Heading + turn*frac)
			})
		})
		if err != nil {
			return err
		}
	}
	c.commit(gen, func(p *models.Pose) { p.Heading = heading })

	// 직진 구간
	left, right := StraightCommand(c.cfg.Duty)
	if err := c.actuator.Apply(ctx, left, right); err != nil {
		return err
	}
	c.setState(gen, models.StateTranslating)
	origin := r2.Point{X: start.X, Y: start.Y}
	duration := time.Duration(distance / c.cfg.MovementSpeed * float64(time.Second))
	return c.waitChunks(ctx, duration, func(frac float64) {
		at := origin.Add(delta.Mul(frac))
		c.commit(gen, func(p *models.Pose) {
			p.X, p.Y = at.X, at.Y
			if frac >= 1 {
				p.X, p.Y = target.X, target.Y
			}
		})
	})
}

// waitChunks waits out duration in ChunkInterval slices, calling commit with the elapsed
// fraction after every slice. On cancellation the elapsed fraction so far is committed and the
// context error returned.
func (c *Controller) waitChunks(ctx context.Context, duration time.Duration, commit func(frac float64)) error {
	began := c.clock.Now()
	fraction := func() float64 {
		if duration <= 0 {
			return 1
		}
		return math.Min(1, float64(c.clock.Since(began))/float64(duration))
	}

	for {
		elapsed := c.clock.Since(began)
		if elapsed >= duration {
			commit(1)
			return nil
		}
		chunk := c.cfg.ChunkInterval
		if remaining := duration - elapsed; remaining < chunk {
			chunk = remaining
		}

		timer := c.clock.Timer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			// 정지 명령 직전까지 진행한 만큼 반영 (구간 끝에는 도달하지 않음)
			commit(math.Min(fraction(), 1-1e-9))
			return ctx.Err()
		case <-timer.C:
		}
		commit(fraction())
	}
}

// commit - 최신 세대일 때만 포즈 갱신 (잠금은 갱신하는 동안만)
func (c *Controller) commit(gen uint64, update func(p *models.Pose)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slot.Current(gen) {
		return
	}
	update(&c.pose)
}

func (c *Controller) setState(gen uint64, st models.RobotState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot.Current(gen) {
		c.state = st
	}
}

// ========================================
// 이벤트
// ========================================

func (c *Controller) arrived(pose models.Pose, planID string) {
	c.metrics.Arrived()
	c.emit(models.RobotEvent{Type: models.EventArrived, PlanID: planID, Pose: pose})
	c.logger.Infof("🏁 도착: (%.0f, %.0f)", pose.X, pose.Y)
}

func (c *Controller) emit(ev models.RobotEvent) {
	if c.sink == nil {
		return
	}
	ev.RobotID = c.cfg.RobotID
	if ev.At.IsZero() {
		ev.At = c.clock.Now()
	}
	c.sink.Record(ev)
}

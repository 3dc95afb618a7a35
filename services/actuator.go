package services

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arena-nav/models"
)

// Actuator is the boundary to the motor hardware. Apply is called once per turn or straight
// segment and the command holds until the next Apply or Stop.
type Actuator interface {
	Apply(ctx context.Context, left, right models.WheelCommand) error
	Stop(ctx context.Context) error
}

// SpinCommand - 제자리 회전 (양수 = 반시계)
func SpinCommand(angle, duty float64) (left, right models.WheelCommand) {
	ccw := angle > 0
	return models.WheelCommand{Forward: !ccw, Duty: duty}, models.WheelCommand{Forward: ccw, Duty: duty}
}

// StraightCommand - 직진
func StraightCommand(duty float64) (left, right models.WheelCommand) {
	cmd := models.WheelCommand{Forward: true, Duty: duty}
	return cmd, cmd
}

// wheel - 바퀴 하나 (마지막 명령 보관)
type wheel struct {
	name    string
	mu      sync.Mutex
	current models.WheelCommand
	running bool
}

func (w *wheel) set(ctx context.Context, cmd models.WheelCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmd.Duty < 0 || cmd.Duty > 1 {
		return errors.Errorf("%s wheel: duty %.2f out of range [0, 1]", w.name, cmd.Duty)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = cmd
	w.running = cmd.Duty > 0
	return nil
}

func (w *wheel) stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = models.WheelCommand{}
	w.running = false
	return nil
}

// LoggingActuator stands in for the motor driver: it validates and records wheel commands and
// logs them. Both wheels are commanded concurrently.
type LoggingActuator struct {
	logger *zap.SugaredLogger
	left   *wheel
	right  *wheel

	mu      sync.Mutex
	history [][2]models.WheelCommand
	stops   int
}

// NewLoggingActuator - 로그만 남기는 액추에이터
func NewLoggingActuator(logger *zap.SugaredLogger) *LoggingActuator {
	return &LoggingActuator{
		logger: logger,
		left:   &wheel{name: "left"},
		right:  &wheel{name: "right"},
	}
}

// Apply - 양쪽 바퀴에 동시에 명령
func (a *LoggingActuator) Apply(ctx context.Context, left, right models.WheelCommand) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.left.set(gctx, left) })
	g.Go(func() error { return a.right.set(gctx, right) })
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "apply wheel command")
	}

	a.mu.Lock()
	a.history = append(a.history, [2]models.WheelCommand{left, right})
	a.mu.Unlock()

	a.logger.Debugf("⚙️ 바퀴 명령: L(fwd=%t, duty=%.2f) R(fwd=%t, duty=%.2f)",
		left.Forward, left.Duty, right.Forward, right.Duty)
	return nil
}

// Stop - 양쪽 바퀴 정지 (오류는 합쳐서 반환)
func (a *LoggingActuator) Stop(ctx context.Context) error {
	err := multierr.Combine(a.left.stop(), a.right.stop())

	a.mu.Lock()
	a.stops++
	a.mu.Unlock()

	a.logger.Debug("⏹️ 바퀴 정지")
	return err
}

// Commands - 지금까지 적용된 명령 (복사본)
func (a *LoggingActuator) Commands() [][2]models.WheelCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][2]models.WheelCommand(nil), a.history...)
}

// Stops - Stop 호출 횟수
func (a *LoggingActuator) Stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

// Moving - 어느 한쪽 바퀴라도 구동 중인지
func (a *LoggingActuator) Moving() bool {
	a.left.mu.Lock()
	l := a.left.running
	a.left.mu.Unlock()
	a.right.mu.Lock()
	r := a.right.running
	a.right.mu.Unlock()
	return l || r
}

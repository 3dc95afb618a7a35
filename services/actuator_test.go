package services

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.viam.com/test"

	"arena-nav/models"
)

func TestSpinCommand(t *testing.T) {
	left, right := SpinCommand(1, 0.5)
	test.That(t, left, test.ShouldResemble, models.WheelCommand{Forward: false, Duty: 0.5})
	test.That(t, right, test.ShouldResemble, models.WheelCommand{Forward: true, Duty: 0.5})

	left, right = SpinCommand(-1, 0.5)
	test.That(t, left.Forward, test.ShouldBeTrue)
	test.That(t, right.Forward, test.ShouldBeFalse)
}

func TestLoggingActuator(t *testing.T) {
	a := NewLoggingActuator(zap.NewNop().Sugar())
	left, right := StraightCommand(0.5)

	test.That(t, a.Apply(context.Background(), left, right), test.ShouldBeNil)
	test.That(t, a.Moving(), test.ShouldBeTrue)
	test.That(t, a.Commands(), test.ShouldHaveLength, 1)

	err := a.Apply(context.Background(), models.WheelCommand{Duty: 1.5}, right)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "left wheel")
	test.That(t, a.Commands(), test.ShouldHaveLength, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, a.Apply(ctx, left, right), test.ShouldNotBeNil)

	test.That(t, a.Stop(context.Background()), test.ShouldBeNil)
	test.That(t, a.Moving(), test.ShouldBeFalse)
	test.That(t, a.Stops(), test.ShouldEqual, 1)
}

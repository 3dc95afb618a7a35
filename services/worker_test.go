package services

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestTaskSlot(t *testing.T) {
	var slot TaskSlot
	test.That(t, slot.Cancel(), test.ShouldBeFalse)
	test.That(t, slot.Running(), test.ShouldBeFalse)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	gen := slot.Start(context.Background(), func(ctx context.Context, gen uint64) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started
	test.That(t, slot.Running(), test.ShouldBeTrue)
	test.That(t, slot.Current(gen), test.ShouldBeTrue)

	test.That(t, slot.Cancel(), test.ShouldBeTrue)
	<-cancelled
	test.That(t, slot.Running(), test.ShouldBeFalse)
	test.That(t, slot.Current(gen), test.ShouldBeFalse)
}

func TestTaskSlotStartSupersedes(t *testing.T) {
	var slot TaskSlot

	firstDone := make(chan error, 1)
	first := slot.Start(context.Background(), func(ctx context.Context, gen uint64) {
		<-ctx.Done()
		firstDone <- ctx.Err()
	})

	ran := make(chan uint64, 1)
	second := slot.Start(context.Background(), func(ctx context.Context, gen uint64) {
		ran <- gen
	})

	// 두 번째 작업이 시작되기 전에 첫 번째는 이미 끝나 있어야 함
	select {
	case err := <-firstDone:
		test.That(t, err, test.ShouldEqual, context.Canceled)
	default:
		t.Fatal("previous task was not joined before the next one started")
	}

	test.That(t, <-ran, test.ShouldEqual, second)
	test.That(t, second, test.ShouldBeGreaterThan, first)
	test.That(t, slot.Current(first), test.ShouldBeFalse)

	slot.Wait()
	test.That(t, slot.Running(), test.ShouldBeFalse)
	test.That(t, slot.Current(second), test.ShouldBeTrue)
	test.That(t, slot.Cancel(), test.ShouldBeFalse)
}

func TestTaskSlotParentContext(t *testing.T) {
	var slot TaskSlot
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	slot.Start(ctx, func(ctx context.Context, gen uint64) {
		<-ctx.Done()
	})
	slot.Wait()
	test.That(t, slot.Running(), test.ShouldBeFalse)
}

package services

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// TaskSlot runs at most one background task. Starting a task cancels and joins the previous one
// first. Every start or cancel bumps a generation counter, so a task can ask Current(gen) before
// committing results to find out whether it has been superseded.
type TaskSlot struct {
	mu     sync.Mutex
	gen    atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Start - 이전 작업 취소/대기 후 새 작업 실행, 새 세대 번호 반환
func (s *TaskSlot) Start(ctx context.Context, fn func(ctx context.Context, gen uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	gen := s.gen.Inc()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		defer cancel()
		fn(ctx, gen)
	}()
	return gen
}

// Cancel stops the running task and waits for it to return. It reports whether a task was
// still running.
func (s *TaskSlot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *TaskSlot) stopLocked() bool {
	if s.done == nil {
		return false
	}
	running := !isClosed(s.done)
	s.cancel()
	<-s.done
	// 취소된 작업이 이후에 커밋하지 못하도록 세대 증가
	s.gen.Inc()
	s.cancel, s.done = nil, nil
	return running
}

// Wait - 현재 작업이 끝날 때까지 대기 (취소하지 않음)
func (s *TaskSlot) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running - 작업 실행 중 여부
func (s *TaskSlot) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil && !isClosed(s.done)
}

// Current - gen이 아직 최신 세대인지
func (s *TaskSlot) Current(gen uint64) bool {
	return s.gen.Load() == gen
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

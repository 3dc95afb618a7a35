package services

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"arena-nav/models"
)

// Simulator - 제어 루프 (시뮬레이션 모드에서 Tick, 항상 텔레메트리 발행)
type Simulator struct {
	IsRunning     bool
	controller    *Controller
	broadcastFunc func(models.WebSocketMessage)
	clock         clock.Clock
	logger        *zap.SugaredLogger
	interval      time.Duration

	// 제어
	stopChan chan bool
	done     chan struct{}
	mu       sync.RWMutex
}

// NewSimulator - 시뮬레이터 생성 (clk nil이면 실제 시계)
func NewSimulator(controller *Controller, broadcastFunc func(models.WebSocketMessage), clk clock.Clock, logger *zap.SugaredLogger) *Simulator {
	if clk == nil {
		clk = clock.New()
	}
	interval := controller.Config().TickInterval
	if interval <= 0 {
		interval = time.Second / DefaultTickHz
	}
	return &Simulator{
		controller:    controller,
		broadcastFunc: broadcastFunc,
		clock:         clk,
		logger:        logger,
		interval:      interval,
		stopChan:      make(chan bool),
	}
}

// Start - 시뮬레이션 시작
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.IsRunning {
		s.mu.Unlock()
		return
	}
	s.IsRunning = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Infof("🚀 제어 루프 시작 (%v 주기, 모드: %s)", s.interval, s.controller.Config().Mode)
	go s.runSimulation(done)
}

// Stop - 시뮬레이션 중지 (루프 종료까지 대기)
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.IsRunning {
		s.mu.Unlock()
		return
	}
	s.IsRunning = false
	done := s.done
	s.mu.Unlock()

	s.stopChan <- true
	<-done
	s.logger.Info("🛑 제어 루프 중지")
}

// Running - 실행 중 여부
func (s *Simulator) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IsRunning
}

// runSimulation - 메인 루프
func (s *Simulator) runSimulation(done chan struct{}) {
	defer close(done)
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.update()
		}
	}
}

// update - 한 주기 처리
func (s *Simulator) update() {
	// 하드웨어 모드에서는 백그라운드 주행 워커가 포즈를 갱신
	if s.controller.Config().Mode == models.DriveModeSimulated {
		s.controller.Tick(s.interval)
	}
	s.broadcastPosition()
}

// broadcastPosition - 포즈 + 남은 경로 브로드캐스트
func (s *Simulator) broadcastPosition() {
	if s.broadcastFunc == nil {
		return
	}
	s.broadcastFunc(models.NewMessage(models.MessageTypePosition, s.controller.Snapshot()))
}

// GetStatus - 현재 상태 반환
func (s *Simulator) GetStatus() map[string]interface{} {
	snap := s.controller.Snapshot()
	return map[string]interface{}{
		"running":  s.Running(),
		"pose":     snap.Pose,
		"state":    snap.State,
		"mode":     snap.Mode,
		"driving":  snap.Driving,
		"interval": s.interval.String(),
	}
}

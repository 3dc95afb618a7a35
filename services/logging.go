package services

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arena-nav/models"
)

// EventSink - 계획/주행 이벤트 수신자
type EventSink interface {
	Record(ev models.RobotEvent)
}

// LogBuffer - 이벤트 로그 버퍼 (비동기 일괄 저장)
type LogBuffer struct {
	db        *gorm.DB
	logger    *zap.SugaredLogger
	metrics   *Metrics
	clock     clock.Clock
	logs      []models.DriveLog
	mu        sync.Mutex
	flushMu   sync.Mutex    // 동시에 한 번만 저장
	flushSize int           // 일괄 저장 크기
	flushTime time.Duration // 자동 플러시 시간
	stopChan  chan bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogBuffer - 로그 버퍼 생성 및 자동 플러시 시작 (clk nil이면 실제 시계)
func NewLogBuffer(db *gorm.DB, flushSize int, flushInterval time.Duration, clk clock.Clock, logger *zap.SugaredLogger, metrics *Metrics) *LogBuffer {
	if clk == nil {
		clk = clock.New()
	}
	lb := &LogBuffer{
		db:        db,
		logger:    logger,
		metrics:   metrics,
		clock:     clk,
		logs:      make([]models.DriveLog, 0, flushSize*2),
		flushSize: flushSize,
		flushTime: flushInterval,
		stopChan:  make(chan bool),
		done:      make(chan struct{}),
	}

	// 자동 플러시 고루틴 시작
	go lb.autoFlush()

	logger.Infof("✅ 로깅 시스템 초기화 완료 (flushSize: %d, flushInterval: %v)", flushSize, flushInterval)
	return lb
}

// autoFlush - 주기적 로그 저장
func (lb *LogBuffer) autoFlush() {
	defer close(lb.done)
	ticker := lb.clock.Ticker(lb.flushTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lb.Flush()
		case <-lb.stopChan:
			lb.Flush() // 종료 시 남은 로그 저장
			return
		}
	}
}

// Record - 이벤트를 버퍼에 추가 (EventSink 구현)
func (lb *LogBuffer) Record(ev models.RobotEvent) {
	lb.mu.Lock()
	lb.logs = append(lb.logs, models.NewDriveLog(ev))
	size := len(lb.logs)
	lb.mu.Unlock()

	// 버퍼 크기가 차면 즉시 플러시
	if size >= lb.flushSize {
		go lb.Flush()
	}
}

// Pending - 저장 대기 중인 로그 수
func (lb *LogBuffer) Pending() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return len(lb.logs)
}

// Flush - 버퍼의 모든 로그를 DB에 저장
func (lb *LogBuffer) Flush() {
	lb.flushMu.Lock()
	defer lb.flushMu.Unlock()

	lb.mu.Lock()
	if len(lb.logs) == 0 {
		lb.mu.Unlock()
		return
	}

	// 로그 복사 및 버퍼 초기화
	logsToSave := make([]models.DriveLog, len(lb.logs))
	copy(logsToSave, lb.logs)
	lb.logs = lb.logs[:0]
	lb.mu.Unlock()

	if lb.db == nil {
		return
	}

	// DB 일괄 저장
	if err := lb.db.CreateInBatches(logsToSave, 100).Error; err != nil {
		lb.logger.Errorf("❌ 로그 저장 실패: %v", err)
		return
	}
	lb.metrics.LogsFlushed(len(logsToSave))
	lb.logger.Debugf("💾 로그 %d개 저장 완료", len(logsToSave))
}

// Close - 자동 플러시 중지 (남은 로그 저장 후 반환)
func (lb *LogBuffer) Close() {
	lb.closeOnce.Do(func() {
		lb.stopChan <- true
		<-lb.done
		lb.logger.Info("🛑 로깅 시스템 종료")
	})
}

// EventFanout - 여러 수신자에게 이벤트 전달
type EventFanout []EventSink

// Record - 모든 수신자 호출
func (f EventFanout) Record(ev models.RobotEvent) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(ev)
		}
	}
}

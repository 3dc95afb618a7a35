package services

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"arena-nav/models"
)

// OpenDatabase - 설정에 따라 MySQL 또는 SQLite 연결 후 마이그레이션
func OpenDatabase(cfg Config, logger *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		// DSN 구성
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDatabase)
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "DB 연결 실패")
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite는 단일 연결로 직렬화 (":memory:" DB 공유 포함)
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "DB 핸들 조회 실패")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// AutoMigrate - 테이블 자동 생성
	if err := db.AutoMigrate(&models.DriveLog{}); err != nil {
		return nil, errors.Wrap(err, "마이그레이션 실패")
	}

	if cfg.DBDriver == "mysql" {
		logger.Infof("✅ MySQL 연결 및 마이그레이션 완료 (%s@%s:%d/%s)",
			cfg.MySQLUser, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDatabase)
	} else {
		logger.Infof("✅ SQLite 연결 및 마이그레이션 완료 (%s)", cfg.SQLitePath)
	}
	return db, nil
}

// LogStore - 주행 로그 조회
type LogStore struct {
	db *gorm.DB
}

// NewLogStore - 조회 서비스 생성
func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// LogFilter selects drive log rows. Empty fields and zero times are not filtered on; Limit <= 0
// means no limit.
type LogFilter struct {
	RobotID   string    `json:"robot_id,omitempty"`
	PlanID    string    `json:"plan_id,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// LogStats - 이벤트 통계
type LogStats struct {
	TotalLogs   int64            `json:"total_logs"`
	EventCounts map[string]int64 `json:"event_counts"`
	Plans       int64            `json:"plans"` // 서로 다른 plan_id 수
	Since       time.Time        `json:"since"`
}

// where - 필터 조건 적용 (Limit 제외)
func (f LogFilter) where(db *gorm.DB) *gorm.DB {
	query := db.Model(&models.DriveLog{})
	if f.RobotID != "" {
		query = query.Where("robot_id = ?", f.RobotID)
	}
	if f.PlanID != "" {
		query = query.Where("plan_id = ?", f.PlanID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		query = query.Where("created_at <= ?", f.Until)
	}
	return query
}

// Find - 필터에 맞는 로그 (최신순)
func (s *LogStore) Find(f LogFilter) ([]models.DriveLog, error) {
	query := f.where(s.db).Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var logs []models.DriveLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, "로그 조회 실패")
	}
	return logs, nil
}

// PlanTrace - 계획 하나의 이벤트 흐름 (plan → drive_start → arrived/cancelled, 시간순)
func (s *LogStore) PlanTrace(planID string) ([]models.DriveLog, error) {
	if planID == "" {
		return nil, nil
	}
	var logs []models.DriveLog
	err := LogFilter{PlanID: planID}.where(s.db).
		Order("created_at ASC").
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "plan %s 이벤트 조회 실패", planID)
	}
	return logs, nil
}

// Stats - 필터 범위의 이벤트 통계 (EventType/Limit은 무시)
func (s *LogStore) Stats(f LogFilter) (*LogStats, error) {
	f.EventType = ""

	var eventCounts []struct {
		EventType string
		Count     int64
	}
	if err := f.where(s.db).
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Scan(&eventCounts).Error; err != nil {
		return nil, errors.Wrap(err, "이벤트 집계 실패")
	}

	stats := &LogStats{EventCounts: make(map[string]int64, len(eventCounts)), Since: f.Since}
	for _, ec := range eventCounts {
		stats.EventCounts[ec.EventType] = ec.Count
		stats.TotalLogs += ec.Count
	}

	if err := f.where(s.db).
		Where("plan_id <> ?", "").
		Distinct("plan_id").
		Count(&stats.Plans).Error; err != nil {
		return nil, errors.Wrap(err, "계획 수 집계 실패")
	}
	return stats, nil
}

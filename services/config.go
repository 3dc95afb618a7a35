package services

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// 하드웨어 기본값 (바퀴 직경/모터 사양에서 측정)
const (
	DefaultMovementSpeed = 566.7               // mm/s
	DefaultRotationSpeed = 23.0 / 30 * math.Pi // rad/s
	DefaultDuty          = 0.5                 // 모터 듀티 비율
	DefaultTickHz        = 30
)

// Config - 서버 전체 설정 (환경 변수 기반)
type Config struct {
	Port        string
	CORSOrigins string

	// 경기장 / 계획
	ArenaPreset string
	CellSize    float64
	RobotRadius float64

	// 주행
	MovementSpeed    float64 // mm/s
	RotationSpeed    float64 // rad/s
	HeadingTolerance float64 // rad
	TickHz           int
	DriveMode        models.DriveMode

	// 저장소
	DBDriver      string // "mysql" | "sqlite" | "none"
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string
	SQLitePath    string

	LogFlushSize     int
	LogFlushInterval time.Duration

	// 관측
	LogLevel    string
	LogFormat   string
	TraceStdout bool
}

// LoadConfig - 환경 변수에서 설정 로드 (godotenv 로드 이후 호출)
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "3000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		ArenaPreset: getEnv("ARENA_PRESET", "stage"),

		DriveMode: models.DriveMode(getEnv("DRIVE_MODE", string(models.DriveModeSimulated))),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		MySQLHost:     os.Getenv("MYSQL_HOST"),
		MySQLUser:     os.Getenv("MYSQL_USER"),
		MySQLPassword: os.Getenv("MYSQL_PASSWORD"),
		MySQLDatabase: os.Getenv("MYSQL_DATABASE"),
		SQLitePath:    getEnv("SQLITE_PATH", "arena-nav.db"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		TraceStdout: strings.EqualFold(os.Getenv("TRACE_STDOUT"), "true"),
	}

	var err error
	if cfg.CellSize, err = getEnvFloat("CELL_SIZE", 100); err != nil {
		return cfg, err
	}
	if cfg.RobotRadius, err = getEnvFloat("ROBOT_RADIUS", 250); err != nil {
		return cfg, err
	}
	if cfg.MovementSpeed, err = getEnvFloat("MOVEMENT_SPEED", DefaultMovementSpeed); err != nil {
		return cfg, err
	}
	if cfg.RotationSpeed, err = getEnvFloat("ROTATION_SPEED", DefaultRotationSpeed); err != nil {
		return cfg, err
	}
	if cfg.HeadingTolerance, err = getEnvFloat("HEADING_TOLERANCE", 0.02); err != nil {
		return cfg, err
	}
	if cfg.TickHz, err = getEnvInt("TICK_HZ", DefaultTickHz); err != nil {
		return cfg, err
	}
	if cfg.MySQLPort, err = getEnvInt("MYSQL_PORT", 3306); err != nil {
		return cfg, err
	}
	if cfg.LogFlushSize, err = getEnvInt("LOG_FLUSH_SIZE", 50); err != nil {
		return cfg, err
	}
	flushMs, err := getEnvInt("LOG_FLUSH_MS", 5000)
	if err != nil {
		return cfg, err
	}
	cfg.LogFlushInterval = time.Duration(flushMs) * time.Millisecond

	return cfg, cfg.Validate()
}

// Validate - 설정 값 검사
func (c Config) Validate() error {
	switch {
	case !(c.CellSize > 0):
		return errors.Wrapf(algorithms.ErrInvalidConfig, "CELL_SIZE must be positive, got %v", c.CellSize)
	case !(c.RobotRadius > 0):
		return errors.Wrapf(algorithms.ErrInvalidConfig, "ROBOT_RADIUS must be positive, got %v", c.RobotRadius)
	case !(c.MovementSpeed > 0) || !(c.RotationSpeed > 0):
		return errors.Wrap(algorithms.ErrInvalidConfig, "MOVEMENT_SPEED and ROTATION_SPEED must be positive")
	case c.HeadingTolerance < 0:
		return errors.Wrap(algorithms.ErrInvalidConfig, "HEADING_TOLERANCE must not be negative")
	case c.TickHz <= 0:
		return errors.Wrapf(algorithms.ErrInvalidConfig, "TICK_HZ must be positive, got %d", c.TickHz)
	case c.LogFlushSize <= 0 || c.LogFlushInterval <= 0:
		return errors.Wrap(algorithms.ErrInvalidConfig, "LOG_FLUSH_SIZE and LOG_FLUSH_MS must be positive")
	}

	switch c.DriveMode {
	case models.DriveModeSimulated, models.DriveModeHardware:
	default:
		return errors.Wrapf(algorithms.ErrInvalidConfig, "unknown DRIVE_MODE %q", c.DriveMode)
	}

	switch c.DBDriver {
	case "sqlite", "none":
	case "mysql":
		if c.MySQLHost == "" || c.MySQLUser == "" || c.MySQLPassword == "" || c.MySQLDatabase == "" {
			return errors.Wrap(algorithms.ErrInvalidConfig,
				"MySQL 환경 변수가 모두 설정되지 않았습니다: MYSQL_HOST, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE")
		}
	default:
		return errors.Wrapf(algorithms.ErrInvalidConfig, "unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// TickInterval - 제어 주기
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

// ControllerConfig - 컨트롤러 설정으로 변환
func (c Config) ControllerConfig() ControllerConfig {
	cc := DefaultControllerConfig()
	cc.MovementSpeed = c.MovementSpeed
	cc.RotationSpeed = c.RotationSpeed
	cc.HeadingTolerance = c.HeadingTolerance
	cc.TickInterval = c.TickInterval()
	cc.ChunkInterval = c.TickInterval()
	cc.Mode = c.DriveMode
	return cc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(algorithms.ErrInvalidConfig, "%s: %v", key, err)
	}
	return v, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(algorithms.ErrInvalidConfig, "%s: %v", key, err)
	}
	return v, nil
}

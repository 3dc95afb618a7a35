package services

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// clearEnv - 테스트 환경에서 설정 변수 초기화
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ORIGINS", "ARENA_PRESET", "DRIVE_MODE", "DB_DRIVER", "SQLITE_PATH",
		"LOG_LEVEL", "LOG_FORMAT", "TRACE_STDOUT", "CELL_SIZE", "ROBOT_RADIUS", "MOVEMENT_SPEED",
		"ROTATION_SPEED", "HEADING_TOLERANCE", "TICK_HZ", "MYSQL_HOST", "MYSQL_PORT", "MYSQL_USER",
		"MYSQL_PASSWORD", "MYSQL_DATABASE", "LOG_FLUSH_SIZE", "LOG_FLUSH_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Port, test.ShouldEqual, "3000")
	test.That(t, cfg.ArenaPreset, test.ShouldEqual, PresetStage)
	test.That(t, cfg.DriveMode, test.ShouldEqual, models.DriveModeSimulated)
	test.That(t, cfg.DBDriver, test.ShouldEqual, "sqlite")
	test.That(t, cfg.CellSize, test.ShouldEqual, 100.0)
	test.That(t, cfg.RobotRadius, test.ShouldEqual, 250.0)
	test.That(t, cfg.MovementSpeed, test.ShouldEqual, DefaultMovementSpeed)
	test.That(t, cfg.LogFlushInterval, test.ShouldEqual, 5*time.Second)

	cc := cfg.ControllerConfig()
	test.That(t, cc.TickInterval, test.ShouldEqual, time.Second/30)
	test.That(t, cc.Mode, test.ShouldEqual, models.DriveModeSimulated)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DRIVE_MODE", "hardware")
	t.Setenv("TICK_HZ", "10")
	t.Setenv("CELL_SIZE", "50")
	t.Setenv("DB_DRIVER", "NONE")

	cfg, err := LoadConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DBDriver, test.ShouldEqual, "none")
	test.That(t, cfg.CellSize, test.ShouldEqual, 50.0)
	cc := cfg.ControllerConfig()
	test.That(t, cc.Mode, test.ShouldEqual, models.DriveModeHardware)
	test.That(t, cc.TickInterval, test.ShouldEqual, 100*time.Millisecond)
	test.That(t, cc.ChunkInterval, test.ShouldEqual, 100*time.Millisecond)
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"unparsable cell size": {"CELL_SIZE", "abc"},
		"zero radius":          {"ROBOT_RADIUS", "0"},
		"negative tolerance":   {"HEADING_TOLERANCE", "-1"},
		"unknown drive mode":   {"DRIVE_MODE", "teleport"},
		"unknown db driver":    {"DB_DRIVER", "postgres"},
		"mysql without creds":  {"DB_DRIVER", "mysql"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			test.That(t, errors.Is(err, algorithms.ErrInvalidConfig), test.ShouldBeTrue)
		})
	}
}

package models

import (
	"math"
	"time"
)

// RobotState - 제어 상태
type RobotState string

// 로봇 상태 상수
const (
	StateIdle        RobotState = "idle"        // 경로 없음
	StateRotating    RobotState = "rotating"    // 제자리 회전 중
	StateTranslating RobotState = "translating" // 웨이포인트로 직진 중
	StateArrived     RobotState = "arrived"     // 경로 끝 도달
)

// DriveMode - 실행 모드
type DriveMode string

const (
	DriveModeSimulated DriveMode = "sim"      // 렌더 루프가 tick 호출
	DriveModeHardware  DriveMode = "hardware" // 백그라운드 워커가 모터 명령
)

// Pose - 로봇 위치와 방향 (heading: rad, (-π, π])
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Position - 위치만 반환
func (p Pose) Position() Point {
	return Point{X: p.X, Y: p.Y}
}

// NormalizeAngle - 각도를 (-π, π] 범위로 정규화
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// ========================================
// 모터 제어 데이터
// ========================================

// WheelCommand - 바퀴 하나에 대한 구간 명령 (방향 + 정규화 듀티 0~1)
type WheelCommand struct {
	Forward bool    `json:"forward"`
	Duty    float64 `json:"duty"`
}

// Telemetry - 주기적으로 발행되는 로봇 상태 스냅샷
type Telemetry struct {
	RobotID   string     `json:"robot_id"`
	Pose      Pose       `json:"pose"`
	State     RobotState `json:"state"`
	Mode      DriveMode  `json:"mode"`
	Cursor    int        `json:"cursor"`
	Remaining []Point    `json:"remaining_path,omitempty"`
	Clearance float64    `json:"clearance"` // 가장 가까운 벽까지 거리 (mm)
	Driving   bool       `json:"driving"`
	Timestamp time.Time  `json:"timestamp"`
}

// RobotEvent - 계획/주행 이벤트 (로그 저장용)
type RobotEvent struct {
	Type        string
	RobotID     string
	PlanID      string
	Pose        Pose
	Destination *Point
	Waypoints   int
	PathLength  float64
	Detail      string
	At          time.Time
}

// 이벤트 타입 상수
const (
	EventPlan           = "plan"
	EventPlanFailed     = "plan_failed"
	EventDriveStart     = "drive_start"
	EventDriveCancelled = "drive_cancelled"
	EventArrived        = "arrived"
	EventPoseReset      = "pose_reset"
)

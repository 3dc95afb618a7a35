package models

import "time"

// ========================================
// 메시지 타입 상수
// ========================================
const (
	// Server → Web
	MessageTypePosition   = "position"    // 로봇 포즈 + 남은 경로 (30Hz)
	MessageTypePathUpdate = "path_update" // 새 경로 계획됨
	MessageTypeMapUpdate  = "map_update"  // 경기장 정적 정보
	MessageTypeSystemInfo = "system_info" // 시스템 정보
	MessageTypeError      = "error"       // 요청 처리 실패

	// Web → Server
	MessageTypeCommand       = "command"        // 이동/정지 명령
	MessageTypeEmergencyStop = "emergency_stop" // 긴급 정지
)

// 명령 종류
const (
	CommandMoveTo = "move_to"
	CommandStop   = "stop"
)

// ========================================
// 공통 WebSocket 메시지 형식
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// NewMessage - 현재 시각으로 메시지 생성
func NewMessage(msgType string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ========================================
// 명령 메시지
// ========================================

// MoveCommand - 이동 명령
type MoveCommand struct {
	Action  string  `json:"action"`   // "move_to" | "stop"
	TargetX float64 `json:"target_x"` // 목표 X 좌표
	TargetY float64 `json:"target_y"` // 목표 Y 좌표
}

// ========================================
// 경로 데이터
// ========================================
type PathData struct {
	PlanID    string    `json:"plan_id"`
	Points    []Point   `json:"points"`     // 경로 포인트 리스트
	Length    float64   `json:"length"`     // 전체 경로 길이
	GridCost  float64   `json:"grid_cost"`  // 그리드 경로 비용 (셀 단위)
	Smoothed  bool      `json:"smoothed"`   // 스플라인 적용 여부
	Algorithm string    `json:"algorithm"`  // "a_star"
	CreatedAt time.Time `json:"created_at"` // 경로 생성 시각
}

// ========================================
// 시스템 정보
// ========================================
type SystemInfo struct {
	ConnectedClients int       `json:"connected_clients"` // 연결된 클라이언트 수
	Mode             DriveMode `json:"mode"`              // sim | hardware
	ServerTime       time.Time `json:"server_time"`       // 서버 시각
	Uptime           int64     `json:"uptime"`            // 가동 시간 (초)
}

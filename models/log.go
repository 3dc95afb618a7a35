package models

import (
	"time"
)

// DriveLog - 로봇 계획/주행 이벤트 로그
type DriveLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	EventType string    `gorm:"index;size:32" json:"event_type"` // "plan", "plan_failed", "drive_start", "arrived", ...

	// 로봇 상태
	RobotID string  `gorm:"index;size:64" json:"robot_id"`
	PoseX   float64 `json:"pose_x"`
	PoseY   float64 `json:"pose_y"`
	Heading float64 `json:"heading"`

	// 계획 정보
	PlanID     string  `gorm:"index;size:36" json:"plan_id"`
	HasTarget  bool    `json:"has_target"`
	TargetX    float64 `json:"target_x"`
	TargetY    float64 `json:"target_y"`
	Waypoints  int     `json:"waypoints"`
	PathLength float64 `json:"path_length"`

	// 메타데이터
	Detail string `json:"detail"`
}

// NewDriveLog - 이벤트를 로그 레코드로 변환
func NewDriveLog(ev RobotEvent) DriveLog {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	entry := DriveLog{
		CreatedAt:  at,
		EventType:  ev.Type,
		RobotID:    ev.RobotID,
		PoseX:      ev.Pose.X,
		PoseY:      ev.Pose.Y,
		Heading:    ev.Pose.Heading,
		PlanID:     ev.PlanID,
		Waypoints:  ev.Waypoints,
		PathLength: ev.PathLength,
		Detail:     ev.Detail,
	}
	if ev.Destination != nil {
		entry.HasTarget = true
		entry.TargetX = ev.Destination.X
		entry.TargetY = ev.Destination.Y
	}
	return entry
}

package handlers

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"

	"arena-nav/models"
	"arena-nav/services"
)

// DriveRequest - 주행 요청 (path 또는 destination 중 하나)
type DriveRequest struct {
	Path        []models.Point `json:"path"`
	Destination *models.Point  `json:"destination"`
}

// ResetRequest - 포즈 재설정 요청
type ResetRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// HandleDrive - 경로 추종 또는 목적지 주행 시작
func (s *Server) HandleDrive(c *fiber.Ctx) error {
	var req DriveRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "잘못된 요청 형식입니다")
	}

	switch {
	case req.Destination != nil:
		plan, err := s.controller.SetDestination(s.ctx, *req.Destination)
		if errors.Is(err, services.ErrUnreachable) {
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, err.Error())
		}
		data := plan.PathData()
		s.hub.BroadcastMessage(models.NewMessage(models.MessageTypePathUpdate, data))
		return c.JSON(fiber.Map{
			"success": true,
			"path":    data,
			"robot":   s.controller.Snapshot(),
		})

	case len(req.Path) > 0:
		for _, p := range req.Path {
			if !p.IsFinite() {
				return fail(c, fiber.StatusBadRequest, "경로에 유효하지 않은 좌표가 있습니다")
			}
		}
		if s.controller.Config().Mode == models.DriveModeHardware {
			if err := s.controller.Drive(s.ctx, req.Path); err != nil {
				return fail(c, fiber.StatusInternalServerError, err.Error())
			}
		} else {
			s.controller.SetPath(req.Path)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"robot":   s.controller.Snapshot(),
		})

	default:
		return fail(c, fiber.StatusBadRequest, "path 또는 destination이 필요합니다")
	}
}

// HandleCancel - 주행 취소
func (s *Server) HandleCancel(c *fiber.Ctx) error {
	s.controller.Cancel()
	return c.JSON(fiber.Map{
		"success": true,
		"robot":   s.controller.Snapshot(),
	})
}

// HandleGetRobot - 로봇 상태 조회
func (s *Server) HandleGetRobot(c *fiber.Ctx) error {
	return c.JSON(s.controller.Snapshot())
}

// HandleResetRobot - 포즈 재설정
func (s *Server) HandleResetRobot(c *fiber.Ctx) error {
	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "잘못된 요청 형식입니다")
	}
	if !(models.Point{X: req.X, Y: req.Y}).IsFinite() || math.IsNaN(req.Heading) || math.IsInf(req.Heading, 0) {
		return fail(c, fiber.StatusBadRequest, "유효하지 않은 포즈입니다")
	}

	// 벽/팽창 영역 안이나 경기장 밖으로는 재설정하지 않음
	if !s.arenas.IsPositionValid(models.Point{X: req.X, Y: req.Y}) {
		return fail(c, fiber.StatusUnprocessableEntity, "로봇이 들어갈 수 없는 위치입니다")
	}

	s.controller.ResetPose(models.Pose{X: req.X, Y: req.Y, Heading: req.Heading})
	return c.JSON(fiber.Map{
		"success": true,
		"robot":   s.controller.Snapshot(),
	})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"arena-nav/algorithms"
	"arena-nav/models"
)

// ArenaRequest - 경기장 교체 요청 (preset 또는 직접 지정)
type ArenaRequest struct {
	Preset      string        `json:"preset"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	Walls       []models.Wall `json:"walls"`
	Goals       []models.Goal `json:"goals"`
	RobotRadius float64       `json:"robot_radius"`
}

// HandleGetArena - 현재 경기장 정보
func (s *Server) HandleGetArena(c *fiber.Ctx) error {
	msg := s.arenas.ArenaMessage()
	if msg == nil {
		return fail(c, fiber.StatusNotFound, "활성화된 경기장이 없습니다")
	}
	return c.JSON(msg)
}

// HandlePutArena - 경기장 교체 (진행 중인 주행은 취소)
func (s *Server) HandlePutArena(c *fiber.Ctx) error {
	var req ArenaRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "잘못된 요청 형식입니다")
	}

	radius := req.RobotRadius
	if radius == 0 {
		radius = s.cfg.RobotRadius
	}

	var arena *models.Arena
	if req.Preset != "" {
		preset, err := s.arenas.Preset(req.Preset, radius)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		arena = preset
	} else {
		arena = &models.Arena{
			Width:       req.Width,
			Height:      req.Height,
			Walls:       req.Walls,
			Goals:       req.Goals,
			RobotRadius: radius,
		}
	}

	planner, err := s.arenas.Activate(arena)
	if errors.Is(err, algorithms.ErrInvalidConfig) {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	s.controller.Cancel()
	s.controller.SetPlanner(planner)

	msg := planner.ArenaMessage()
	s.hub.BroadcastMessage(models.NewMessage(models.MessageTypeMapUpdate, msg))
	return c.JSON(msg)
}

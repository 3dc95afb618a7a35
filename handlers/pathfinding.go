package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"arena-nav/models"
	"arena-nav/services"
)

// PathfindingRequest - 경로 계획 요청 (start 생략 시 현재 로봇 위치)
type PathfindingRequest struct {
	Start       *models.Point `json:"start"`
	Destination models.Point  `json:"destination"`
}

// PathfindingResponse - 경로 계획 응답
type PathfindingResponse struct {
	Success   bool             `json:"success"`
	Path      *models.PathData `json:"path,omitempty"`
	Raw       []models.Point   `json:"raw,omitempty"`
	Clearance float64          `json:"clearance,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// HandlePlan - 경로만 계획 (로봇은 움직이지 않음)
func (s *Server) HandlePlan(c *fiber.Ctx) error {
	var req PathfindingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(PathfindingResponse{
			Message: "잘못된 요청 형식입니다",
		})
	}

	planner := s.arenas.Active()
	if planner == nil {
		return fail(c, fiber.StatusServiceUnavailable, "활성화된 경기장이 없습니다")
	}

	start := s.controller.Pose().Position()
	if req.Start != nil {
		start = *req.Start
	}

	s.logger.Debugf("📍 경로 탐색 요청: (%.1f, %.1f) → (%.1f, %.1f)",
		start.X, start.Y, req.Destination.X, req.Destination.Y)

	plan, err := planner.Plan(c.UserContext(), start, req.Destination)
	if errors.Is(err, services.ErrUnreachable) {
		return c.Status(fiber.StatusOK).JSON(PathfindingResponse{
			Message: "경로를 찾을 수 없습니다: " + err.Error(),
		})
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	data := plan.PathData()
	return c.Status(fiber.StatusOK).JSON(PathfindingResponse{
		Success:   true,
		Path:      &data,
		Raw:       plan.Raw,
		Clearance: plan.Clearance,
		Message:   "경로 탐색 성공",
	})
}

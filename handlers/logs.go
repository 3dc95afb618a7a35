package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"arena-nav/services"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	defaultLogHours = 24
	maxLogHours     = 24 * 30
)

// parseLogQuery - 로그 조회 쿼리 파싱
//
//	robot_id   기본값은 컨트롤러의 로봇 ID
//	plan_id    / event_type  선택
//	start, end RFC3339. start가 없으면 now - hours
//	hours      1..720, 기본 24
//	limit      1..1000, 기본 100
func (s *Server) parseLogQuery(c *fiber.Ctx) (services.LogFilter, error) {
	filter := services.LogFilter{
		RobotID:   c.Query("robot_id", s.controller.Config().RobotID),
		PlanID:    c.Query("plan_id"),
		EventType: c.Query("event_type"),
	}

	limit, err := boundedQueryInt(c, "limit", defaultLogLimit, maxLogLimit)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit

	hours, err := boundedQueryInt(c, "hours", defaultLogHours, maxLogHours)
	if err != nil {
		return filter, err
	}

	now := time.Now()
	filter.Since = now.Add(-time.Duration(hours) * time.Hour)
	if raw := c.Query("start"); raw != "" {
		if filter.Since, err = time.Parse(time.RFC3339, raw); err != nil {
			return filter, errors.New("start는 RFC3339 형식이어야 합니다")
		}
	}
	if raw := c.Query("end"); raw != "" {
		if filter.Until, err = time.Parse(time.RFC3339, raw); err != nil {
			return filter, errors.New("end는 RFC3339 형식이어야 합니다")
		}
		if filter.Until.Before(filter.Since) {
			return filter, errors.New("end가 start보다 앞설 수 없습니다")
		}
	}
	return filter, nil
}

// boundedQueryInt - 1..upper 범위의 정수 쿼리 값 (없으면 def)
func boundedQueryInt(c *fiber.Ctx, key string, def, upper int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return 0, errors.Errorf("%s는 1 이상 %d 이하의 정수여야 합니다", key, upper)
	}
	return n, nil
}

// logsAvailable - DB가 꺼져 있으면 503 응답
func (s *Server) logsAvailable(c *fiber.Ctx) bool {
	if s.logs != nil {
		return true
	}
	_ = fail(c, fiber.StatusServiceUnavailable, "로그 저장소가 꺼져 있습니다 (DB_DRIVER=none)")
	return false
}

// HandleGetLogs - 필터로 로그 조회 (최신순)
func (s *Server) HandleGetLogs(c *fiber.Ctx) error {
	if !s.logsAvailable(c) {
		return nil
	}
	filter, err := s.parseLogQuery(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	logs, err := s.logs.Find(filter)
	if err != nil {
		s.logger.Errorw("❌ 로그 조회 실패", "error", err)
		return fail(c, fiber.StatusInternalServerError, "로그 조회 실패")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"filter":  filter,
		"count":   len(logs),
		"logs":    logs,
	})
}

// HandleGetPlanTrace - 계획 하나의 이벤트 흐름 (시간순)
func (s *Server) HandleGetPlanTrace(c *fiber.Ctx) error {
	if !s.logsAvailable(c) {
		return nil
	}
	planID := c.Params("id")

	logs, err := s.logs.PlanTrace(planID)
	if err != nil {
		s.logger.Errorw("❌ 계획 이벤트 조회 실패", "plan_id", planID, "error", err)
		return fail(c, fiber.StatusInternalServerError, "로그 조회 실패")
	}
	if len(logs) == 0 {
		return fail(c, fiber.StatusNotFound, "해당 계획의 로그가 없습니다")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"plan_id": planID,
		"count":   len(logs),
		"logs":    logs,
	})
}

// HandleGetLogStats - 이벤트 통계 (robot_id/plan_id/start/end/hours 적용)
func (s *Server) HandleGetLogStats(c *fiber.Ctx) error {
	if !s.logsAvailable(c) {
		return nil
	}
	filter, err := s.parseLogQuery(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := s.logs.Stats(filter)
	if err != nil {
		s.logger.Errorw("❌ 로그 통계 조회 실패", "error", err)
		return fail(c, fiber.StatusInternalServerError, "통계 조회 실패")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

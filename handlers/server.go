// Package handlers exposes the planner and controller over fiber HTTP routes and a telemetry
// websocket.
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arena-nav/models"
	"arena-nav/services"
)

// Server - HTTP/WebSocket 핸들러 의존성
type Server struct {
	ctx        context.Context // 주행 워커 수명 (서버 종료 시 취소)
	cfg        services.Config
	logger     *zap.SugaredLogger
	controller *services.Controller
	simulator  *services.Simulator // 없으면 nil
	arenas     *services.ArenaStore
	logs       *services.LogStore // DB 미사용 시 nil
	hub        *ClientManager
	metrics    *services.Metrics
	startedAt  time.Time
}

// Dependencies - Server 생성 인자
type Dependencies struct {
	Config     services.Config
	Logger     *zap.SugaredLogger
	Controller *services.Controller
	Simulator  *services.Simulator
	Arenas     *services.ArenaStore
	Logs       *services.LogStore
	Hub        *ClientManager
	Metrics    *services.Metrics
}

// NewServer - 핸들러 서버 생성
func NewServer(ctx context.Context, deps Dependencies) *Server {
	return &Server{
		ctx:        ctx,
		cfg:        deps.Config,
		logger:     deps.Logger,
		controller: deps.Controller,
		simulator:  deps.Simulator,
		arenas:     deps.Arenas,
		logs:       deps.Logs,
		hub:        deps.Hub,
		metrics:    deps.Metrics,
		startedAt:  time.Now(),
	}
}

// Register - 모든 라우트 등록
func (s *Server) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("arena-nav 서버가 실행 중입니다.")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/health", s.HandleHealth)

	// 경기장
	api.Get("/arena", s.HandleGetArena)
	api.Put("/arena", s.HandlePutArena)

	// 경로 계획 / 주행
	api.Post("/plan", s.HandlePlan)
	api.Post("/drive", s.HandleDrive)
	api.Post("/drive/cancel", s.HandleCancel)
	api.Get("/robot", s.HandleGetRobot)
	api.Post("/robot/reset", s.HandleResetRobot)

	// 로그 조회 API
	logsAPI := api.Group("/logs")
	logsAPI.Get("", s.HandleGetLogs)               // robot_id, plan_id, event_type, start, end, hours, limit
	logsAPI.Get("/stats", s.HandleGetLogStats)     // 통계
	logsAPI.Get("/plan/:id", s.HandleGetPlanTrace) // 계획별 이벤트 흐름

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/websocket/web", websocket.New(s.HandleWebClientWebSocket))
}

// HandleHealth - 상태 확인
func (s *Server) HandleHealth(c *fiber.Ctx) error {
	health := fiber.Map{
		"status":  "OK",
		"clients": s.hub.GetClientCount(),
		"mode":    s.controller.Config().Mode,
		"state":   s.controller.State(),
		"time":    time.Now().Format(time.RFC3339),
	}
	if s.simulator != nil {
		health["loop"] = s.simulator.GetStatus()
	}
	return c.JSON(health)
}

// systemInfo - 시스템 정보 메시지 데이터
func (s *Server) systemInfo() models.SystemInfo {
	now := time.Now()
	return models.SystemInfo{
		ConnectedClients: s.hub.GetClientCount(),
		Mode:             s.controller.Config().Mode,
		ServerTime:       now,
		Uptime:           int64(now.Sub(s.startedAt).Seconds()),
	}
}

// fail - 공통 오류 응답
func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

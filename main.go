package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"arena-nav/algorithms"
	"arena-nav/handlers"
	"arena-nav/models"
	"arena-nav/services"
)

func main() {
	// .env 파일 로드
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env 파일을 찾을 수 없습니다.")
	}

	cfg, cfgErr := services.LoadConfig()
	zlog, err := services.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("❌ 로거 초기화 실패: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	if cfgErr != nil {
		zlog.Fatalf("❌ 설정 오류: %v", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := services.InitTracing(ctx, cfg.TraceStdout, zlog)
	if err != nil {
		zlog.Fatalf("❌ 트레이싱 초기화 실패: %v", err)
	}
	defer services.ShutdownTracing(shutdownTracing, zlog)

	metrics, err := services.NewMetrics(nil)
	if err != nil {
		zlog.Fatalf("❌ 메트릭 등록 실패: %v", err)
	}

	// DB + 이벤트 로그
	var (
		sinks    services.EventFanout
		logStore *services.LogStore
	)
	if cfg.DBDriver != "none" {
		db, err := services.OpenDatabase(cfg, zlog)
		if err != nil {
			zlog.Fatalf("❌ DB 초기화 실패: %v", err)
		}
		logBuffer := services.NewLogBuffer(db, cfg.LogFlushSize, cfg.LogFlushInterval, nil, zlog, metrics)
		defer logBuffer.Close() // 종료 시 남은 로그 저장
		sinks = append(sinks, logBuffer)
		logStore = services.NewLogStore(db)
	} else {
		zlog.Warn("⚠️ DB_DRIVER=none: 주행 로그를 저장하지 않습니다")
	}

	// 경기장 + 플래너
	plannerCfg := services.DefaultPlannerConfig()
	plannerCfg.CellSize = cfg.CellSize
	arenas := services.NewArenaStore(plannerCfg, zlog, metrics)
	arena, err := arenas.Preset(cfg.ArenaPreset, cfg.RobotRadius)
	if err != nil {
		zlog.Fatalf("❌ 경기장 생성 실패: %v", err)
	}
	planner, err := arenas.Activate(arena)
	if err != nil {
		zlog.Fatalf("❌ 점유 그리드 생성 실패: %v", err)
	}

	// 컨트롤러 (경기장 중앙 근처의 빈 셀에서 시작)
	start := models.Point{X: arena.Width / 2, Y: arena.Height / 2}
	if cell, ok := planner.Grid().NearestFreeCell(start); ok {
		start = planner.Grid().CellCenter(cell)
	} else {
		zlog.Fatalf("❌ %v: 로봇이 들어갈 자리가 없습니다", algorithms.ErrNoFreeCell)
	}

	hub := handlers.NewClientManager(zlog, metrics)
	controller := services.NewController(
		cfg.ControllerConfig(),
		models.Pose{X: start.X, Y: start.Y},
		zlog,
		services.WithPlanner(planner),
		services.WithMetrics(metrics),
		services.WithEventSink(sinks),
		services.WithActuator(services.NewLoggingActuator(zlog)),
	)

	simulator := services.NewSimulator(controller, hub.BroadcastMessage, nil, zlog)
	simulator.Start()
	defer simulator.Stop()
	defer controller.Cancel()

	go hub.Start(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	server := handlers.NewServer(ctx, handlers.Dependencies{
		Config:     cfg,
		Logger:     zlog,
		Controller: controller,
		Simulator:  simulator,
		Arenas:     arenas,
		Logs:       logStore,
		Hub:        hub,
		Metrics:    metrics,
	})
	server.Register(app)

	go func() {
		<-ctx.Done()
		zlog.Info("🛑 종료 신호 수신")
		_ = app.Shutdown()
	}()

	zlog.Infof("🚀 서버 시작: http://localhost:%s (모드: %s)", cfg.Port, cfg.DriveMode)
	zlog.Infof("📡 WebSocket: ws://localhost:%s/websocket/web", cfg.Port)
	zlog.Infof("📊 메트릭: http://localhost:%s/metrics", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Errorf("❌ 서버 오류: %v", err)
	}
}

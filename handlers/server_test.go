package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.viam.com/test"

	"arena-nav/models"
	"arena-nav/services"
)

type testServer struct {
	app        *fiber.App
	controller *services.Controller
	arenas     *services.ArenaStore
	buffer     *services.LogBuffer
	hub        *ClientManager
	metrics    *services.Metrics
}

// newTestServer - 대회 경기장 + 시뮬레이션 컨트롤러로 앱 구성 (withDB면 sqlite 메모리 DB)
func newTestServer(t *testing.T, withDB bool) *testServer {
	t.Helper()
	logger := zap.NewNop().Sugar()
	metrics, err := services.NewMetrics(prometheus.NewRegistry())
	test.That(t, err, test.ShouldBeNil)

	cfg := services.Config{RobotRadius: 250, DBDriver: "sqlite", SQLitePath: ":memory:"}
	arenas := services.NewArenaStore(services.DefaultPlannerConfig(), logger, metrics)
	planner, err := arenas.Activate(services.DefaultArena(250))
	test.That(t, err, test.ShouldBeNil)

	ts := &testServer{arenas: arenas, metrics: metrics}
	var (
		sinks services.EventFanout
		store *services.LogStore
	)
	if withDB {
		db, err := services.OpenDatabase(cfg, logger)
		test.That(t, err, test.ShouldBeNil)
		ts.buffer = services.NewLogBuffer(db, 100, time.Hour, nil, logger, metrics)
		t.Cleanup(ts.buffer.Close)
		sinks = append(sinks, ts.buffer)
		store = services.NewLogStore(db)
	}

	ts.controller = services.NewController(services.DefaultControllerConfig(), models.Pose{X: 4000, Y: 500}, logger,
		services.WithPlanner(planner), services.WithMetrics(metrics), services.WithEventSink(sinks))
	t.Cleanup(ts.controller.Cancel)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ts.hub = NewClientManager(logger, metrics)
	go ts.hub.Start(ctx)

	ts.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	NewServer(ctx, Dependencies{
		Config:     cfg,
		Logger:     logger,
		Controller: ts.controller,
		Simulator:  services.NewSimulator(ts.controller, ts.hub.BroadcastMessage, nil, logger),
		Arenas:     arenas,
		Logs:       store,
		Hub:        ts.hub,
		Metrics:    metrics,
	}).Register(ts.app)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		test.That(t, err, test.ShouldBeNil)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.app.Test(req, -1)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/api/health", nil)
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, body["status"], test.ShouldEqual, "OK")
	test.That(t, body["mode"], test.ShouldEqual, string(models.DriveModeSimulated))
	loop := body["loop"].(map[string]interface{})
	test.That(t, loop["running"], test.ShouldEqual, false)
	test.That(t, loop["interval"], test.ShouldEqual, (time.Second / services.DefaultTickHz).String())

	ts.do(t, http.MethodPost, "/api/plan", PathfindingRequest{Destination: models.Point{X: 500, Y: 1500}})

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, string(raw), test.ShouldContainSubstring, `arena_nav_plans_total{result="ok"} 1`)
}

func TestHandlePlan(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("from the robot pose", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/plan", PathfindingRequest{Destination: models.Point{X: 500, Y: 1500}})
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["success"], test.ShouldEqual, true)

		path := body["path"].(map[string]interface{})
		points := path["points"].([]interface{})
		first := points[0].(map[string]interface{})
		last := points[len(points)-1].(map[string]interface{})
		test.That(t, first["x"], test.ShouldEqual, 4000.0)
		test.That(t, first["y"], test.ShouldEqual, 500.0)
		test.That(t, last["x"], test.ShouldEqual, 500.0)
		test.That(t, last["y"], test.ShouldEqual, 1500.0)
		test.That(t, path["algorithm"], test.ShouldEqual, "a_star")

		// 계획만 하고 로봇은 움직이지 않음
		test.That(t, ts.controller.State(), test.ShouldEqual, models.StateIdle)
	})

	t.Run("explicit start", func(t *testing.T) {
		start := models.Point{X: 2500, Y: 2500}
		status, body := ts.do(t, http.MethodPost, "/api/plan", PathfindingRequest{Start: &start, Destination: models.Point{X: 2500, Y: 500}})
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["success"], test.ShouldEqual, true)
	})

	t.Run("destination outside the arena is clamped", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/api/plan", PathfindingRequest{Destination: models.Point{X: 1e9, Y: 1e9}})
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["success"], test.ShouldEqual, true)
	})

	t.Run("unreachable", func(t *testing.T) {
		boxed := &ArenaRequest{
			Width:  5000,
			Height: 3000,
			Walls: []models.Wall{
				{Start: models.Point{X: 2000, Y: 1000}, End: models.Point{X: 3000, Y: 1000}},
				{Start: models.Point{X: 3000, Y: 1000}, End: models.Point{X: 3000, Y: 2000}},
				{Start: models.Point{X: 3000, Y: 2000}, End: models.Point{X: 2000, Y: 2000}},
				{Start: models.Point{X: 2000, Y: 2000}, End: models.Point{X: 2000, Y: 1000}},
			},
		}
		status, _ := ts.do(t, http.MethodPut, "/api/arena", boxed)
		test.That(t, status, test.ShouldEqual, http.StatusOK)

		status, body := ts.do(t, http.MethodPost, "/api/plan", PathfindingRequest{Destination: models.Point{X: 2500, Y: 1500}})
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["success"], test.ShouldEqual, false)
		test.That(t, body["message"], test.ShouldContainSubstring, "destination unreachable")
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/plan", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := ts.app.Test(req, -1)
		test.That(t, err, test.ShouldBeNil)
		resp.Body.Close()
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	})
}

func TestHandleDrive(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodPost, "/api/drive", DriveRequest{Destination: &models.Point{X: 500, Y: 1500}})
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, body["success"], test.ShouldEqual, true)
	test.That(t, ts.controller.State(), test.ShouldNotEqual, models.StateIdle)
	test.That(t, ts.controller.Path(), test.ShouldNotBeEmpty)

	status, body = ts.do(t, http.MethodGet, "/api/robot", nil)
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, body["robot_id"], test.ShouldEqual, "robot-1")
	test.That(t, body["remaining_path"], test.ShouldNotBeEmpty)

	status, _ = ts.do(t, http.MethodPost, "/api/drive/cancel", nil)
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, ts.controller.State(), test.ShouldEqual, models.StateIdle)

	// 벽 내부 목적지: 가장 가까운 빈 셀로 스냅되어 성공
	status, _ = ts.do(t, http.MethodPost, "/api/drive", DriveRequest{Destination: &models.Point{X: 800, Y: 500}})
	test.That(t, status, test.ShouldEqual, http.StatusOK)

	status, _ = ts.do(t, http.MethodPost, "/api/drive", DriveRequest{Path: []models.Point{{X: 4100, Y: 600}, {X: 4200, Y: 600}}})
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, ts.controller.Path(), test.ShouldHaveLength, 2)

	status, _ = ts.do(t, http.MethodPost, "/api/drive", DriveRequest{})
	test.That(t, status, test.ShouldEqual, http.StatusBadRequest)
}

func TestHandleDriveUnreachable(t *testing.T) {
	ts := newTestServer(t, false)
	status, _ := ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Width: 600, Height: 600, RobotRadius: 300})
	test.That(t, status, test.ShouldEqual, http.StatusOK)

	status, body := ts.do(t, http.MethodPost, "/api/drive", DriveRequest{Destination: &models.Point{X: 300, Y: 300}})
	test.That(t, status, test.ShouldEqual, http.StatusUnprocessableEntity)
	test.That(t, body["success"], test.ShouldEqual, false)
	test.That(t, ts.controller.State(), test.ShouldEqual, models.StateIdle)
}

func TestHandleResetRobot(t *testing.T) {
	ts := newTestServer(t, false)

	status, _ := ts.do(t, http.MethodPost, "/api/robot/reset", ResetRequest{X: 1000, Y: 1500, Heading: 1})
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, ts.controller.Pose(), test.ShouldResemble, models.Pose{X: 1000, Y: 1500, Heading: 1})

	// 벽 위, 경기장 밖은 거부하고 포즈 유지
	for _, p := range []ResetRequest{{X: 800, Y: 500}, {X: -100, Y: 1500}, {X: 100, Y: 100}} {
		status, _ = ts.do(t, http.MethodPost, "/api/robot/reset", p)
		test.That(t, status, test.ShouldEqual, http.StatusUnprocessableEntity)
	}
	test.That(t, ts.controller.Pose(), test.ShouldResemble, models.Pose{X: 1000, Y: 1500, Heading: 1})
}

func TestHandleArena(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, http.MethodGet, "/api/arena", nil)
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, body["arena_id"], test.ShouldEqual, services.PresetStage)

	status, body = ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Preset: services.PresetOpen})
	test.That(t, status, test.ShouldEqual, http.StatusOK)
	test.That(t, body["arena_id"], test.ShouldEqual, services.PresetOpen)
	test.That(t, ts.controller.Planner(), test.ShouldEqual, ts.arenas.Active())

	status, _ = ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Preset: "maze"})
	test.That(t, status, test.ShouldEqual, http.StatusBadRequest)

	status, _ = ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Width: -5, Height: 100})
	test.That(t, status, test.ShouldEqual, http.StatusBadRequest)

	// 거대한 경기장/반경은 그리드를 만들기 전에 거부
	status, _ = ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Width: 1e15, Height: 1e15})
	test.That(t, status, test.ShouldEqual, http.StatusBadRequest)
	status, _ = ts.do(t, http.MethodPut, "/api/arena", ArenaRequest{Width: 5000, Height: 3000, RobotRadius: 1e9})
	test.That(t, status, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, ts.arenas.Active().Arena().ID, test.ShouldEqual, services.PresetOpen)
}

func TestHandleLogs(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, false)
		status, _ := ts.do(t, http.MethodGet, "/api/logs", nil)
		test.That(t, status, test.ShouldEqual, http.StatusServiceUnavailable)
	})

	t.Run("recorded events", func(t *testing.T) {
		ts := newTestServer(t, true)
		status, body := ts.do(t, http.MethodPost, "/api/drive", DriveRequest{Destination: &models.Point{X: 500, Y: 1500}})
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		planID := body["path"].(map[string]interface{})["plan_id"].(string)
		test.That(t, planID, test.ShouldNotBeEmpty)

		// 다른 로봇의 이벤트는 기본 robot_id 필터에 걸리지 않음
		ts.buffer.Record(models.RobotEvent{Type: models.EventPoseReset, RobotID: "other-robot"})
		ts.buffer.Flush()

		status, body = ts.do(t, http.MethodGet, "/api/logs?limit=10", nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["count"], test.ShouldEqual, 1.0)

		status, body = ts.do(t, http.MethodGet, "/api/logs?robot_id=other-robot", nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["count"], test.ShouldEqual, 1.0)

		status, body = ts.do(t, http.MethodGet, "/api/logs?event_type=plan&plan_id="+planID, nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["count"], test.ShouldEqual, 1.0)

		status, body = ts.do(t, http.MethodGet, "/api/logs?plan_id=unknown", nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["count"], test.ShouldEqual, 0.0)

		status, body = ts.do(t, http.MethodGet, "/api/logs/plan/"+planID, nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		test.That(t, body["count"], test.ShouldEqual, 1.0)

		status, _ = ts.do(t, http.MethodGet, "/api/logs/plan/unknown", nil)
		test.That(t, status, test.ShouldEqual, http.StatusNotFound)

		status, body = ts.do(t, http.MethodGet, "/api/logs/stats?hours=1", nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
		stats := body["stats"].(map[string]interface{})
		test.That(t, stats["total_logs"], test.ShouldEqual, 1.0)
		test.That(t, stats["plans"], test.ShouldEqual, 1.0)
	})

	t.Run("invalid query", func(t *testing.T) {
		ts := newTestServer(t, true)
		for _, query := range []string{
			"limit=-1",
			"limit=0",
			"limit=abc",
			"limit=1001",
			"hours=-3",
			"hours=100000",
			"start=yesterday",
			"end=2026-01-01",
			"start=2026-02-01T00:00:00Z&end=2026-01-01T00:00:00Z",
		} {
			status, body := ts.do(t, http.MethodGet, "/api/logs?"+query, nil)
			test.That(t, status, test.ShouldEqual, http.StatusBadRequest)
			test.That(t, body["success"], test.ShouldEqual, false)
		}

		status, _ := ts.do(t, http.MethodGet, "/api/logs/stats?hours=0", nil)
		test.That(t, status, test.ShouldEqual, http.StatusBadRequest)

		status, _ = ts.do(t, http.MethodGet, "/api/logs?start=2026-01-01T00:00:00Z&end=2026-02-01T00:00:00Z&limit=1000", nil)
		test.That(t, status, test.ShouldEqual, http.StatusOK)
	})
}

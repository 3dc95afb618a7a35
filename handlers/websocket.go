package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"arena-nav/models"
	"arena-nav/services"
)

// Client - 연결된 웹 뷰어 (쓰기는 한 번에 하나씩)
type Client struct {
	Conn *websocket.Conn
	mu   sync.Mutex
}

// send - 직렬화된 쓰기
func (c *Client) send(msg models.WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(msg)
}

// ClientManager - 클라이언트 관리자 (등록/해제/브로드캐스트를 하나의 고루틴에서 처리)
type ClientManager struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan models.WebSocketMessage
	register   chan *Client
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     *zap.SugaredLogger
	metrics    *services.Metrics
}

// NewClientManager - 클라이언트 관리자 생성
func NewClientManager(logger *zap.SugaredLogger, metrics *services.Metrics) *ClientManager {
	return &ClientManager{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan models.WebSocketMessage, 100),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
		metrics:    metrics,
	}
}

// Start - 클라이언트 관리 루프 (ctx 종료 시 모든 연결 해제)
func (manager *ClientManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			manager.mutex.Lock()
			for conn := range manager.clients {
				_ = conn.Close()
				delete(manager.clients, conn)
			}
			manager.mutex.Unlock()
			manager.metrics.SetClients(0)
			return

		case client := <-manager.register:
			manager.mutex.Lock()
			manager.clients[client.Conn] = client
			n := len(manager.clients)
			manager.mutex.Unlock()
			manager.metrics.SetClients(n)
			manager.logger.Infof("클라이언트 등록: %s", client.Conn.RemoteAddr())

		case conn := <-manager.unregister:
			manager.remove(conn)

		case message := <-manager.broadcast:
			manager.handleBroadcast(message)
		}
	}
}

func (manager *ClientManager) remove(conn *websocket.Conn) {
	manager.mutex.Lock()
	_, ok := manager.clients[conn]
	if ok {
		delete(manager.clients, conn)
		_ = conn.Close()
	}
	n := len(manager.clients)
	manager.mutex.Unlock()

	if ok {
		manager.metrics.SetClients(n)
		manager.logger.Infof("클라이언트 해제: %s", conn.RemoteAddr())
	}
}

func (manager *ClientManager) handleBroadcast(message models.WebSocketMessage) {
	manager.mutex.RLock()
	var failed []*websocket.Conn
	for conn, client := range manager.clients {
		if err := client.send(message); err != nil {
			manager.logger.Debugf("전송 실패 (%s): %v", conn.RemoteAddr(), err)
			failed = append(failed, conn)
		}
	}
	manager.mutex.RUnlock()

	for _, conn := range failed {
		manager.remove(conn)
	}
}

// BroadcastMessage - 모든 클라이언트에 전송 (버퍼가 차면 버림)
func (manager *ClientManager) BroadcastMessage(msg models.WebSocketMessage) {
	select {
	case manager.broadcast <- msg:
	default:
		manager.logger.Debugf("브로드캐스트 버퍼 가득 참, %s 메시지 버림", msg.Type)
	}
}

// GetClientCount - 연결된 클라이언트 수
func (manager *ClientManager) GetClientCount() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}

// inboundMessage - 웹에서 받은 메시지 (data는 타입별로 다시 해석)
type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// HandleWebClientWebSocket - 뷰어 연결: 경기장 정보 전송 후 명령 수신
func (s *Server) HandleWebClientWebSocket(c *websocket.Conn) {
	client := &Client{Conn: c}

	// 정적 경기장 정보 + 시스템 정보 (등록 전에 보내서 브로드캐스트와 섞이지 않게)
	if arena := s.arenas.ArenaMessage(); arena != nil {
		_ = client.send(models.NewMessage(models.MessageTypeMapUpdate, arena))
	}
	_ = client.send(models.NewMessage(models.MessageTypeSystemInfo, s.systemInfo()))

	// 허브가 종료된 뒤에는 등록/해제를 기다리지 않음
	select {
	case s.hub.register <- client:
	case <-s.ctx.Done():
		return
	}
	defer func() {
		select {
		case s.hub.unregister <- c:
		case <-s.ctx.Done():
		}
	}()

	for {
		var msg inboundMessage
		if err := c.ReadJSON(&msg); err != nil {
			s.logger.Debugf("웹 메시지 읽기 오류: %v", err)
			break
		}

		switch msg.Type {
		case models.MessageTypeCommand:
			var cmd models.MoveCommand
			if err := json.Unmarshal(msg.Data, &cmd); err != nil {
				_ = client.send(errorMessage("잘못된 명령 형식입니다"))
				continue
			}
			s.handleCommand(client, cmd)

		case models.MessageTypeEmergencyStop:
			s.controller.Cancel()
			s.logger.Warn("🚨 긴급 정지")
			s.hub.BroadcastMessage(models.NewMessage(models.MessageTypeSystemInfo, s.systemInfo()))

		default:
			s.logger.Debugf("알 수 없는 메시지 타입: %s", msg.Type)
		}
	}
}

// handleCommand - 이동/정지 명령 처리
func (s *Server) handleCommand(client *Client, cmd models.MoveCommand) {
	switch cmd.Action {
	case models.CommandMoveTo:
		dest := models.Point{X: cmd.TargetX, Y: cmd.TargetY}
		plan, err := s.controller.SetDestination(s.ctx, dest)
		if err != nil {
			_ = client.send(errorMessage(err.Error()))
			return
		}
		s.hub.BroadcastMessage(models.NewMessage(models.MessageTypePathUpdate, plan.PathData()))

	case models.CommandStop:
		s.controller.Cancel()

	default:
		_ = client.send(errorMessage("알 수 없는 명령: " + cmd.Action))
	}
}

func errorMessage(text string) models.WebSocketMessage {
	return models.WebSocketMessage{
		Type:      models.MessageTypeError,
		Data:      map[string]string{"message": text},
		Timestamp: time.Now().UnixMilli(),
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/roomserver/broadcast"
	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/monitor"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/state"
)

const (
	DefaultRoomID   = "default"
	DefaultRoomName = "Default Room"

	errInvalidMessage   = "Invalid message format"
	errJoinFailed       = "Failed to join room"
	errRoomLimitReached = "Room limit reached"
	welcomeMessage      = "Connected to game server"
)

// ErrAlreadyStarted is returned by Start on a running server.
var ErrAlreadyStarted = errors.New("server already started")

type GameServer struct {
	cfg            config.ServerConfig
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
	roomManager    *room.Manager
	sessionManager *session.Manager
	playerService  *services.PlayerService
	gameState      *state.Manager
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	archive        *services.ArchiveService

	machine *state.BaseStateMachine
	running *state.LifecycleState
	stopped *state.LifecycleState

	mutex      sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	errCh      chan error

	db       persistence.Database
	autoSave time.Duration
	onStatus func(running bool)
}

type Option func(*GameServer)

// WithMonitor replaces the server's private metrics monitor.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *GameServer) {
		s.monitor = m
	}
}

// WithDatabase archives rooms and players to db every interval and on reap.
func WithDatabase(db persistence.Database, interval time.Duration) Option {
	return func(s *GameServer) {
		s.db = db
		s.autoSave = interval
	}
}

// WithStatusHook is called with true after Start and false after Stop.
func WithStatusHook(fn func(running bool)) Option {
	return func(s *GameServer) {
		s.onStatus = fn
	}
}

func NewGameServer(cfg config.ServerConfig, opts ...Option) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(room.WithMaxRooms(cfg.MaxRooms)),
		sessionManager: session.NewManager(),
		playerService:  services.NewPlayerService(),
		errCh:          make(chan error, 1),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.monitor == nil {
		s.monitor = monitor.NewMonitor("gameserver")
	}
	if s.db != nil {
		s.archive = services.NewArchiveService(s.db, s.roomManager, s.playerService, s.autoSave)
	}

	s.gameState = state.NewManager(
		state.Config{TickRate: cfg.TickRate, DisconnectTimeout: cfg.DisconnectTimeout},
		s.roomManager, s.playerService,
		state.WithTickHook(s.onTick),
		state.WithReapHook(s.onReap),
	)
	s.broadcaster = broadcast.NewStateBroadcaster(s.roomManager, s.playerService, s.sessionManager,
		cfg.StateSyncFrequency, broadcast.WithSentHook(s.monitor.AddStateSyncFrames))

	s.stopped = &state.LifecycleState{ID: state.StateStopped}
	s.running = &state.LifecycleState{
		ID:    state.StateRunning,
		Enter: s.startLoops,
		Exit:  s.stopLoops,
	}
	s.machine = state.NewBaseStateMachine(s.stopped)

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.Handle("/metrics", s.monitor.Handler())
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

// Start binds the listener, serves it in the background and starts the clock and the
// broadcaster. Serve errors arrive on Errors.
func (s *GameServer) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.httpServer = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Game server stopped serving: %v", err)
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	s.machine.ChangeState(s.running)
	logger.Log.Infof("Game server listening on %s", ln.Addr())
	return nil
}

// Stop halts the loops and closes the listener. Clients already connected keep their
// sockets; Start may be called again.
func (s *GameServer) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return
	}
	s.machine.ChangeState(s.stopped)
	if err := s.httpServer.Close(); err != nil {
		logger.Log.Warnf("Error closing game server listener: %v", err)
	}
	s.listener = nil
	s.httpServer = nil
	logger.Log.Info("Game server stopped")
}

func (s *GameServer) startLoops() {
	s.gameState.Start()
	s.broadcaster.Start()
	if s.archive != nil {
		s.archive.Start()
	}
	if s.onStatus != nil {
		s.onStatus(true)
	}
}

func (s *GameServer) stopLoops() {
	s.gameState.Stop()
	s.broadcaster.Stop()
	if s.archive != nil {
		s.archive.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archive.SaveAll(ctx); err != nil {
			logger.Log.Errorf("Final save failed: %v", err)
		}
	}
	if s.onStatus != nil {
		s.onStatus(false)
	}
}

// IsRunning reports whether the server is between Start and Stop.
func (s *GameServer) IsRunning() bool {
	return s.machine.GetCurrentState().GetID() == state.StateRunning
}

// Addr returns the bound listener address, or "" when stopped.
func (s *GameServer) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors delivers listener failures after Start returned.
func (s *GameServer) Errors() <-chan error {
	return s.errCh
}

func (s *GameServer) Stats() models.Stats {
	return models.Stats{
		PlayerCount:      s.playerService.PlayerCount(),
		ConnectedPlayers: s.playerService.ConnectedCount(),
		RoomCount:        s.roomManager.RoomCount(),
		ClientCount:      s.sessionManager.Count(),
	}
}

func (s *GameServer) Rooms() *room.Manager {
	return s.roomManager
}

func (s *GameServer) Players() *services.PlayerService {
	return s.playerService
}

func (s *GameServer) GameState() *state.Manager {
	return s.gameState
}

func (s *GameServer) onTick(elapsed time.Duration) {
	s.monitor.ObserveTick(elapsed)
	s.monitor.SetActiveRooms(s.roomManager.RoomCount())
	s.monitor.SetRegisteredPlayers(s.playerService.PlayerCount())
}

func (s *GameServer) onReap(p models.Player) {
	s.monitor.IncPlayersReaped()
	if s.archive != nil {
		s.archive.ArchivePlayer(p)
	}
}

// --- HTTP ---

func (s *GameServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleWebSocket(w, r)
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.IsRunning() || !s.gameState.IsRunning() || !s.broadcaster.Running() {
		http.Error(w, "stopped", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		logger.Log.Warnf("Failed to write stats: %v", err)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn, network.ConnOptions{
		Heartbeat:      s.cfg.HeartbeatInterval,
		MaxMessageSize: s.cfg.MaxMessageSize,
	}))
}

// --- connection ---

func newClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// defaultPlayerName uses the random part of the client ID.
func defaultPlayerName(clientID string) string {
	return "Player_" + clientID[strings.LastIndex(clientID, "_")+1:]
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(newClientID(), conn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineClients()
	logger.Log.Infof("New connection from %s, client ID: %s", conn.RemoteAddr(), sess.GetID())

	s.send(sess, network.MsgTypeJoin, sess.GetID(), "", network.WelcomeData{Message: welcomeMessage})

	defer s.handleDisconnect(sess)
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warnf("Read error from %s: %v", sess.GetID(), err)
			}
			return
		}
		s.handleFrame(sess, data)
	}
}

func (s *GameServer) handleDisconnect(sess *session.Session) {
	id := sess.GetID()
	s.roomManager.RemoveMemberEverywhere(id)
	s.playerService.DisconnectPlayer(id)
	s.sessionManager.Remove(id)
	s.monitor.DecOnlineClients()
	sess.Close()
	logger.Log.Infof("Connection closed, client ID: %s, connected for %v", id, time.Since(sess.CreatedAt).Round(time.Millisecond))
}

func (s *GameServer) handleFrame(sess *session.Session, data []byte) {
	start := time.Now()
	defer func() {
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	msg, err := network.Decode(data)
	if err != nil {
		s.monitor.IncProtocolErrors()
		logger.Log.Debugf("Invalid frame from %s: %v", sess.GetID(), err)
		s.sendError(sess, errInvalidMessage)
		return
	}

	switch msg.Type {
	case network.MsgTypeJoin:
		s.monitor.IncMessagesReceived(string(msg.Type))
		s.handleJoin(sess, msg)
	case network.MsgTypeLeave:
		s.monitor.IncMessagesReceived(string(msg.Type))
		s.handleLeave(sess, msg)
	case network.MsgTypePlayerAction:
		s.monitor.IncMessagesReceived(string(msg.Type))
		s.handlePlayerAction(sess, msg)
	default:
		s.monitor.IncMessagesReceived("unknown")
		logger.Log.Warnf("Unknown message type %q from %s", msg.Type, sess.GetID())
	}
}

func (s *GameServer) handleJoin(sess *session.Session, msg *network.Message) {
	var req network.JoinRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			logger.Log.Debugf("Ignoring malformed join payload from %s: %v", sess.GetID(), err)
		}
	}

	playerID := sess.GetID()
	name := req.Name
	if name == "" {
		name = defaultPlayerName(playerID)
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = DefaultRoomID
	}
	roomName := req.RoomName
	if roomName == "" {
		roomName = DefaultRoomName
	}

	if _, created, err := s.roomManager.GetOrCreateRoom(roomID, roomName, room.DefaultMaxPlayers); err != nil {
		logger.Log.Warnf("Client %s cannot create room %s: %v", playerID, roomID, err)
		s.sendError(sess, errRoomLimitReached)
		return
	} else if created {
		logger.Log.Infof("Room %s created", roomID)
	}

	player := s.playerService.CreatePlayer(playerID, name)
	if !s.roomManager.AddMember(roomID, playerID) {
		s.sendError(sess, errJoinFailed)
		return
	}

	r, _ := s.roomManager.GetRoom(roomID)
	logger.Log.Infof("Player %s (%s) joined room %s", playerID, name, roomID)
	s.send(sess, network.MsgTypeJoin, playerID, roomID, network.JoinAck{
		Player: player,
		Room:   r.Summary(),
	})
}

func (s *GameServer) handleLeave(sess *session.Session, msg *network.Message) {
	if msg.RoomID != "" {
		s.roomManager.RemoveMember(msg.RoomID, sess.GetID())
	}
	s.playerService.DisconnectPlayer(sess.GetID())
}

func (s *GameServer) handlePlayerAction(sess *session.Session, msg *network.Message) {
	var req network.ActionRequest
	if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &req) != nil {
		return
	}

	id := sess.GetID()
	switch req.Action {
	case network.ActionMove:
		var data network.MoveData
		if json.Unmarshal(req.Data, &data) == nil && data.Position != nil {
			s.playerService.UpdatePosition(id, *data.Position)
		}
	case network.ActionUpdateHealth:
		var data network.HealthData
		if json.Unmarshal(req.Data, &data) == nil && data.Health != nil {
			s.playerService.UpdateHealth(id, *data.Health)
		}
	case network.ActionUpdateScore:
		var data network.ScoreData
		if json.Unmarshal(req.Data, &data) == nil && data.Score != nil {
			s.playerService.UpdateScore(id, *data.Score)
		}
	default:
		logger.Log.Debugf("Unknown action %q from %s", req.Action, id)
	}
}

func (s *GameServer) send(sess *session.Session, msgType network.MessageType, playerID, roomID string, data any) {
	msg, err := network.NewMessage(msgType, playerID, roomID, data)
	if err != nil {
		logger.Log.Errorf("Failed to build %s frame: %v", msgType, err)
		return
	}
	frame, err := network.Encode(msg)
	if err != nil {
		logger.Log.Errorf("Failed to encode %s frame: %v", msgType, err)
		return
	}
	if err := sess.Send(frame); err != nil {
		logger.Log.Debugf("Dropped %s frame to %s: %v", msgType, sess.GetID(), err)
	}
}

func (s *GameServer) sendError(sess *session.Session, text string) {
	s.send(sess, network.MsgTypeError, "", "", network.ErrorData{Error: text})
}

// internal/server/server.go
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AlverezYari/juststop/internal/logging"
	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed web/index.html
var indexHTML []byte

const (
	maxLogEntries   = 100
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 2 * time.Second
)

type LogEntry struct {
	Timestamp time.Time
	Message   string
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server mirrors the frames shown in the terminal to browsers over a
// websocket, alongside a small JSON API describing the camera state.
type Server struct {
	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	ip        string
	port      string
	isRunning bool
	stop      chan struct{}
	stopped   chan struct{}

	logBuffer   []LogEntry
	logMutex    sync.RWMutex
	logCallback func(level, message string) // Callback for forwarding logs
	logger      *zap.SugaredLogger

	upgrader  websocket.Upgrader
	clients   map[*client]bool
	clientsMu sync.RWMutex

	frames *frame.Slot[frame.Picture]

	stateMu sync.RWMutex
	status  stream.Status
	devices []camera.Device
}

func New(ip, port string, logger *zap.SugaredLogger, logCallback func(level, message string)) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		ip:          ip,
		port:        port,
		logBuffer:   make([]LogEntry, 0, maxLogEntries),
		logCallback: logCallback,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		frames:  frame.NewSlot[frame.Picture](),
		devices: make([]camera.Device, 0),
	}
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.addLog("ERROR", fmt.Sprintf("Server is already running on port %s", s.port))
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.ip, s.port))
	if err != nil {
		s.addLog("ERROR", fmt.Sprintf("Error listening on %s:%s: %v", s.ip, s.port, err))
		return fmt.Errorf("listening: %w", err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.broadcast(s.stop, s.stopped)
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.addLog("ERROR", fmt.Sprintf("HTTP server error: %v", err))
		}
	}(s.server)

	s.isRunning = true
	s.addLog("INFO", fmt.Sprintf("Server is running on %s", ln.Addr()))
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		s.addLog("ERROR", "Server stop requested, but server is not running")
		return fmt.Errorf("server is not running")
	}

	s.addLog("INFO", "Stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	s.closeClients()
	err := s.server.Shutdown(ctx)
	close(s.stop)
	<-s.stopped

	s.isRunning = false
	s.listener = nil
	if err != nil {
		s.addLog("ERROR", fmt.Sprintf("Server shutdown error: %v", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.addLog("INFO", "Server stopped successfully!")
	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) Port() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Addr is the address the server is listening on, empty when stopped.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) SetPort(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("cannot change port while server is running")
	}
	s.port = port
	return nil
}

// SetStatus records the camera state served by /api/status.
func (s *Server) SetStatus(status stream.Status) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.status = status
}

// SetDevices records the device list served by /api/devices.
func (s *Server) SetDevices(devices []camera.Device) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.devices = append(make([]camera.Device, 0, len(devices)), devices...)
}

// Publish queues pic for the connected browsers. It never blocks; a
// picture nobody has sent yet is replaced. Call it from one goroutine.
func (s *Server) Publish(pic frame.Picture) {
	if !s.IsRunning() {
		return
	}
	s.frames.Offer(pic)
}

func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(s.requestLog())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	api := r.Group("/api")
	api.GET("/devices", s.listDevices)
	api.GET("/status", s.getStatus)

	r.GET("/ws/frames", s.handleWebSocketFrames)

	r.NoRoute(notFound)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleWebSocketFrames(c *gin.Context) {
	r := c.Request
	s.addLog("INFO", fmt.Sprintf("Websocket connection attempt from: %s", r.RemoteAddr))
	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		s.addLog("ERROR", fmt.Sprintf("Error upgrading websocket connection: %v", err))
		return
	}

	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 1)}
	s.addLog("INFO", fmt.Sprintf("Websocket client %s connected from: %s", cl.id, r.RemoteAddr))

	s.clientsMu.Lock()
	s.clients[cl] = true
	s.clientsMu.Unlock()

	go s.writeLoop(cl)

	defer s.removeClient(cl)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.addLog("ERROR", fmt.Sprintf("Error reading message from websocket: %v", err))
			}
			return
		}
	}
}

func (s *Server) writeLoop(cl *client) {
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			s.addLog("ERROR", fmt.Sprintf("Error writing message to websocket %s: %v", cl.id, err))
			cl.conn.Close()
			return
		}
	}
}

func (s *Server) removeClient(cl *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if !s.clients[cl] {
		return
	}
	delete(s.clients, cl)
	close(cl.send)
	cl.conn.Close()
	s.addLog("INFO", fmt.Sprintf("Websocket client %s disconnected", cl.id))
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for cl := range s.clients {
		cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		delete(s.clients, cl)
		close(cl.send)
		cl.conn.Close()
	}
}

// broadcast sends every published picture to all clients, skipping
// clients that have not finished writing the previous one.
func (s *Server) broadcast(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-stop:
			return
		case pic := <-s.frames.C():
			msg, err := encodePicture(pic)
			if err != nil {
				s.logger.Warnf("encoding frame for preview: %v", err)
				continue
			}
			s.clientsMu.RLock()
			for cl := range s.clients {
				select {
				case cl.send <- msg:
				default:
				}
			}
			s.clientsMu.RUnlock()
		}
	}
}

func (s *Server) GetRecentLogs(n int) []LogEntry {
	s.logMutex.RLock()
	defer s.logMutex.RUnlock()
	if n > len(s.logBuffer) {
		n = len(s.logBuffer)
	}
	return append([]LogEntry(nil), s.logBuffer[len(s.logBuffer)-n:]...)
}

func (s *Server) addLog(level, message string) {
	logEntry := LogEntry{
		Timestamp: time.Now(),
		Message:   fmt.Sprintf("[%s] %s", level, message),
	}

	s.logMutex.Lock()
	s.logBuffer = append(s.logBuffer, logEntry)
	if len(s.logBuffer) > maxLogEntries {
		s.logBuffer = s.logBuffer[1:]
	}
	s.logMutex.Unlock()

	switch level {
	case "ERROR":
		s.logger.Error(message)
	default:
		s.logger.Info(message)
	}
	if s.logCallback != nil {
		s.logCallback(level, message)
	}
}

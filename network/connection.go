// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendQueueSize  = 256
	defaultMaxSize = 64 * 1024
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Connection is one client socket carrying JSON frames.
type Connection interface {
	Send(data []byte) error
	ReadMessage() ([]byte, error)
	IsOpen() bool
	Close() error
	RemoteAddr() net.Addr
}

// ConnOptions tunes a WSConnection.
type ConnOptions struct {
	// Heartbeat enables websocket pings at this interval and a read deadline of twice
	// the interval. Zero disables both.
	Heartbeat      time.Duration
	MaxMessageSize int64
}

// WSConnection 封装 websocket 连接；写操作由独立协程串行执行
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn, opts ConnOptions) *WSConnection {
	c := &WSConnection{
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		heartbeat: opts.Heartbeat,
	}

	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	conn.SetReadLimit(maxSize)

	if c.heartbeat > 0 {
		conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
		})
	}

	go c.writePump()
	return c
}

// Send queues a text frame. It never blocks: a closed connection or a full queue
// drops the frame and reports why.
func (c *WSConnection) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *WSConnection) IsOpen() bool {
	return !c.closed.Load()
}

func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) writePump() {
	var ping <-chan time.Time
	if c.heartbeat > 0 {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 32
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
)

type Conn struct {
	ws   *websocket.Conn
	hub  *Hub
	slug string
	// 出站队列，writeLoop 独占写 socket
	send chan OutboundMessage
	done chan struct{}
	once sync.Once
}

func NewConn(ws *websocket.Conn, hub *Hub, slug string) *Conn {
	return &Conn{
		ws:   ws,
		hub:  hub,
		slug: slug,
		send: make(chan OutboundMessage, sendQueueSize),
		done: make(chan struct{}),
	}
}

// SendMessage_Enqueue 非阻塞入队，队列满或连接已关闭时丢弃
func (c *Conn) SendMessage_Enqueue(msg OutboundMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		// 如果队列满了，则丢弃消息
		return false
	}
}

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) readLoop() {
	defer c.close()
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read json error (slug=%s): %v", c.slug, err)
			}
			return
		}
		switch msg.Type {
		case TypeHeartbeat:
			_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
			c.SendMessage_Enqueue(ServerMessage{Type: TypeFeedback, Slug: c.slug, Content: "Heartbeat received"})
		default:
			c.SendMessage_Enqueue(ServerMessage{Type: TypeIgnored, Content: "Unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("write json error (slug=%s): %v", c.slug, err)
				c.close()
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				_ = c.ws.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

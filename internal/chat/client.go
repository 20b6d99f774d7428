package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client обёртка над websocket-соединением: в сокет пишет только один писатель за раз
type Client struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, writeTimeout time.Duration) *Client {
	return &Client{conn: conn, writeTimeout: writeTimeout}
}

func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(v)
}

// CloseWithCode отправляет close-кадр с кодом и закрывает соединение
func (c *Client) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.Close()
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// ReadMessage читает следующий кадр; читать может только одна горутина
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

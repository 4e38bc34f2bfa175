//go:build !(rp2040 || rp2350)

package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

func init() { RegisterTransport("websocket", newWSTransport) }

type wsTransport struct {
	url    string
	dialer *websocket.Dialer
}

func newWSTransport(cfg TransportConfig) (Transport, error) {
	if cfg.WebSocket == nil || cfg.WebSocket.URL == "" {
		return nil, errors.New("websocket transport requires websocket.url")
	}
	return &wsTransport{url: cfg.WebSocket.URL, dialer: websocket.DefaultDialer}, nil
}

func (t *wsTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	c, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}
	return NewWSStream(c), nil
}

func (t *wsTransport) String() string { return "websocket" }

// WSStream presents a websocket connection as a byte stream. Each Write is
// one binary message; Read drains messages in order.
type WSStream struct {
	c   *websocket.Conn
	r   io.Reader
	wmu sync.Mutex
}

func NewWSStream(c *websocket.Conn) *WSStream { return &WSStream{c: c} }

func (s *WSStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			typ, r, err := s.c.NextReader()
			if err != nil {
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *WSStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WSStream) Close() error {
	s.wmu.Lock()
	_ = s.c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.wmu.Unlock()
	return s.c.Close()
}

package pyth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type stream struct {
	conn   *websocket.Conn
	frames chan []byte
	errs   chan error
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newStream(conn *websocket.Conn) *stream {
	return &stream{
		conn:   conn,
		frames: make(chan []byte, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (s *stream) Frames() <-chan []byte { return s.frames }
func (s *stream) Errors() <-chan error  { return s.errs }

// Close stops both loops and closes the connection. Safe to call more than once.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *stream) readLoop() {
	defer close(s.frames)
	defer close(s.errs)
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			s.errs <- fmt.Errorf("hermes read: %w", err)
			return
		}
		select {
		case s.frames <- b:
		case <-s.done:
			return
		}
	}
}

func (s *stream) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(every/2))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}

package service

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 25 * time.Second
	maxReadBytes = 4096
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout:  10 * time.Second,
	ReadBufferSize:    4096,
	WriteBufferSize:   16384,
	CheckOrigin:       func(r *http.Request) bool { return true }, // CORS открыт, как и HTTP
	EnableCompression: true,
}

// wsObserver обслуживает одно браузерное соединение, у него своя очередь и writePump.
type wsObserver struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	once   sync.Once
	closed chan struct{}
}

func newWSObserver(conn *websocket.Conn) *wsObserver {
	return &wsObserver{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (o *wsObserver) ID() string { return o.id }

func (o *wsObserver) Send(payload []byte) error {
	select {
	case <-o.closed:
		return ErrObserverClosed
	default:
	}
	select {
	case o.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *wsObserver) Close() {
	o.once.Do(func() { close(o.closed) })
}

func (o *wsObserver) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = o.conn.Close()
	}()
	for {
		select {
		case <-o.closed:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = o.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-o.send:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				o.Close()
				return
			}
		case <-ticker.C:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.Close()
				return
			}
		}
	}
}

// readPump читает только чтобы обрабатывать pong/close; входящие сообщения игнорируются.
func (o *wsObserver) readPump(onDone func()) {
	defer onDone()
	o.conn.SetReadLimit(maxReadBytes)
	_ = o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWS апгрейдит соединение и подписывает его на реестр.
func ServeWS(reg *Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade", zap.Error(err))
			return
		}
		o := newWSObserver(conn)
		go o.writePump()

		current, err := reg.Subscribe(o)
		if err != nil {
			log.Warn("initial snapshot not delivered", zap.String("observer", o.id), zap.Error(err))
		}
		log.Debug("observer connected", zap.String("observer", o.id), zap.Int("instruments", len(current)))

		go o.readPump(func() {
			reg.Unsubscribe(o.id)
			log.Debug("observer disconnected", zap.String("observer", o.id))
		})
	}
}

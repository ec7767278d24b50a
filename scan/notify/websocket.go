package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/redstone-tools/tickpack/scan"
)

// Message is the JSON payload pushed to websocket listeners.
type Message struct {
	Type    string       `json:"type"`
	Summary scan.Summary `json:"summary"`
	Error   string       `json:"error,omitempty"`
}

// Message types.
const (
	TypeComplete = "SCAN_COMPLETE"
	TypeFailed   = "SCAN_FAILED"
	TypeCanceled = "SCAN_CANCELED"
)

// Websocket pushes scan outcomes to a listener over a websocket connection.
// Delivery failures are logged, never returned to the scan.
type Websocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWebsocket connects to url.
func DialWebsocket(url string) (*Websocket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial notification listener: %w", err)
	}
	return &Websocket{conn: conn}, nil
}

func (w *Websocket) send(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		logrus.Warnf("notify: encode %s: %v", m.Type, err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logrus.Warnf("notify: send %s: %v", m.Type, err)
	}
}

// ScanComplete implements scan.Notifier.
func (w *Websocket) ScanComplete(s scan.Summary) { w.send(Message{Type: TypeComplete, Summary: s}) }

// ScanFailed implements scan.Notifier.
func (w *Websocket) ScanFailed(s scan.Summary, err error) {
	w.send(Message{Type: TypeFailed, Summary: s, Error: err.Error()})
}

// ScanCanceled implements scan.Notifier.
func (w *Websocket) ScanCanceled(s scan.Summary) { w.send(Message{Type: TypeCanceled, Summary: s}) }

// Close sends a normal close frame and closes the connection.
func (w *Websocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan done"), time.Now().Add(time.Second))
	return w.conn.Close()
}

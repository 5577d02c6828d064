package wschat

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	KindText  = "text"
	KindVoice = "voice"
	KindReply = "reply"
	KindError = "error"
)

// Frame is one JSON message on the chat socket. Audio carries the raw voice
// container for voice frames and Content its extension hint.
type Frame struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

// DefaultMaxFrameBytes fits a 20 MiB voice note after base64 encoding.
const DefaultMaxFrameBytes = 28 << 20

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// newConn caps incoming messages at limit bytes. A larger message fails the
// read and closes the connection with a 1009 status.
func newConn(ws *websocket.Conn, limit int64) *conn {
	if limit <= 0 {
		limit = DefaultMaxFrameBytes
	}
	ws.SetReadLimit(limit)
	return &conn{ws: ws}
}

// read returns the next raw message; decode errors are reported separately so
// a bad frame does not end the connection.
func (c *conn) read() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	return msg, err
}

func decode(msg []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *conn) write(f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}

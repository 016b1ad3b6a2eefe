package dashboard

import "github.com/gorilla/websocket"

// websocketClient adapts a gorilla connection to Client.
type websocketClient struct {
	conn *websocket.Conn
}

// NewWebsocketClient wraps conn.
func NewWebsocketClient(conn *websocket.Conn) Client {
	return &websocketClient{conn: conn}
}

func (c *websocketClient) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

func (c *websocketClient) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *websocketClient) Close() error {
	return c.conn.Close()
}

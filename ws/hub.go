package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub giữ các client đang mở trang danh sách bài tập; mỗi thay đổi
// (giao bài, sửa đề, chấm điểm, nộp bài, xóa) được broadcast tới tất cả.
type Hub struct {
	Clients map[*websocket.Conn]*Client
	Mutex   sync.RWMutex
}

var H = Hub{
	Clients: make(map[*websocket.Conn]*Client),
}

// Register thêm client và khởi động write pump. Caller chịu trách nhiệm
// đọc connection (mỗi conn chỉ một goroutine đọc) và Unregister khi xong.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	h.Clients[conn] = client

	go h.writePump(client)
	return client
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if client, ok := h.Clients[conn]; ok {
		close(client.Send)
		delete(h.Clients, conn)
	}
}

func (h *Hub) Broadcast(data []byte) {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	for _, client := range h.Clients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// GetStats trả về số client đang kết nối (dùng cho /health).
func (h *Hub) GetStats() map[string]int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	return map[string]int{
		"clients": len(h.Clients),
	}
}

// BroadcastAssignmentListChanged gửi signal cho client reload danh sách bài tập.
func BroadcastAssignmentListChanged() {
	H.Broadcast([]byte(`{"type": "assignment_list_changed"}`))
}

// writePump là goroutine duy nhất được ghi lên conn; mọi message
// (broadcast lẫn greeting) đều đi qua channel Send.
func (h *Hub) writePump(client *Client) {
	defer func() {
		client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
		client.Conn.Close()
	}()
	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

package products

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust for production security
	},
}

// StockUpdate is pushed to subscribers whenever a checkout takes stock.
type StockUpdate struct {
	Type      string `json:"type"`
	ProductID string `json:"productid"`
	Remaining int    `json:"remaining"`
}

// StockHub fans stock updates out to websocket subscribers. Slow or dead
// connections are dropped on write failure.
type StockHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewStockHub() *StockHub {
	return &StockHub{clients: make(map[*websocket.Conn]bool)}
}

// Serve upgrades the connection and keeps it registered until the client
// goes away. Inbound messages are discarded.
func (h *StockHub) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Could not open WebSocket connection", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func(c *websocket.Conn) {
		defer func() {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.Close()
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}(conn)
}

// Broadcast sends the remaining stock for a product to every subscriber.
func (h *StockHub) Broadcast(productID string, remaining int) {
	update := StockUpdate{Type: "stock_update", ProductID: productID, Remaining: remaining}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(update); err != nil {
			log.Println("StockHub write error, dropping client:", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount reports the number of live subscribers.
func (h *StockHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

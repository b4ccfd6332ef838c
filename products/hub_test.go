package products

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func dialHub(t *testing.T, hub *StockHub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, httprouter.Params{})
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial failed: %v", err)
	}

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitForClients(t *testing.T, hub *StockHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStockHubBroadcast(t *testing.T) {
	hub := NewStockHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	hub.Broadcast("p1", 7)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update StockUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if update.Type != "stock_update" || update.ProductID != "p1" || update.Remaining != 7 {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestStockHubDropsClosedClients(t *testing.T) {
	hub := NewStockHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no subscribers must not panic.
	hub.Broadcast("p1", 3)
}

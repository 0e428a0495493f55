package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS policy is wide open for the read API; same for the stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

type wsNotification struct {
	Category    string    `json:"category"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// handleNotificationsWS streams tender notifications to the client.
// ?categories=a,b limits the stream; no filter means everything.
func (s *Server) handleNotificationsWS(c echo.Context) error {
	if s.Bus == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "notifications unavailable"})
	}

	categories := splitCSV(c.QueryParam("categories"))
	if len(categories) == 0 {
		categories = []string{eventbus.All}
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan eventbus.Notification, 16)
	for _, category := range categories {
		s.Bus.Subscribe(strings.ToLower(category), ch)
	}
	defer func() {
		for _, category := range categories {
			s.Bus.Unsubscribe(strings.ToLower(category), ch)
		}
	}()

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case n := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsNotification{
				Category:    n.Category,
				Subject:     n.Subject,
				Body:        string(n.Body),
				PublishedAt: n.PublishedAt,
			}); err != nil {
				return nil
			}
		}
	}
}

func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

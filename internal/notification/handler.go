package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fkhayef/meetsync/internal/view"
	"github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	renderTimeout  = 15 * time.Second
)

// inboundPayload is what sessions send us
type inboundPayload struct {
	Action  string `json:"action"` // "mount", "unmount"
	EventID string `json:"eventId,omitempty"`
}

// Handler upgrades requests to websocket sessions
type Handler struct {
	service  *Service
	auth     *middleware.Auth
	upgrader websocket.Upgrader
}

// NewHandler creates a new websocket handler. allowOrigin decides which
// origins may connect; nil allows all.
func NewHandler(service *Service, auth *middleware.Auth, allowOrigin func(origin string) bool) *Handler {
	return &Handler{
		service: service,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowOrigin == nil || allowOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWS handles GET /ws
// @Summary      Open a live session
// @Description  Send {"action":"mount","eventId":"..."}; the server pushes a snapshot on mount and after every change to this profile's state
// @Tags         live
// @Param        X-Client-ID header string false "Browser profile ID"
// @Param        token query string false "Bearer token for organizers"
// @Success      101
// @Router       /ws [get]
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "Client ID required")
		return
	}
	v := view.Viewer{ClientID: clientID}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		v.UserID = userID
	} else if token := r.URL.Query().Get("token"); token != "" && h.auth != nil {
		// browsers cannot set headers on websocket requests
		if claims, err := h.auth.ValidateToken(token); err == nil && !claims.IsAnonymous {
			v.UserID = claims.Subject
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.service.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := NewClient(conn, v)
	h.service.hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.service.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var in inboundPayload
		if err := json.Unmarshal(raw, &in); err != nil {
			h.service.logger.WithError(err).Debug("Invalid websocket payload")
			continue
		}

		switch in.Action {
		case "mount":
			c.Mount(in.EventID)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
				defer cancel()
				h.service.refresh(ctx, c, ActionSnapshot, "")
			}()
		case "unmount":
			c.Mount("")
		default:
			h.service.logger.WithField("action", in.Action).Debug("Unknown websocket action")
		}
	}
}

package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"presence-service/internal/identity"
	"presence-service/internal/models"
	"presence-service/internal/observability"
)

// Callbacks receive connection lifecycle transitions and inbound frames.
// Wired to the event router.
type Callbacks struct {
	OnConnect func(c *Client)
	OnFrame   func(c *Client, frame models.Frame)
	OnClose   func(c *Client)
}

// Handler upgrades HTTP requests to websocket connections and wires them to
// the event router.
type Handler struct {
	hub             *Hub
	resolver        *identity.Resolver
	events          Callbacks
	eventsPerSecond int
}

// NewHandler constructs a websocket handshake handler.
func NewHandler(hub *Hub, resolver *identity.Resolver, events Callbacks, eventsPerSecond int) *Handler {
	return &Handler{hub: hub, resolver: resolver, events: events, eventsPerSecond: eventsPerSecond}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle resolves identity, upgrades the connection and starts the pumps.
// Identity verification happens per-connection before registration and never
// under a shared lock, so a slow identity provider cannot stall other
// connections.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("presence-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = token[7:]
	}
	if token == "" {
		token = c.Query("token")
	}

	connID := uuid.NewString()
	resolved, err := h.resolver.Resolve(ctx, token, c.Query("userId"), c.Query("userName"), connID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      connID,
		UserID:      resolved.UserID,
		UserName:    resolved.DisplayName,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info, h.eventsPerSecond)
	h.hub.Add(client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.presence", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: observability.WSEventPayload{
			ConnID: info.ConnID,
			UserID: info.UserID,
			IP:     info.IP,
			Event:  "ws_connect",
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))

	logrus.WithFields(logrus.Fields{
		"conn_id": info.ConnID,
		"user_id": info.UserID,
		"name":    info.UserName,
	}).Info("websocket connected")

	go client.WritePump()
	h.events.OnConnect(client)

	go func() {
		reason := client.ReadPump(h.events.OnFrame, h.events.OnClose)

		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.presence", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload: observability.WSEventPayload{
				ConnID:     info.ConnID,
				UserID:     info.UserID,
				IP:         info.IP,
				Event:      "ws_disconnect",
				DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
				Reason:     reason,
			},
		}, observability.BuildHeaders(info.RequestID, info.TraceID))
	}()
}

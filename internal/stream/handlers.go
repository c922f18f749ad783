package stream

import (
	"time"

	"github.com/AndrewsGM/driver-pro/internal/auth"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"
	"github.com/AndrewsGM/driver-pro/internal/validation"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FixSink receives fixes streamed by a device over the session socket. It
// must reject sessions that do not belong to userID.
type FixSink interface {
	PushFix(sessionID, userID string, fix telemetry.GeoFix) error
}

type fixMessage struct {
	Lat       *float64  `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng       *float64  `json:"lng" validate:"required,gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp"`
	SpeedMps  *float64  `json:"speed_mps" validate:"omitempty,gte=0"`
}

type errorFrame struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// RegisterRoutes serves the session socket. The router is expected to carry
// the user middleware; sink may be nil, in which case inbound messages are
// ignored.
func RegisterRoutes(r fiber.Router, hub *Hub, sink FixSink) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		userID := auth.LocalUser(c.Locals)
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if sink == nil {
				continue
			}
			if err := pushFix(sink, sessionID, userID, msg); err != nil {
				reply(client, err)
			}
		}
		hub.Unregister(client)
		<-done
	}))
}

func pushFix(sink FixSink, sessionID, userID string, msg []byte) error {
	var in fixMessage
	if err := json.Unmarshal(msg, &in); err != nil {
		return err
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	fix := telemetry.GeoFix{Lat: *in.Lat, Lng: *in.Lng, Timestamp: in.Timestamp, SpeedMps: in.SpeedMps}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}
	return sink.PushFix(sessionID, userID, fix)
}

func reply(client *Client, err error) {
	payload, mErr := json.Marshal(errorFrame{Kind: "error", Error: err.Error()})
	if mErr != nil {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// heartbeatInterval keeps idle connections from being closed by proxies.
var heartbeatInterval = 30 * time.Second

func (co Controller) RegisterEventRoutes(r *gin.RouterGroup) {
	r.GET("", co.StreamEvents)
}

// @Summary		Stream events
// @Description	Streams the updates for the user as Server-Sent Events until the client disconnects
// @Tags			Events
// @Produce		text/event-stream
// @Success		200
// @Failure		400	{object}	httpError
// @Param			X-User-ID	header		string	true	"ID of the user"
// @Router			/v1/events [get]
func (co Controller) StreamEvents(c *gin.Context) {
	user := userID(c)
	session := co.Hub.Subscribe(user)
	defer co.Hub.Unsubscribe(session)

	log.Debug().Str("user", user).Msg("event stream opened")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Send the headers so that the client knows the stream is open
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false

		case event, ok := <-session.Events():
			if !ok {
				return false
			}
			c.SSEvent(event.Name, event.Data)
			return true

		case t := <-heartbeat.C:
			c.SSEvent("heartbeat", t.UTC().Format(time.RFC3339))
			return true
		}
	})

	log.Debug().Str("user", user).Msg("event stream closed")
}

// internal/handlers/feed_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/feed"
	"github.com/jason-s-yu/matchhost/internal/middleware"
)

const (
	feedSubprotocol  = "feed"
	feedWriteTimeout = 5 * time.Second
	feedPingInterval = 30 * time.Second
	feedPingTimeout  = 15 * time.Second
)

// FeedWSHandler streams the status artifacts of one chat channel:
// /feed/ws/{channel}. The live artifacts are sent first, then every change.
// The feed is read-only; client messages close the connection.
func FeedWSHandler(logger *logrus.Logger, hub *feed.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		if channel == "" {
			http.Error(w, "Missing channel in path (/feed/ws/{channel})", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{feedSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).WithField("channel_id", channel).Warn("websocket accept failed")
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != feedSubprotocol {
			c.Close(BadSubprotocolError, "client must use the 'feed' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		sub, snapshot := hub.Subscribe(channel)
		defer hub.Unsubscribe(sub)

		ctx := c.CloseRead(r.Context())
		log := logger.WithFields(logrus.Fields{"channel_id": channel, "remote": r.RemoteAddr})
		for _, f := range snapshot {
			if err := writeFrame(ctx, c, f); err != nil {
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
				return
			}
		}
		err = writePump(ctx, c, sub, log)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

func writeFrame(ctx context.Context, c *websocket.Conn, f feed.Frame) error {
	writeCtx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c, f)
}

// writePump forwards frames until the client goes away. A nil return means
// the connection ended normally.
func writePump(ctx context.Context, c *websocket.Conn, sub *feed.Subscriber, log *logrus.Entry) error {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-sub.C:
			if !ok {
				c.Close(FeedClosedError, "feed closed")
				return nil
			}
			if err := writeFrame(ctx, c, f); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, feedPingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("feed ping failed")
				return err
			}
		}
	}
}

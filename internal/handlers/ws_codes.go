// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Close codes of the spectator feed.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // client did not offer the feed subprotocol
	FeedClosedError     websocket.StatusCode = 3001 // the hub dropped the subscription
)

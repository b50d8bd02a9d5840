// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used within the table handlers.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided table token was invalid or expired.
	InvalidTableIDError   = 3003 // Target table ID specified in the WS URL does not exist or is invalid.
	TableInUseError       = 3004 // Another presentation client is already attached to the table.
	AssetLoadError        = 3005 // The client could not load the card assets; the table is closed.
)

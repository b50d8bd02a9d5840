// internal/handlers/table_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/game"
	"github.com/jason-s-yu/cambia-ar/internal/middleware"
	"github.com/jason-s-yu/cambia-ar/internal/models"
	"github.com/sirupsen/logrus"
)

// ClientMessage is a message from the AR client: an input, an effect
// acknowledgement or a ping.
type ClientMessage struct {
	Type string `json:"type"`

	Point  *models.Point `json:"point,omitempty"`
	Card   uuid.UUID     `json:"card,omitzero"`
	Player *int          `json:"player,omitempty"`
	Pile   string        `json:"pile,omitempty"`
	Kind   string        `json:"kind,omitempty"`

	// ID and Error acknowledge an effect; a non-empty Error fails it.
	ID    uint64 `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// decodeInput maps a client message onto a session input.
func decodeInput(msg ClientMessage) (game.Input, error) {
	switch msg.Type {
	case "surface_tapped":
		if msg.Point == nil {
			return nil, fmt.Errorf("surface_tapped requires a point")
		}
		return game.SurfaceTapped{Point: *msg.Point}, nil
	case "card_tapped":
		if msg.Card == uuid.Nil {
			return nil, fmt.Errorf("card_tapped requires a card")
		}
		return game.CardTapped{Card: msg.Card}, nil
	case "player_tapped":
		if msg.Player == nil {
			return nil, fmt.Errorf("player_tapped requires a player")
		}
		return game.PlayerTapped{Player: *msg.Player}, nil
	case "pile_tapped":
		switch pile := game.PileKind(msg.Pile); pile {
		case game.PileDraw, game.PileDiscard:
			return game.PileTapped{Pile: pile}, nil
		}
		return nil, fmt.Errorf("unknown pile %q", msg.Pile)
	case "interaction_selected":
		kind := game.InteractionKind(msg.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown interaction %q", msg.Kind)
		}
		return game.InteractionKindSelected{Kind: kind}, nil
	case "last_round_called":
		if msg.Player == nil {
			return nil, fmt.Errorf("last_round_called requires a player")
		}
		return game.LastRoundCalled{Player: *msg.Player}, nil
	case "place_draw_pile":
		return game.PlaceDrawPileRequested{}, nil
	}
	return nil, fmt.Errorf("unknown action type: %s", msg.Type)
}

// TableWSHandler upgrades the HTTP connection to WebSocket for a table. The
// connection becomes the table's presentation client: it receives effect
// commands and state broadcasts and sends taps and acknowledgements.
func TableWSHandler(logger *logrus.Logger, ts *TableServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Extract table ID from URL path: /table/ws/{table_id}
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/table/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing table_id in path (/table/ws/{table_id})", http.StatusBadRequest)
			return
		}
		tableID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid table_id format", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"table"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for table %s: %v", tableID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "table" {
			logger.Warnf("Client for table %s connected with invalid subprotocol: %s", tableID, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'table' subprotocol.")
			return
		}

		granted, err := ts.Issuer.AuthenticateTable(r.URL.Query().Get("token"))
		if err != nil || granted != tableID {
			logger.Warnf("Token rejected for table %s: %v", tableID, err)
			c.Close(InvalidAuthTokenError, "Invalid table token.")
			return
		}

		t, ok := ts.Tables.GetTable(tableID)
		if !ok {
			c.Close(InvalidTableIDError, "Table not found.")
			return
		}

		log := logger.WithField("session", tableID)
		conn := newClientConn(c, log)
		if !t.fx.attach(conn) {
			conn.close()
			c.Close(TableInUseError, "Another client is attached to this table.")
			return
		}
		defer t.fx.detach(conn)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		unsubscribeState := t.session.SubscribeState(func(st game.GameState) {
			if err := conn.send(map[string]interface{}{"type": "state", "state": st}); err != nil {
				log.Warnf("Failed to queue state: %v", err)
			}
		})
		defer unsubscribeState()
		unsubscribeCall := t.session.SubscribeLastRoundCaller(func(call game.LastRoundCall) {
			if err := conn.send(map[string]interface{}{"type": "last_round", "lastRound": call}); err != nil {
				log.Warnf("Failed to queue last round call: %v", err)
			}
		})
		defer unsubscribeCall()

		ts.serve(t, func(err error) {
			conn.send(map[string]interface{}{"type": "error", "message": err.Error()})
			c.Close(AssetLoadError, "Card assets failed to load.")
		})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		err = readTableMessages(ctx, c, conn, t, log)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readTableMessages reads client messages until the connection closes. Acks
// are delivered straight to pending effects; inputs are queued for the
// session loop.
func readTableMessages(ctx context.Context, c *websocket.Conn, conn *clientConn, t *table, log *logrus.Entry) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.Warnf("Received non-text message type %d. Ignoring.", msgType)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("Invalid JSON received: %v. Data: %s", err, string(data))
			conn.send(map[string]interface{}{"type": "error", "message": "Invalid JSON format."})
			continue
		}

		switch msg.Type {
		case "effect_done":
			if !t.fx.ack(msg.ID, msg.Error) {
				log.Debugf("Ack for unknown effect %d.", msg.ID)
			}
		case "ping":
			conn.send(map[string]string{"type": "pong"})
		case "view":
			// View waits for any transition in progress.
			go func() { conn.send(map[string]interface{}{"type": "table", "view": t.session.View()}) }()
		default:
			in, err := decodeInput(msg)
			if err != nil {
				conn.send(map[string]interface{}{"type": "error", "message": err.Error()})
				continue
			}
			select {
			case <-t.ctx.Done():
				return nil
			default:
			}
			// Never block here: acks for the running transition arrive on this loop.
			select {
			case t.inputs <- in:
			default:
				conn.send(map[string]interface{}{"type": "error", "message": "Table is busy, tap again."})
			}
		}
	}
}

// internal/handlers/table_server.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/auth"
	"github.com/jason-s-yu/cambia-ar/internal/database"
	"github.com/jason-s-yu/cambia-ar/internal/game"
	"github.com/sirupsen/logrus"
)

// ResultRecorder persists the outcome of a finished session.
type ResultRecorder interface {
	RecordSessionResults(ctx context.Context, sessionID uuid.UUID, gameNumber int, results []database.PlayerResult) error
}

// TableServer holds the live tables and the services they report to.
type TableServer struct {
	Tables *TableStore
	Issuer *auth.Issuer
	Logger *logrus.Logger

	// History and Results are optional.
	History game.ActionPublisher
	Results ResultRecorder

	EffectTimeout time.Duration
}

// table links a session to its presentation transport and input loop.
type table struct {
	session *game.Session
	fx      *wsEffects
	inputs  chan game.Input

	serveOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewTableServer(logger *logrus.Logger, issuer *auth.Issuer, effectTimeout time.Duration) *TableServer {
	return &TableServer{
		Tables:        NewTableStore(),
		Issuer:        issuer,
		Logger:        logger,
		EffectTimeout: effectTimeout,
	}
}

// CreateTableRequest is the optional body of /table/create.
type CreateTableRequest struct {
	HouseRules map[string]interface{} `json:"houseRules,omitempty"`
}

// CreateTableResponse carries the new table id and the token the AR client connects with.
type CreateTableResponse struct {
	ID         uuid.UUID       `json:"id"`
	Token      string          `json:"token"`
	HouseRules game.HouseRules `json:"houseRules"`
}

// CreateTable builds a session with the given house rules and registers it.
func (ts *TableServer) CreateTable(rules game.HouseRules) (*game.Session, error) {
	fx := newWSEffects(ts.EffectTimeout, logrus.NewEntry(ts.Logger))
	opts := []game.Option{game.WithHouseRules(rules), game.WithLogger(ts.Logger)}
	if ts.History != nil {
		opts = append(opts, game.WithHistory(ts.History))
	}
	sess, err := game.NewSession(fx, opts...)
	if err != nil {
		return nil, err
	}
	fx.log = fx.log.WithField("session", sess.ID)
	sess.OnGameEnd = ts.recordResults

	ctx, cancel := context.WithCancel(context.Background())
	t := &table{
		session: sess,
		fx:      fx,
		inputs:  make(chan game.Input, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
	ts.Tables.AddTable(t)
	return sess, nil
}

// CloseTable stops the table's input loop and forgets it.
func (ts *TableServer) CloseTable(id uuid.UUID) {
	if t, ok := ts.Tables.DeleteTable(id); ok {
		t.cancel()
	}
}

// serve starts the session loop the first time a client attaches. An asset
// failure closes the table.
func (ts *TableServer) serve(t *table, onFatal func(error)) {
	t.serveOnce.Do(func() {
		go func() {
			err := t.session.Serve(t.ctx, t.inputs)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			ts.Logger.WithError(err).Errorf("table %s stopped", t.session.ID)
			onFatal(err)
			ts.CloseTable(t.session.ID)
		}()
	})
}

// recordResults persists the final tally in the background.
func (ts *TableServer) recordResults(sessionID uuid.UUID, gameNumber int, scores []game.PlayerScore, winners []int) {
	if ts.Results == nil {
		return
	}
	won := make(map[int]bool, len(winners))
	for _, w := range winners {
		won[w] = true
	}
	results := make([]database.PlayerResult, len(scores))
	for i, s := range scores {
		results[i] = database.PlayerResult{PlayerID: s.PlayerID, Points: s.Points, Won: won[s.PlayerID]}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ts.Results.RecordSessionResults(ctx, sessionID, gameNumber, results); err != nil {
			ts.Logger.WithError(err).Errorf("failed to record results for session %s game %d", sessionID, gameNumber)
		}
	}()
}

// CreateTableHandler creates an in-memory table and returns its id and token.
func CreateTableHandler(ts *TableServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req CreateTableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad table request payload", http.StatusBadRequest)
			return
		}
		rules, err := game.ParseRules(req.HouseRules, game.DefaultHouseRules())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sess, err := ts.CreateTable(rules)
		if err != nil {
			ts.Logger.WithError(err).Error("failed to create table")
			http.Error(w, "failed to create table", http.StatusInternalServerError)
			return
		}
		token, err := ts.Issuer.CreateTableToken(sess.ID)
		if err != nil {
			ts.CloseTable(sess.ID)
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}
		ts.Logger.Infof("Created table %s", sess.ID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CreateTableResponse{ID: sess.ID, Token: token, HouseRules: sess.HouseRules})
	}
}

// PingHandler answers health checks.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Package realtime carries row change events for game sessions from the
// writers that commit them to the clients watching those sessions.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Table names the collection an event refers to
type Table string

const (
	TableSessions Table = "sessions"
	TableCells    Table = "cells"
	TableCards    Table = "cards"
	TableMoves    Table = "moves"
)

// Op is the kind of row change
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is one change to a session-scoped row. New holds the changed row
// when the publisher had it at hand; session events always carry it.
type Event struct {
	Table     Table           `json:"table"`
	Op        Op              `json:"op"`
	SessionID string          `json:"session_id"`
	New       json.RawMessage `json:"new,omitempty"`
	At        time.Time       `json:"at"`
}

// NewEvent builds an event, encoding row as its payload when non-nil
func NewEvent(table Table, op Op, sessionID string, row interface{}) (Event, error) {
	e := Event{Table: table, Op: op, SessionID: sessionID, At: time.Now().UTC()}
	if row != nil {
		data, err := json.Marshal(row)
		if err != nil {
			return e, fmt.Errorf("failed to encode %s event: %w", table, err)
		}
		e.New = data
	}
	return e, nil
}

// Handler receives events for one subscription, one at a time
type Handler func(Event)

// Subscription is a live registration on a change feed. Done is closed
// once the subscription delivers no more events, whether it was
// unsubscribed or its transport failed.
type Subscription interface {
	Unsubscribe() error
	Done() <-chan struct{}
}

// Subscriber opens session-filtered subscriptions
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string, h Handler) (Subscription, error)
}

// Publisher accepts committed changes
type Publisher interface {
	Publish(e Event)
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// MaxTransactionItems is DynamoDB's per-transaction write limit.
const MaxTransactionItems = 100

// change is a pending write to one document. baseKey is the key of the
// committed item it replaces (nil for a new document); a nil item deletes.
type change struct {
	baseKey map[string]types.AttributeValue
	item    map[string]types.AttributeValue
	doc     bson.M
}

// overlay buffers a transaction's writes per collection, in first-touch order.
type overlay struct {
	mu      sync.Mutex
	changes map[string]map[string]*change
	order   map[string][]string
}

func newOverlay() *overlay {
	return &overlay{
		changes: make(map[string]map[string]*change),
		order:   make(map[string][]string),
	}
}

func (o *overlay) record(collection, id string, ch change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	byID, ok := o.changes[collection]
	if !ok {
		byID = make(map[string]*change)
		o.changes[collection] = byID
	}
	if prev, exists := byID[id]; exists {
		prev.item, prev.doc = ch.item, ch.doc
		return
	}
	byID[id] = &ch
	o.order[collection] = append(o.order[collection], id)
}

// view applies the pending changes of collection to its committed documents.
func (o *overlay) view(collection string, base []bson.M) []bson.M {
	o.mu.Lock()
	defer o.mu.Unlock()
	byID := o.changes[collection]
	if len(byID) == 0 {
		return base
	}
	out := make([]bson.M, 0, len(base)+len(byID))
	seen := make(map[string]bool, len(base))
	for _, doc := range base {
		id := datastore.IDKey(doc[datastore.IDField])
		seen[id] = true
		if ch, ok := byID[id]; ok {
			if ch.doc != nil {
				out = append(out, ch.doc)
			}
			continue
		}
		out = append(out, doc)
	}
	for _, id := range o.order[collection] {
		if ch := byID[id]; !seen[id] && ch.doc != nil {
			out = append(out, ch.doc)
		}
	}
	return out
}

// writes renders the overlay as transaction items.
func (o *overlay) writes(table string) []types.TransactWriteItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	var items []types.TransactWriteItem
	collections := make([]string, 0, len(o.order))
	for name := range o.order {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	for _, name := range collections {
		for _, id := range o.order[name] {
			ch := o.changes[name][id]
			switch {
			case ch.item == nil && ch.baseKey == nil:
				// created and deleted inside the transaction
			case ch.item == nil:
				items = append(items, types.TransactWriteItem{
					Delete: &types.Delete{TableName: aws.String(table), Key: ch.baseKey},
				})
			default:
				put := &types.Put{TableName: aws.String(table), Item: ch.item}
				if ch.baseKey == nil {
					put.ConditionExpression = aws.String("attribute_not_exists(PK)")
				}
				items = append(items, types.TransactWriteItem{Put: put})
				if ch.baseKey != nil && !sameKey(ch.baseKey, keyOf(ch.item)) {
					items = append(items, types.TransactWriteItem{
						Delete: &types.Delete{TableName: aws.String(table), Key: ch.baseKey},
					})
				}
			}
		}
	}
	return items
}

// Session buffers writes client-side and commits them atomically.
type Session struct {
	id   string
	conn *Connection

	mu    sync.Mutex
	tx    *overlay
	ended bool
}

var _ datastore.Session = (*Session)(nil)

func (s *Session) ID() string {
	return s.id
}

// WithTransaction runs fn with a fresh overlay and commits it when fn succeeds.
func (s *Session) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	switch {
	case s.ended:
		s.mu.Unlock()
		return errors.ErrSessionEnded
	case s.tx != nil:
		s.mu.Unlock()
		return errors.ErrTransactionInProgress
	}
	tx := newOverlay()
	s.tx = tx
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	active := s.tx == tx
	s.tx = nil
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if !active {
		return errors.ErrSessionEnded
	}
	return s.conn.commit(ctx, s.id, tx)
}

// EndSession ends the session, discarding any buffered writes.
func (s *Session) EndSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.tx = nil
}

// active returns the running transaction's overlay, or nil.
func (s *Session) active() (*overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, errors.ErrSessionEnded
	}
	return s.tx, nil
}

func (c *Connection) session(sess datastore.Session) (*overlay, error) {
	if sess == nil {
		return nil, nil
	}
	s, ok := sess.(*Session)
	if !ok || s.conn != c {
		return nil, errors.NewValidationError("session", "session was not issued by this connection")
	}
	return s.active()
}

// commit sends the overlay as a single TransactWriteItems call.
func (c *Connection) commit(ctx context.Context, sessionID string, tx *overlay) error {
	items := tx.writes(c.table)
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxTransactionItems {
		return fmt.Errorf("%w: %d items", errors.ErrTransactionTooLarge, len(items))
	}

	_, err := c.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if stderrors.As(err, &canceled) {
			return errors.NewConditionFailedError("transaction", cancellationReasons(canceled))
		}
		return fmt.Errorf("TransactWriteItems failed: %w", err)
	}

	c.log.Debug("transaction committed", "session", sessionID, "items", len(items))
	return nil
}

func cancellationReasons(e *types.TransactionCanceledException) string {
	codes := make([]string, 0, len(e.CancellationReasons))
	for _, r := range e.CancellationReasons {
		codes = append(codes, aws.ToString(r.Code))
	}
	return strings.Join(codes, ", ")
}

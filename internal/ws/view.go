package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
)

// View holds the lookup and history state machines of one stream.
type View struct {
	Lookup  *credits.Lookup
	History *credits.HistoryViewer
}

func NewView(users credits.UserSearcher, txs credits.TransactionLister) *View {
	return &View{
		Lookup:  credits.NewLookup(users),
		History: credits.NewHistoryViewer(txs),
	}
}

// Attach forwards every state change to send.
func (v *View) Attach(send func([]byte)) {
	v.History.OnChange(func(st credits.HistoryState) {
		send(encode(MsgHistory, st))
	})
	v.Lookup.OnChange(func(st credits.LookupState) {
		send(encode(MsgLookup, st))
	})
}

// Start loads the first history page.
func (v *View) Start(ctx context.Context) {
	v.History.Refresh(ctx)
}

// Wait blocks until background fetches settle.
func (v *View) Wait() {
	v.History.Wait()
	v.Lookup.Wait()
}

var errUnknownMessage = errors.New("unknown message type")

// Handle applies one client message.
func (v *View) Handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MsgSetPage:
		var p SetPagePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		v.History.SetPage(ctx, p.Page)
	case MsgSetType:
		var p SetTypePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		t, err := domain.ParseTransactionType(p.Type)
		if err != nil {
			return err
		}
		v.History.SetType(ctx, t)
	case MsgSetUser:
		var p SetUserPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		v.History.SetUser(ctx, p.UserID)
	case MsgRefresh:
		v.History.Refresh(ctx)
	case MsgSearch:
		var p SearchPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		v.Lookup.Type(ctx, p.Query)
	case MsgSelect:
		var p SelectPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Candidate.ID == 0 {
			return errors.New("candidate id required")
		}
		v.Lookup.Select(p.Candidate)
	case MsgClear:
		v.Lookup.ClearTarget()
	default:
		return fmt.Errorf("%w: %q", errUnknownMessage, msg.Type)
	}
	return nil
}

func decode(msg Message, dst any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}

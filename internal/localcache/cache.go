// Package localcache keeps a client's checked state between sessions in a
// blob store, stamped with the plan it was recorded against.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fdg312/coach-nutrition/internal/blob"
	"github.com/fdg312/coach-nutrition/internal/nutrition"
)

const (
	formatVersion = 1
	keyPrefix     = "checked-state/"
	contentType   = "application/json"
)

type entry struct {
	Day     int  `json:"day"`
	Slot    int  `json:"slot"`
	Checked bool `json:"checked"`
}

type document struct {
	Version int     `json:"version"`
	PlanID  string  `json:"plan_id"`
	Entries []entry `json:"entries"`
}

// Cache stores nutrition.CheckedState per client.
type Cache struct {
	store blob.Store
}

func New(store blob.Store) *Cache {
	return &Cache{store: store}
}

// Key returns the blob key of a client's cache document.
func Key(clientID string) string {
	return keyPrefix + clientID + ".json"
}

// Load returns the cached state of clientID for planID. A missing document,
// one written for another plan, or one in an unknown format yields an empty
// state and no error.
func (c *Cache) Load(ctx context.Context, clientID, planID string) (nutrition.CheckedState, error) {
	data, err := c.store.GetObject(ctx, Key(clientID))
	if errors.Is(err, blob.ErrNotFound) {
		return nutrition.CheckedState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checked state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nutrition.CheckedState{}, nil
	}
	if doc.Version != formatVersion || doc.PlanID != planID {
		return nutrition.CheckedState{}, nil
	}

	state := make(nutrition.CheckedState, len(doc.Entries))
	for _, e := range doc.Entries {
		if e.Day < 0 || e.Day >= nutrition.PlanDays || e.Slot < 0 {
			continue
		}
		state[nutrition.SlotKey{Day: e.Day, Slot: e.Slot}] = e.Checked
	}
	return state, nil
}

// Save replaces the cached state of clientID.
func (c *Cache) Save(ctx context.Context, clientID, planID string, state nutrition.CheckedState) error {
	doc := document{
		Version: formatVersion,
		PlanID:  planID,
		Entries: make([]entry, 0, len(state)),
	}
	for key, checked := range state {
		doc.Entries = append(doc.Entries, entry{Day: key.Day, Slot: key.Slot, Checked: checked})
	}
	sort.Slice(doc.Entries, func(i, j int) bool {
		if doc.Entries[i].Day != doc.Entries[j].Day {
			return doc.Entries[i].Day < doc.Entries[j].Day
		}
		return doc.Entries[i].Slot < doc.Entries[j].Slot
	})

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode checked state: %w", err)
	}
	if _, err := c.store.PutObject(ctx, Key(clientID), data, contentType); err != nil {
		return fmt.Errorf("save checked state: %w", err)
	}
	return nil
}

// Clear removes the cached state of clientID.
func (c *Cache) Clear(ctx context.Context, clientID string) error {
	if err := c.store.DeleteObject(ctx, Key(clientID)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("clear checked state: %w", err)
	}
	return nil
}

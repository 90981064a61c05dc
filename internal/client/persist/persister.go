// Package persist saves and restores the chat widget state across runs.
//
// A conversation is restored only when the session marker recorded next to
// it matches the marker of the current session. Any other marker starts a
// fresh conversation and discards the stale snapshot, the way a new browser
// session drops the previous tab's transcript.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/storage"
)

const (
	MarkerKey   = "chat:session-marker"
	SnapshotKey = "chat:snapshot"
)

var ErrMarkerRequired = errors.New("session marker is required")

// Persister binds a store to one session marker.
type Persister struct {
	store  storage.Store
	marker string
}

// New returns a persister for the session identified by marker.
func New(store storage.Store, marker string) (*Persister, error) {
	if marker == "" {
		return nil, ErrMarkerRequired
	}
	return &Persister{store: store, marker: marker}, nil
}

// Marker returns the session marker this persister writes.
func (p *Persister) Marker() string {
	return p.marker
}

// Load returns the persisted snapshot and true when it belongs to the current
// session. Otherwise the stale snapshot is deleted, the current marker is
// recorded and an empty snapshot is returned with false.
func (p *Persister) Load() (chat.Snapshot, bool, error) {
	stored, err := p.store.Get(MarkerKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return chat.Snapshot{}, false, fmt.Errorf("read session marker: %w", err)
	case string(stored) == p.marker:
		return p.readSnapshot()
	}

	if err := p.store.Delete(SnapshotKey); err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("discard stale snapshot: %w", err)
	}
	if err := p.store.Put(MarkerKey, []byte(p.marker)); err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("write session marker: %w", err)
	}
	return chat.Snapshot{}, false, nil
}

func (p *Persister) readSnapshot() (chat.Snapshot, bool, error) {
	raw, err := p.store.Get(SnapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return chat.Snapshot{}, false, nil
	}
	if err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot chat.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Save overwrites the snapshot of the current session.
func (p *Persister) Save(snapshot chat.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.store.Put(SnapshotKey, raw); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

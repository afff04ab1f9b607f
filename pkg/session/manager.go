package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/rsp2com/gateway/pkg/gwlog"
	"github.com/rsp2com/gateway/pkg/idgen"
)

// MaxThoughtSignatures bounds the per-session signature cache at 200
// entries, LRU-by-updated_at eviction.
const MaxThoughtSignatures = 200

// ThoughtSignature is one cached entry of the call_id → signature map:
// {thought_signature, thought, name, updated_at}.
type ThoughtSignature struct {
	ThoughtSignature string `json:"thought_signature"`
	Thought          string `json:"thought,omitempty"`
	Name             string `json:"name,omitempty"`
	UpdatedAt        int64  `json:"updated_at"`
}

// responseIDRecord is the JSON document persisted for the
// previous_response_id entry.
type responseIDRecord struct {
	PreviousResponseID string `json:"previous_response_id"`
	UpdatedAt          int64  `json:"updated_at"`
}

// Manager builds content-addressed, read-merge-write session state on top
// of a plain Store. It is best-effort throughout: any store failure is
// logged and swallowed rather than surfaced to the caller, since the
// gateway must tolerate an always-empty store (stateless mode).
type Manager struct {
	store Store
}

// NewManager wraps store. A nil store is valid and behaves as a
// permanently empty, always-miss backend (stateless mode).
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func contentKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) responseIDKey(sessionKey string) string {
	return contentKey(sessionKey)
}

func (m *Manager) signatureKey(sessionKey string) string {
	return contentKey("resp_thought_sig_" + sessionKey)
}

// PreviousResponseID returns the last-persisted response id for
// sessionKey, or ("", false) on a miss, an expired entry, or any store
// failure.
func (m *Manager) PreviousResponseID(ctx context.Context, sessionKey string) (string, bool) {
	if m.store == nil {
		return "", false
	}
	raw, ok, err := m.store.Get(ctx, m.responseIDKey(sessionKey))
	if err != nil {
		gwlog.Errorf("session: previous_response_id get failed for key: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	var rec responseIDRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		gwlog.Errorf("session: previous_response_id decode failed: %v", err)
		return "", false
	}
	if rec.PreviousResponseID == "" {
		return "", false
	}
	return rec.PreviousResponseID, true
}

// SetPreviousResponseID persists id as the last-seen response for
// sessionKey, with the default TTL. Failures are swallowed.
func (m *Manager) SetPreviousResponseID(ctx context.Context, sessionKey, id string) {
	if m.store == nil || id == "" {
		return
	}
	rec := responseIDRecord{PreviousResponseID: id, UpdatedAt: time.Now().Unix()}
	raw, err := json.Marshal(rec)
	if err != nil {
		gwlog.Errorf("session: previous_response_id encode failed: %v", err)
		return
	}
	if err := m.store.Put(ctx, m.responseIDKey(sessionKey), raw, DefaultTTL); err != nil {
		gwlog.Errorf("session: previous_response_id put failed: %v", err)
	}
}

// ThoughtSignatures returns the whole cached call_id → ThoughtSignature
// map for sessionKey, or an empty map on a miss or any store failure.
func (m *Manager) ThoughtSignatures(ctx context.Context, sessionKey string) map[string]ThoughtSignature {
	if m.store == nil {
		return map[string]ThoughtSignature{}
	}
	raw, ok, err := m.store.Get(ctx, m.signatureKey(sessionKey))
	if err != nil {
		gwlog.Errorf("session: thought signatures get failed: %v", err)
		return map[string]ThoughtSignature{}
	}
	if !ok {
		return map[string]ThoughtSignature{}
	}
	var sigs map[string]ThoughtSignature
	if err := json.Unmarshal(raw, &sigs); err != nil {
		gwlog.Errorf("session: thought signatures decode failed: %v", err)
		return map[string]ThoughtSignature{}
	}
	if sigs == nil {
		sigs = map[string]ThoughtSignature{}
	}
	return sigs
}

// MergeThoughtSignatures performs a read-merge-write update: normalize
// each update's call_id (strip the fc_ prefix), drop entries without a
// non-empty thought_signature, merge into whatever is currently cached,
// and evict the oldest-by-updated_at entries past MaxThoughtSignatures.
// Failures are swallowed.
func (m *Manager) MergeThoughtSignatures(ctx context.Context, sessionKey string, updates map[string]ThoughtSignature) {
	if m.store == nil || len(updates) == 0 {
		return
	}
	now := time.Now().UnixNano()
	current := m.ThoughtSignatures(ctx, sessionKey)

	for callID, sig := range updates {
		if sig.ThoughtSignature == "" {
			continue
		}
		sig.UpdatedAt = now
		current[idgen.NormalizeCallID(callID)] = sig
	}

	evictOldest(current, MaxThoughtSignatures)

	raw, err := json.Marshal(current)
	if err != nil {
		gwlog.Errorf("session: thought signatures encode failed: %v", err)
		return
	}
	if err := m.store.Put(ctx, m.signatureKey(sessionKey), raw, DefaultTTL); err != nil {
		gwlog.Errorf("session: thought signatures put failed: %v", err)
	}
}

// evictOldest removes entries from m, oldest updated_at first, until at
// most limit remain.
func evictOldest(m map[string]ThoughtSignature, limit int) {
	if len(m) <= limit {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return m[keys[i]].UpdatedAt < m[keys[j]].UpdatedAt
	})
	for _, k := range keys[:len(m)-limit] {
		delete(m, k)
	}
}

// Package digest records content-addressed fingerprints of ingested
// documents so unchanged re-submissions become no-ops.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"docrag/internal/kv"
)

const keyPrefix = "doc_checksum:"

// Sum returns the hex-encoded SHA-256 of content.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

type Tracker struct {
	store kv.Store
}

func NewTracker(store kv.Store) *Tracker {
	return &Tracker{store: store}
}

// Exists reports whether filename was already ingested with this exact
// content. Any store failure reads as "not ingested": the system re-ingests
// rather than silently skipping.
func (t *Tracker) Exists(ctx context.Context, filename string, content []byte) bool {
	saved, err := t.store.Get(ctx, keyPrefix+filename)
	if err != nil {
		if err != kv.ErrNotFound {
			slog.WarnContext(ctx, "digest lookup failed, re-ingesting", "filename", filename, "error", err)
		}
		return false
	}
	return saved == Sum(content)
}

// Save persists the digest for filename. Called only after a fully
// successful ingestion.
func (t *Tracker) Save(ctx context.Context, filename string, content []byte) error {
	return t.store.Set(ctx, keyPrefix+filename, Sum(content))
}

package sync

import (
	"time"

	"github.com/matheus3301/wamcp/internal/store"
	"go.uber.org/zap"
)

// Checkpoint keys.
const (
	CheckpointConnected = "last_connected_at"
	CheckpointHistory   = "last_history_batch_at"
)

// Reconciler manages sync checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	return r.db.SetState(key, value)
}

// GetCheckpoint retrieves a sync checkpoint value, or "" if unset.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	return r.db.State(key)
}

// Touch stamps key with the current time. Failures are logged only.
func (r *Reconciler) Touch(key string) {
	if err := r.UpdateCheckpoint(key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		r.logger.Warn("failed to update checkpoint", zap.String("key", key), zap.Error(err))
	}
}

// Since returns when key was last touched. ok is false if it never was.
func (r *Reconciler) Since(key string) (t time.Time, ok bool, err error) {
	v, err := r.GetCheckpoint(key)
	if err != nil || v == "" {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

package sync

import (
	"strconv"
	"time"

	"github.com/matheus3301/twin/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages per-conversation sync checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

func ingestKey(convCode string) string {
	return "conv:" + convCode + ":last_ingest"
}

// MarkIngested records when messages of a conversation were last stored.
func (r *Reconciler) MarkIngested(convCode string, at time.Time) error {
	return r.db.SetState(ingestKey(convCode), strconv.FormatInt(at.UnixMilli(), 10))
}

// LastIngest returns when a conversation was last stored, or the zero time.
func (r *Reconciler) LastIngest(convCode string) (time.Time, error) {
	v, err := r.db.GetState(ingestKey(convCode))
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.logger.Warn("corrupt checkpoint", zap.String("conv_code", convCode), zap.String("value", v))
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

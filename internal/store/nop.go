package store

import (
	"context"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
)

// NopStore is a no-op ledger used in check mode and when history is disabled.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Sync(context.Context, []model.JobRecord, time.Time) (model.HistoryDelta, error) {
	return model.HistoryDelta{}, nil
}
func (s *NopStore) List(context.Context, model.HistoryStatus) ([]model.HistoryEntry, error) {
	return nil, nil
}

package state

import (
	"context"

	"github.com/amishk599/shiftalert/internal/model"
)

// NopStore persists nothing. Used by one-shot commands that must not touch
// the daemon's state.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Load(context.Context) (model.NotificationState, error) {
	return model.NotificationState{}, nil
}
func (s *NopStore) Save(context.Context, model.NotificationState) error { return nil }

package manager

import (
	"context"
	"fmt"

	"github.com/frobware/go-sharedpages/report"
)

// SaveSnapshot persists s.
func (m *Manager) SaveSnapshot(ctx context.Context, s *report.Snapshot) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.SaveSnapshot(ctx, s); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.ID, err)
	}
	m.logger.Info("saved snapshot", "snapshot", s.ID, "ranges", len(s.Ranges))
	return nil
}

// Snapshot loads a saved snapshot by ID and checks its digest.
func (m *Manager) Snapshot(ctx context.Context, id string) (*report.Snapshot, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	s, err := m.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshots lists saved snapshots, newest first.
func (m *Manager) Snapshots(ctx context.Context) ([]report.Summary, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.ListSnapshots(ctx)
}

// DeleteSnapshot removes a saved snapshot.
func (m *Manager) DeleteSnapshot(ctx context.Context, id string) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	m.logger.Info("deleted snapshot", "snapshot", id)
	return nil
}

// ImportSnapshot verifies a snapshot read from an export and saves it.
func (m *Manager) ImportSnapshot(ctx context.Context, s *report.Snapshot) error {
	if err := s.Verify(); err != nil {
		return err
	}
	return m.SaveSnapshot(ctx, s)
}

package watch

import (
	"fmt"

	"wikiwatch/internal/database/sqlc"
)

// GetHistory returns the most recent journaled operations, ordered newest first.
func (s *WatchService) GetHistory(limit int) ([]*sqlc.Operation, error) {
	ops, err := s.store.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

package store

import (
	"context"
	"database/sql"
)

// Delete removes a root entry, every descendant node, and every tag
// owned by the root or any descendant, in one transaction (spec.md
// §4.3). Deleting a node ID is not supported at the store layer — nodes
// are only ever removed by deleting their root.
func (s *Store) Delete(ctx context.Context, rootID string) error {
	if err := s.refuseIfCorrupted(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadRootTx(tx, rootID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM tags WHERE owner_id = ? OR owner_id LIKE ?`, rootID, rootID+".%"); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE root_id = ?`, rootID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM root_entries WHERE id = ?`, rootID); err != nil {
			return err
		}
		return nil
	})
}

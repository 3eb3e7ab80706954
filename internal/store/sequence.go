package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Id types allocated from system_id.
const (
	IDBusiness   = "BUSINESS"
	IDFiling     = "FILING"
	IDParty      = "PARTY"
	IDPartyRole  = "PARTY_ROLE"
	IDOffice     = "OFFICE"
	IDAddress    = "ADDRESS"
	IDShareClass = "SHARE_CLASS"
	IDSeries     = "SHARE_SERIES"
	IDAlias      = "ALIAS"
)

// NextID returns the next identifier of the given type.
//
// The counter row is read under a row lock (FOR UPDATE on Postgres, the
// IMMEDIATE transaction's write lock on SQLite) and incremented in the same
// transaction, so concurrent runs never hand out the same id.
func (t *Tx) NextID(ctx context.Context, idType string) (int64, error) {
	var current int64
	err := t.QueryRowContext(ctx,
		"SELECT id_num FROM system_id WHERE id_typ_cd = ?"+t.dialect.ForUpdate(),
		idType,
	).Scan(&current)

	if errors.Is(err, sql.ErrNoRows) {
		// First id of this type. ON CONFLICT covers a concurrent first insert;
		// the retry below then observes the winner's row.
		if _, err := t.ExecContext(ctx, `
			INSERT INTO system_id (id_typ_cd, id_num) VALUES (?, 0)
			ON CONFLICT (id_typ_cd) DO NOTHING
		`, idType); err != nil {
			return 0, fmt.Errorf("next id %s: seed: %w", idType, err)
		}
		err = t.QueryRowContext(ctx,
			"SELECT id_num FROM system_id WHERE id_typ_cd = ?"+t.dialect.ForUpdate(),
			idType,
		).Scan(&current)
	}
	if err != nil {
		return 0, fmt.Errorf("next id %s: select: %w", idType, err)
	}

	next := current + 1
	if _, err := t.ExecContext(ctx,
		"UPDATE system_id SET id_num = ? WHERE id_typ_cd = ?",
		next, idType,
	); err != nil {
		return 0, fmt.Errorf("next id %s: update: %w", idType, err)
	}

	return next, nil
}

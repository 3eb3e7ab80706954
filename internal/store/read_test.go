package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusiness_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Business(context.Background(), "CP0000404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFilings_Empty(t *testing.T) {
	s := createTestStore(t)

	filings, err := s.Filings(context.Background(), "CP0000001")
	require.NoError(t, err)
	assert.NotNil(t, filings)
	assert.Empty(t, filings)
}

func TestFilings_OrderedWithEventLinkage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	insertTestFiling(t, s, "CP0000001", 2, 210, 200)
	insertTestFiling(t, s, "CP0000001", 1, 100)

	b, err := s.Business(ctx, "CP0000001")
	require.NoError(t, err)
	assert.Equal(t, "TEST CO-OP", b.LegalName)

	filings, err := s.Filings(ctx, "CP0000001")
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, int64(1), filings[0].ID)
	assert.Equal(t, []int64{100}, filings[0].ColinEventIDs)
	assert.Equal(t, []int64{200, 210}, filings[1].ColinEventIDs)
	assert.Equal(t, "COLIN", filings[1].Source)
}

func TestFilingForEvent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestFiling(t, s, "CP0000001", 7, 140)

	id, ok, err := s.FilingForEvent(ctx, 140)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, ok, err = s.FilingForEvent(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestFiling(t, s, "CP0000001", 1, 100, 101)

	n, err := s.CountRows(ctx, "colin_event_ids")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.CountRows(ctx, "sqlite_master")
	assert.Error(t, err)
}

func TestActivePartyRoles_Empty(t *testing.T) {
	s := createTestStore(t)

	roles, err := s.ActivePartyRoles(context.Background(), "CP0000001")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

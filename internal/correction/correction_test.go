package correction

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
	"github.com/bcgov/colin-migrate/internal/testutil"
)

func touch(entity string, start int64, end *int64) ledger.Touch {
	return ledger.Touch{Entity: entity, StartEventID: start, EndEventID: end}
}

func TestNewIndex_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		touches     []ledger.Touch
		corrections []int64
		correction  int64
		want        int64
		found       bool
	}{
		{
			name:        "row started by original closed by correction",
			touches:     []ledger.Touch{touch("corp_party", 200, testutil.Int(210)), touch("corp_party", 210, nil)},
			corrections: []int64{210},
			correction:  210,
			want:        200,
			found:       true,
		},
		{
			name:        "row inserted by correction back-references original",
			touches:     []ledger.Touch{touch("corp_party", 210, testutil.Int(200))},
			corrections: []int64{210},
			correction:  210,
			want:        200,
			found:       true,
		},
		{
			name: "latest candidate wins",
			touches: []ledger.Touch{
				touch("office", 150, testutil.Int(210)),
				touch("corp_party", 200, testutil.Int(210)),
			},
			corrections: []int64{210},
			correction:  210,
			want:        200,
			found:       true,
		},
		{
			name:        "correction that only inserts rows",
			touches:     []ledger.Touch{touch("corp_party", 210, nil)},
			corrections: []int64{210},
			correction:  210,
			found:       false,
		},
		{
			name:        "corrections never correct corrections",
			touches:     []ledger.Touch{touch("corp_name", 210, testutil.Int(220))},
			corrections: []int64{210, 220},
			correction:  220,
			found:       false,
		},
		{
			name:        "ordinary supersession is not a correction",
			touches:     []ledger.Touch{touch("office", 100, testutil.Int(140))},
			corrections: []int64{210},
			correction:  140,
			found:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewIndex(tt.touches, tt.corrections)
			got, ok := idx.CorrectedEventOf(tt.correction)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
				assert.Contains(t, idx.CorrectorsOf(tt.want), tt.correction)
			}
		})
	}
}

func TestIndex_MultipleCorrectionsOfOneEvent(t *testing.T) {
	idx := NewIndex([]ledger.Touch{
		touch("corp_party", 200, testutil.Int(230)),
		touch("corp_party", 200, testutil.Int(210)),
		touch("office", 300, testutil.Int(310)),
	}, []int64{210, 230, 310})

	assert.Equal(t, []int64{210, 230}, idx.CorrectorsOf(200))
	assert.Empty(t, idx.CorrectorsOf(150))

	links := idx.Links()
	require.Len(t, links, 3)
	assert.Equal(t, Link{CorrectedEventID: 200, CorrectingEventID: 210, Entity: "corp_party"}, links[0])
	assert.Equal(t, int64(310), links[2].CorrectingEventID)
	assert.Equal(t, "office", links[2].Entity)
}

type fakeAssembler struct {
	asOf       int64
	correcting []int64
	err        error
}

func (f *fakeAssembler) AssembleAsOf(_ context.Context, bag *assembler.Bag, asOf int64, correcting []int64) (*assembler.Bag, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.asOf, f.correcting = asOf, correcting
	out := *bag
	out.AsOfEventID = asOf
	out.IsCorrectedEventFiling = true
	out.CorrectingEventIDs = correcting
	return &out, nil
}

func TestResolver_FoldsLaterCorrections(t *testing.T) {
	idx := NewIndex([]ledger.Touch{
		touch("corp_party", 200, testutil.Int(210)),
		touch("corp_party", 200, testutil.Int(230)),
	}, []int64{210, 230})
	fa := &fakeAssembler{}
	r := NewResolver(fa, idx)

	bag := &assembler.Bag{CorpNum: "CP0005678", Event: ledger.Event{ID: 200}, Class: policy.ClassMaintenance}
	out, err := r.Resolve(context.Background(), bag)
	require.NoError(t, err)

	assert.Equal(t, int64(230), fa.asOf)
	assert.Equal(t, []int64{210, 230}, fa.correcting)
	assert.True(t, out.IsCorrectedEventFiling)

	_, ok := r.Absorbed(210)
	assert.False(t, ok, "nothing is absorbed until the filing is settled")

	r.Settle(out)
	e, ok := r.Absorbed(210)
	assert.True(t, ok)
	assert.Equal(t, int64(200), e)
	_, ok = r.Absorbed(230)
	assert.True(t, ok)
}

func TestResolver_SettleIgnoresPlainBags(t *testing.T) {
	r := NewResolver(&fakeAssembler{}, NewIndex(nil, nil))
	r.Settle(&assembler.Bag{Event: ledger.Event{ID: 140}, CorrectingEventIDs: []int64{150}})
	_, ok := r.Absorbed(150)
	assert.False(t, ok)
}

func TestResolver_UncorrectedEventPassesThrough(t *testing.T) {
	fa := &fakeAssembler{}
	r := NewResolver(fa, NewIndex(nil, nil))

	bag := &assembler.Bag{Event: ledger.Event{ID: 140}, Class: policy.ClassMaintenance}
	out, err := r.Resolve(context.Background(), bag)
	require.NoError(t, err)
	assert.Same(t, bag, out)
	assert.Zero(t, fa.asOf)
}

func TestResolver_StandaloneCorrection(t *testing.T) {
	idx := NewIndex([]ledger.Touch{touch("corp_party", 200, testutil.Int(210))}, []int64{210, 250})
	r := NewResolver(&fakeAssembler{}, idx)

	bag := &assembler.Bag{Event: ledger.Event{ID: 210}, Class: policy.ClassCorrection}
	out, err := r.Resolve(context.Background(), bag)
	require.NoError(t, err)
	require.NotNil(t, out.CorrectedEventID)
	assert.Equal(t, int64(200), *out.CorrectedEventID)
	assert.Nil(t, bag.CorrectedEventID, "input bag is not modified")

	unlinked := &assembler.Bag{Event: ledger.Event{ID: 250}, Class: policy.ClassCorrection}
	out, err = r.Resolve(context.Background(), unlinked)
	require.NoError(t, err)
	assert.Nil(t, out.CorrectedEventID)
}

func TestResolver_AssembleError(t *testing.T) {
	boom := errors.New("ledger unavailable")
	idx := NewIndex([]ledger.Touch{touch("corp_party", 200, testutil.Int(210))}, []int64{210})
	r := NewResolver(&fakeAssembler{err: boom}, idx)

	_, err := r.Resolve(context.Background(), &assembler.Bag{Event: ledger.Event{ID: 200}})
	assert.ErrorIs(t, err, boom)
	_, ok := r.Absorbed(210)
	assert.False(t, ok)
}

func TestResolver_AgainstLedger(t *testing.T) {
	ctx := context.Background()
	db, err := testutil.OpenLedger(ctx, filepath.Join(t.TempDir(), "ledger.db"), testutil.CorrectionLedger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reader := ledger.NewReader(db, store.DialectSQLite)

	table, err := policy.Default()
	require.NoError(t, err)
	rule, err := table.Lookup("OTCDR")
	require.NoError(t, err)

	touches, err := reader.CorrectionTouches(ctx, "CP0005678", []int64{210})
	require.NoError(t, err)
	asm := assembler.New(reader)
	r := NewResolver(asm, NewIndex(touches, []int64{210}))

	bag, err := asm.Assemble(ctx, assembler.Request{
		CorpNum: "CP0005678",
		Event:   ledger.Event{ID: 200},
		Rule:    rule,
		Class:   rule.Class,
	})
	require.NoError(t, err)

	out, err := r.Resolve(ctx, bag)
	require.NoError(t, err)
	assert.True(t, out.IsCorrectedEventFiling)
	assert.Equal(t, []int64{200, 210}, out.ColinIDs())

	var names []string
	for _, p := range out.Parties {
		names = append(names, p.Row.FirstName+" "+p.Row.LastName)
	}
	assert.Equal(t, []string{"Ana Lee", "John Doe"}, names)

	r.Settle(out)
	e, ok := r.Absorbed(210)
	assert.True(t, ok)
	assert.Equal(t, int64(200), e)
}

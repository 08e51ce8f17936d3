package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"picking-tracker-backend/internal/model"
)

// newTestStore opens a private in-memory sqlite database with the full
// schema applied.
func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Store{},
		&model.TemplateEntry{},
		&model.Run{},
		&model.Line{},
		&model.LineAudit{},
		&model.User{},
	))
	return NewGormStore(db)
}

// seedStores creates active stores with the given codes and template entries
// for the given weekday, returning code -> id.
func seedStores(t *testing.T, s Store, weekday int, codes ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(codes))
	for _, code := range codes {
		st := model.Store{Code: code, Name: "Store " + code, Active: true}
		require.NoError(t, s.DB().Create(&st).Error)
		require.NoError(t, s.DB().Create(&model.TemplateEntry{Weekday: weekday, StoreID: st.ID}).Error)
		ids[code] = st.ID
	}
	return ids
}

func TestEnsureRun_CreatesOncePerDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureRun(ctx, "2024-06-04")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := s.EnsureRun(ctx, "2024-06-04")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, s.DB().Model(&model.Run{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcileLines_CreatesTwoLinesPerStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedStores(t, s, 2, "S1", "S2")

	// Scenario: Tuesday 2024-06-04 with template stores S1, S2.
	run, lines, created, err := s.ReconcileLines(ctx, "2024-06-04", 2)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Len(t, created, 4) // everything is new on the first load

	// Sorted by store code, ZILVER before STAAL.
	assert.Equal(t, ids["S1"], lines[0].StoreID)
	assert.Equal(t, model.MetalZilver, lines[0].Metal)
	assert.Equal(t, ids["S1"], lines[1].StoreID)
	assert.Equal(t, model.MetalStaal, lines[1].Metal)
	assert.Equal(t, ids["S2"], lines[2].StoreID)
	assert.Equal(t, model.MetalZilver, lines[2].Metal)
	assert.Equal(t, ids["S2"], lines[3].StoreID)
	assert.Equal(t, model.MetalStaal, lines[3].Metal)

	for _, l := range lines {
		assert.Equal(t, run.ID, l.RunID)
		assert.Equal(t, model.StatusPending, l.Status)
		assert.Nil(t, l.Picker)
		require.NotNil(t, l.Store)
		assert.NotEmpty(t, l.Store.Code)
	}
}

func TestReconcileLines_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedStores(t, s, 3, "HAS", "GNT")

	_, first, _, err := s.ReconcileLines(ctx, "2024-06-05", 3)
	require.NoError(t, err)
	require.Len(t, first, 4)

	// Mutate one line between calls; reconciliation must not reset it.
	picker := "Jan"
	_, err = s.UpdateLine(ctx, first[0].ID, LinePatch{
		Picker:    &picker,
		PickerSet: true,
		Status:    statusPtr(model.StatusInProgress),
	})
	require.NoError(t, err)

	_, second, created, err := s.ReconcileLines(ctx, "2024-06-05", 3)
	require.NoError(t, err)
	require.Len(t, second, 4)
	assert.Empty(t, created) // nothing new on a repeat load

	assert.Equal(t, first[0].ID, second[0].ID)
	require.NotNil(t, second[0].Picker)
	assert.Equal(t, "Jan", *second[0].Picker)
	assert.Equal(t, model.StatusInProgress, second[0].Status)

	var count int64
	require.NoError(t, s.DB().Model(&model.Line{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestReconcileLines_EmptyTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Template only covers Tuesday; Friday has no stores.
	seedStores(t, s, 2, "S1")

	_, lines, created, err := s.ReconcileLines(ctx, "2024-06-07", 5)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Empty(t, created)

	var count int64
	require.NoError(t, s.DB().Model(&model.Line{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestReconcileLines_BackfillsMissingPairs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedStores(t, s, 4, "S1")

	run, err := s.EnsureRun(ctx, "2024-06-06")
	require.NoError(t, err)

	// Pre-create only the ZILVER line, as if a partial write was left behind.
	require.NoError(t, s.DB().Create(&model.Line{
		RunID:   run.ID,
		StoreID: ids["S1"],
		Metal:   model.MetalZilver,
		Status:  model.StatusDone,
	}).Error)

	_, lines, created, err := s.ReconcileLines(ctx, "2024-06-06", 4)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, model.StatusDone, lines[0].Status)    // pre-existing kept
	assert.Equal(t, model.StatusPending, lines[1].Status) // backfilled

	// Only the backfilled STAAL line counts as created.
	require.Len(t, created, 1)
	assert.Equal(t, model.MetalStaal, created[0].Metal)
}

func TestUpdateLine_PartialPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedStores(t, s, 2, "S1")

	_, lines, _, err := s.ReconcileLines(ctx, "2024-06-04", 2)
	require.NoError(t, err)

	picker := "Jan P."
	rec, err := s.UpdateLine(ctx, lines[0].ID, LinePatch{Picker: &picker, PickerSet: true})
	require.NoError(t, err)
	require.NotNil(t, rec.Picker)
	assert.Equal(t, "Jan P.", *rec.Picker)
	assert.Equal(t, model.StatusPending, rec.Status) // untouched
	require.NotNil(t, rec.Store)
	assert.Equal(t, "S1", rec.Store.Code)

	// Status-only patch leaves the picker alone.
	rec, err = s.UpdateLine(ctx, lines[0].ID, LinePatch{Status: statusPtr(model.StatusDone)})
	require.NoError(t, err)
	require.NotNil(t, rec.Picker)
	assert.Equal(t, "Jan P.", *rec.Picker)
	assert.Equal(t, model.StatusDone, rec.Status)

	// Explicit null clears the picker.
	rec, err = s.UpdateLine(ctx, lines[0].ID, LinePatch{PickerSet: true})
	require.NoError(t, err)
	assert.Nil(t, rec.Picker)
}

func TestUpdateLine_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateLine(ctx, "no-such-line", LinePatch{Status: statusPtr(model.StatusDone)})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = s.UpdateLine(ctx, "irrelevant", LinePatch{})
	assert.Error(t, err)
}

func TestInsertAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedStores(t, s, 2, "S1")

	_, lines, _, err := s.ReconcileLines(ctx, "2024-06-04", 2)
	require.NoError(t, err)

	require.NoError(t, s.InsertAudit(ctx, lines[0], "jan"))

	var audits []model.LineAudit
	require.NoError(t, s.DB().Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, lines[0].ID, audits[0].LineID)
	assert.Equal(t, "jan", audits[0].ChangedBy)
	assert.Equal(t, model.StatusPending, audits[0].Status)
}

func TestSyncCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stores := []CatalogStore{
		{Code: "has", Name: "Hasselt", Active: true},
		{Code: "GNT", Name: "Gent", Active: true},
	}
	entries := []CatalogEntry{
		{Weekday: 2, StoreCode: "HAS"},
		{Weekday: 2, StoreCode: "gnt"},
		{Weekday: 6, StoreCode: "HAS"},  // outside operating days, skipped
		{Weekday: 3, StoreCode: "NOPE"}, // unknown store, skipped
	}
	require.NoError(t, s.SyncCatalog(ctx, stores, entries))

	listed, err := s.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "GNT", listed[0].Code) // codes normalized to upper case
	assert.Equal(t, "HAS", listed[1].Code)

	var templates []model.TemplateEntry
	require.NoError(t, s.DB().Find(&templates).Error)
	assert.Len(t, templates, 2)

	// Second sync with a renamed store and a narrower template replaces,
	// never duplicates.
	stores[0].Name = "Hasselt Centrum"
	require.NoError(t, s.SyncCatalog(ctx, stores, entries[:1]))

	listed, err = s.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Hasselt Centrum", listed[1].Name)

	templates = nil
	require.NoError(t, s.DB().Find(&templates).Error)
	assert.Len(t, templates, 1)
}

func TestSyncCatalog_RejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SyncCatalog(context.Background(), nil, nil))
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	any, err := s.AnyUsers(ctx)
	require.NoError(t, err)
	assert.False(t, any)

	require.NoError(t, s.CreateUser(ctx, "jan", "hash"))

	any, err = s.AnyUsers(ctx)
	require.NoError(t, err)
	assert.True(t, any)

	user, err := s.UserByUsername(ctx, "jan")
	require.NoError(t, err)
	assert.Equal(t, "hash", user.PasswordHash)

	_, err = s.UserByUsername(ctx, "piet")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func statusPtr(st model.Status) *model.Status { return &st }

package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"picking-tracker-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// EnsureRun returns the run for the given date, creating it if absent.
	// Safe under concurrent callers: the insert ignores the unique conflict
	// on run_date and re-reads.
	EnsureRun(ctx context.Context, runDate string) (model.Run, error)

	// ReconcileLines ensures that every (store, metal) pair required by the
	// weekday template has exactly one line for the date's run. It returns
	// the full joined, sorted line set plus the subset this call created,
	// so callers can announce the new rows on the change feed.
	ReconcileLines(ctx context.Context, runDate string, weekday int) (model.Run, []LineRecord, []LineRecord, error)

	// UpdateLine applies a partial patch to a single line and returns the
	// updated record joined with its store.
	UpdateLine(ctx context.Context, id string, patch LinePatch) (LineRecord, error)

	// InsertAudit appends a best-effort audit snapshot of a line mutation.
	InsertAudit(ctx context.Context, rec LineRecord, changedBy string) error

	ListStores(ctx context.Context) ([]model.Store, error)

	// SyncCatalog replaces the store catalog and weekday templates with the
	// upstream's version.
	SyncCatalog(ctx context.Context, stores []CatalogStore, entries []CatalogEntry) error

	UserByUsername(ctx context.Context, username string) (model.User, error)
	AnyUsers(ctx context.Context) (bool, error)
	CreateUser(ctx context.Context, username, passwordHash string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) EnsureRun(ctx context.Context, runDate string) (model.Run, error) {
	run := model.Run{RunDate: runDate}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_date"}},
		DoNothing: true,
	}).Create(&run)
	if res.Error != nil {
		return model.Run{}, fmt.Errorf("failed to create run for %s: %w", runDate, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race (or the run already existed); the row in the
		// database is the truth, not our generated ID.
		run = model.Run{}
		if err := s.db.WithContext(ctx).First(&run, "run_date = ?", runDate).Error; err != nil {
			return model.Run{}, fmt.Errorf("failed to re-read run for %s: %w", runDate, err)
		}
	}
	return run, nil
}

func (s *gormStore) ReconcileLines(ctx context.Context, runDate string, weekday int) (model.Run, []LineRecord, []LineRecord, error) {
	run, err := s.EnsureRun(ctx, runDate)
	if err != nil {
		return model.Run{}, nil, nil, err
	}

	var storeIDs []string
	if err := s.db.WithContext(ctx).
		Model(&model.TemplateEntry{}).
		Where("weekday = ?", weekday).
		Pluck("store_id", &storeIDs).Error; err != nil {
		return model.Run{}, nil, nil, fmt.Errorf("failed to fetch template stores for weekday %d: %w", weekday, err)
	}

	if len(storeIDs) == 0 {
		return run, []LineRecord{}, nil, nil
	}

	var existing []model.Line
	if err := s.db.WithContext(ctx).
		Where("run_id = ? AND store_id IN ?", run.ID, storeIDs).
		Find(&existing).Error; err != nil {
		return model.Run{}, nil, nil, fmt.Errorf("failed to fetch existing lines: %w", err)
	}

	existingKeys := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		existingKeys[lineKey(l.StoreID, l.Metal)] = struct{}{}
	}

	var missing []model.Line
	missingKeys := make(map[string]struct{})
	for _, storeID := range storeIDs {
		for _, metal := range model.Metals {
			key := lineKey(storeID, metal)
			if _, ok := existingKeys[key]; !ok {
				missing = append(missing, model.Line{
					RunID:   run.ID,
					StoreID: storeID,
					Metal:   metal,
					Status:  model.StatusPending,
				})
				missingKeys[key] = struct{}{}
			}
		}
	}

	if len(missing) > 0 {
		// Conflict-ignore keeps concurrent reconciliations (two clients
		// loading the same date) from failing or duplicating.
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "run_id"}, {Name: "store_id"}, {Name: "metal"},
			},
			DoNothing: true,
		}).Create(&missing).Error; err != nil {
			return model.Run{}, nil, nil, fmt.Errorf("failed to create missing lines: %w", err)
		}
	}

	records, err := s.fetchJoinedLines(ctx, run.ID, storeIDs)
	if err != nil {
		return model.Run{}, nil, nil, err
	}

	// The keys we filled in this call. A concurrent reconciler may have won
	// some of the inserts; announcing those again is harmless, the feed
	// merge is idempotent.
	var created []LineRecord
	for _, rec := range records {
		if _, ok := missingKeys[lineKey(rec.StoreID, rec.Metal)]; ok {
			created = append(created, rec)
		}
	}
	return run, records, created, nil
}

func (s *gormStore) UpdateLine(ctx context.Context, id string, patch LinePatch) (LineRecord, error) {
	updates := make(map[string]any, 2)
	if patch.PickerSet {
		updates["picker"] = patch.Picker
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if len(updates) == 0 {
		return LineRecord{}, fmt.Errorf("empty patch for line %s", id)
	}

	res := s.db.WithContext(ctx).
		Model(&model.Line{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return LineRecord{}, fmt.Errorf("failed to update line %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return LineRecord{}, gorm.ErrRecordNotFound
	}

	var line model.Line
	if err := s.db.WithContext(ctx).Preload("Store").First(&line, "id = ?", id).Error; err != nil {
		return LineRecord{}, fmt.Errorf("failed to re-read line %s: %w", id, err)
	}
	return toRecord(line, true), nil
}

func (s *gormStore) InsertAudit(ctx context.Context, rec LineRecord, changedBy string) error {
	audit := model.LineAudit{
		LineID:    rec.ID,
		RunID:     rec.RunID,
		StoreID:   rec.StoreID,
		Metal:     rec.Metal,
		Picker:    rec.Picker,
		Status:    rec.Status,
		ChangedBy: changedBy,
	}
	if err := s.db.WithContext(ctx).Create(&audit).Error; err != nil {
		return fmt.Errorf("failed to insert audit record for line %s: %w", rec.ID, err)
	}
	return nil
}

func (s *gormStore) ListStores(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("code").
		Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

func (s *gormStore) SyncCatalog(ctx context.Context, stores []CatalogStore, entries []CatalogEntry) error {
	if len(stores) == 0 {
		return fmt.Errorf("refusing to sync an empty store catalog")
	}

	storeRows := make([]model.Store, 0, len(stores))
	for _, cs := range stores {
		if cs.Code == "" {
			log.Printf("Skipping catalog store with empty code (name %q)", cs.Name)
			continue
		}
		storeRows = append(storeRows, model.Store{
			Code:   strings.ToUpper(cs.Code),
			Name:   cs.Name,
			Active: cs.Active,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
		}).Create(&storeRows).Error; err != nil {
			return fmt.Errorf("batch upsert stores failed: %w", err)
		}

		var allStores []model.Store
		if err := tx.Find(&allStores).Error; err != nil {
			return fmt.Errorf("failed to retrieve stores after upsert: %w", err)
		}
		codeMap := make(map[string]string, len(allStores))
		for _, st := range allStores {
			codeMap[st.Code] = st.ID
		}

		var templateRows []model.TemplateEntry
		for _, e := range entries {
			if e.Weekday < model.WeekdayMin || e.Weekday > model.WeekdayMax {
				log.Printf("Skipping template entry with weekday %d outside operating days", e.Weekday)
				continue
			}
			storeID, ok := codeMap[strings.ToUpper(e.StoreCode)]
			if !ok {
				log.Printf("Skipping template entry for unknown store code %q", e.StoreCode)
				continue
			}
			templateRows = append(templateRows, model.TemplateEntry{
				Weekday: e.Weekday,
				StoreID: storeID,
			})
		}

		// The upstream catalog owns the templates; replace wholesale.
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.TemplateEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear template entries: %w", err)
		}
		if len(templateRows) > 0 {
			if err := tx.Create(&templateRows).Error; err != nil {
				return fmt.Errorf("batch insert template entries failed: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) UserByUsername(ctx context.Context, username string) (model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *gormStore) AnyUsers(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	user := model.User{Username: username, PasswordHash: passwordHash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return nil
}

// --- Helpers ---

func (s *gormStore) fetchJoinedLines(ctx context.Context, runID string, storeIDs []string) ([]LineRecord, error) {
	var lines []model.Line
	if err := s.db.WithContext(ctx).
		Preload("Store").
		Where("run_id = ? AND store_id IN ?", runID, storeIDs).
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch lines for run %s: %w", runID, err)
	}

	records := make([]LineRecord, 0, len(lines))
	for _, l := range lines {
		records = append(records, toRecord(l, true))
	}
	SortLines(records)
	return records, nil
}

func lineKey(storeID string, metal model.Metal) string {
	return storeID + "__" + string(metal)
}

func toRecord(l model.Line, withStore bool) LineRecord {
	rec := LineRecord{
		ID:      l.ID,
		RunID:   l.RunID,
		StoreID: l.StoreID,
		Metal:   l.Metal,
		Picker:  l.Picker,
		Status:  l.Status,
	}
	if withStore && l.Store.ID != "" {
		rec.Store = &StoreRef{ID: l.Store.ID, Code: l.Store.Code, Name: l.Store.Name}
	}
	return rec
}

// SortLines orders lines by store code (lexicographic, uppercased), with
// ZILVER before STAAL within a store. Lines without a joined store sort by
// store ID so the order is still deterministic.
func SortLines(records []LineRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := sortLabel(records[i]), sortLabel(records[j])
		if a != b {
			return a < b
		}
		if records[i].Metal != records[j].Metal {
			return records[i].Metal == model.MetalZilver
		}
		return records[i].ID < records[j].ID
	})
}

func sortLabel(rec LineRecord) string {
	if rec.Store != nil {
		return strings.ToUpper(rec.Store.Code)
	}
	return rec.StoreID
}

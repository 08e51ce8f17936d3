package store

import (
	"encoding/json"
	"fmt"

	"picking-tracker-backend/internal/model"
)

// StoreRef is the joined display shape for a line's store. The data layer
// always returns the join as a single nullable struct, never a list.
type StoreRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// LineRecord is a flattened picking line as served to clients. Store is nil
// when the join was not performed (e.g. change-feed payloads).
type LineRecord struct {
	ID      string       `json:"id"`
	RunID   string       `json:"run_id"`
	StoreID string       `json:"store_id"`
	Metal   model.Metal  `json:"metal"`
	Picker  *string      `json:"picker"`
	Status  model.Status `json:"status"`
	Store   *StoreRef    `json:"store,omitempty"`
}

// LinePatch is a field-level partial update for a line. Only set fields are
// persisted; PickerSet distinguishes "picker: null" from an absent picker.
type LinePatch struct {
	Picker    *string
	PickerSet bool
	Status    *model.Status
}

// Empty reports whether the patch carries no fields at all.
func (p LinePatch) Empty() bool {
	return !p.PickerSet && p.Status == nil
}

// MarshalJSON emits only the fields that are set.
func (p LinePatch) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, 2)
	if p.PickerSet {
		fields["picker"] = p.Picker
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	return json.Marshal(fields)
}

// UnmarshalJSON accepts a partial {picker?, status?} object and rejects
// unknown fields and invalid status values.
func (p *LinePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = LinePatch{}
	for key, val := range raw {
		switch key {
		case "picker":
			var picker *string
			if err := json.Unmarshal(val, &picker); err != nil {
				return fmt.Errorf("invalid picker value: %w", err)
			}
			p.Picker = picker
			p.PickerSet = true
		case "status":
			var status model.Status
			if err := json.Unmarshal(val, &status); err != nil {
				return fmt.Errorf("invalid status value: %w", err)
			}
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			p.Status = &status
		default:
			return fmt.Errorf("unknown patch field %q", key)
		}
	}
	return nil
}

// CatalogStore is a store record as delivered by the upstream catalog.
type CatalogStore struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CatalogEntry is a template row as delivered by the upstream catalog,
// referencing the store by its code.
type CatalogEntry struct {
	Weekday   int    `json:"weekday"`
	StoreCode string `json:"store_code"`
}

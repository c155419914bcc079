package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ImageRef points at one finalized object in storage.
type ImageRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Complete reports whether both the key and url are present.
func (r ImageRef) Complete() bool {
	return strings.TrimSpace(r.Key) != "" && strings.TrimSpace(r.URL) != ""
}

// ImageRefs is the ordered image set of a listing, persisted as JSONB.
type ImageRefs []ImageRef

// Value marshals the slice into JSON for Postgres.
func (r ImageRefs) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the slice.
func (r *ImageRefs) Scan(value interface{}) error {
	if value == nil {
		*r = ImageRefs{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("image refs: unsupported scan type %T", value)
	}

	result := ImageRefs{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return err
		}
	}
	*r = result
	return nil
}

// GormDataType lets gorm pick the column type when auto-migrating.
func (ImageRefs) GormDataType() string {
	return "jsonb"
}

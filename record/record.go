// Package record defines the entities persisted by the local and remote
// stores: keyed records grouped into named collections, plus the versioned
// schema describing each collection's secondary indexes.
package record

import (
	"encoding/json"
	"strconv"
	"time"
)

// Collection names a logical group of records. Every record belongs to
// exactly one collection.
type Collection string

const (
	Users       Collection = "users"
	Workouts    Collection = "workouts"
	Exercises   Collection = "exercises"
	History     Collection = "history"
	Assessments Collection = "assessments"
	Progress    Collection = "progress"
	Students    Collection = "students"
	Checkins    Collection = "checkins"
	Settings    Collection = "settings"
)

// Collections lists every record collection for reconciliation loops.
// Settings is excluded: settings rows are keyed by string and never synced
// through the record path.
var Collections = []Collection{
	Users, Workouts, Exercises, History, Assessments, Progress, Students, Checkins,
}

// Fields holds the domain payload of a record.
type Fields map[string]interface{}

// Record is a single entity in a collection. ID is assigned by the local
// store on insert and is stable for the record's lifetime; CloudID is
// assigned by the remote store once the record has been uploaded. The two
// identify the same logical entity but are structurally unrelated.
type Record struct {
	ID        int64     `json:"id,omitempty"`
	CloudID   string    `json:"cloudId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Fields    Fields    `json:"-"`
}

// Synced reports whether the record has been uploaded to the remote store.
func (r Record) Synced() bool { return r.CloudID != "" }

// IDString is the local id in the decimal form the store hands out.
func (r Record) IDString() string { return strconv.FormatInt(r.ID, 10) }

// Key is the id under which the record's authoritative store addresses it:
// the cloud id once assigned, the local id otherwise. Records fetched from
// the remote store carry no local id at all, so domain callers key on this
// rather than IDString.
func (r Record) Key() string {
	if r.CloudID != "" {
		return r.CloudID
	}
	return strconv.FormatInt(r.ID, 10)
}

// Clone returns a deep-enough copy: the Fields map is copied, values are
// shared. Callers mutate top-level fields only.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(Fields, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// Reserved field names that live on the Record struct rather than in Fields.
const (
	FieldID        = "id"
	FieldCloudID   = "cloudId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Get resolves a field by name, including the reserved struct fields.
func (r Record) Get(field string) interface{} {
	switch field {
	case FieldID:
		return r.ID
	case FieldCloudID:
		return r.CloudID
	case FieldCreatedAt:
		return r.CreatedAt
	case FieldUpdatedAt:
		return r.UpdatedAt
	default:
		return r.Fields[field]
	}
}

// String returns the field as a string, or "" if absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Float returns the field as a float64, accepting the numeric types JSON
// decoding produces.
func (f Fields) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		out, _ := v.Float64()
		return out
	default:
		return 0
	}
}

// Int returns the field as an int.
func (f Fields) Int(key string) int {
	return int(f.Float(key))
}

// MarshalJSON flattens Fields into the top-level object alongside the
// reserved record fields, matching the document layout the remote store
// expects.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	if r.ID != 0 {
		out[FieldID] = r.ID
	}
	if r.CloudID != "" {
		out[FieldCloudID] = r.CloudID
	}
	if !r.CreatedAt.IsZero() {
		out[FieldCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !r.UpdatedAt.IsZero() {
		out[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: reserved keys populate the
// struct fields, everything else lands in Fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Fields = make(Fields, len(raw))
	for k, v := range raw {
		switch k {
		case FieldID:
			if n, ok := v.(float64); ok {
				r.ID = int64(n)
			}
		case FieldCloudID:
			if s, ok := v.(string); ok {
				r.CloudID = s
			}
		case FieldCreatedAt:
			r.CreatedAt = parseTime(v)
		case FieldUpdatedAt:
			r.UpdatedAt = parseTime(v)
		default:
			r.Fields[k] = v
		}
	}
	return nil
}

func parseTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Setting is a key-value row from the settings collection. Keys are
// namespaced as {scope}_{name} to avoid collisions between users sharing a
// device.
type Setting struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// ScopeGlobal is the scope for device-wide settings such as currentUserId.
const ScopeGlobal = "global"

// ScopedKey builds the namespaced settings key for a scope and name.
func ScopedKey(scope, name string) string {
	if scope == "" {
		scope = ScopeGlobal
	}
	return scope + "_" + name
}

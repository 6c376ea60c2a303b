package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJSONFlattening(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	r := Record{
		ID:        7,
		CloudID:   "c0ffee",
		CreatedAt: now,
		Fields:    Fields{"userId": int64(3), "name": "Push A"},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["name"] != "Push A" {
		t.Errorf("payload field not flattened: %v", flat)
	}
	if flat["cloudId"] != "c0ffee" {
		t.Errorf("cloudId missing from wire form: %v", flat)
	}
	if _, nested := flat["Fields"]; nested {
		t.Error("Fields must not appear as a nested object")
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.ID != 7 || back.CloudID != "c0ffee" {
		t.Errorf("reserved fields lost: %+v", back)
	}
	if !back.CreatedAt.Equal(now) {
		t.Errorf("createdAt mismatch: %v", back.CreatedAt)
	}
	if back.Fields.String("name") != "Push A" {
		t.Errorf("payload lost: %+v", back.Fields)
	}
}

func TestFieldAccessors(t *testing.T) {
	f := Fields{"reps": float64(10), "weight": 22.5, "note": "pb"}
	if f.Int("reps") != 10 {
		t.Errorf("Int: got %d", f.Int("reps"))
	}
	if f.Float("weight") != 22.5 {
		t.Errorf("Float: got %f", f.Float("weight"))
	}
	if f.String("note") != "pb" {
		t.Errorf("String: got %s", f.String("note"))
	}
	if f.String("missing") != "" || f.Float("missing") != 0 {
		t.Error("missing fields must return zero values")
	}
}

func TestScopedKey(t *testing.T) {
	if got := ScopedKey(ScopeGlobal, "currentUserId"); got != "global_currentUserId" {
		t.Errorf("global key: %s", got)
	}
	if got := ScopedKey("user_3", "units"); got != "user_3_units" {
		t.Errorf("user key: %s", got)
	}
	if got := ScopedKey("", "theme"); got != "global_theme" {
		t.Errorf("empty scope must default to global: %s", got)
	}
}

func TestSchemaDeclarations(t *testing.T) {
	if !HasIndex(Users, "email") {
		t.Error("users.email index missing")
	}
	if !HasIndex(Checkins, "date") {
		t.Error("checkins.date index missing (schema v2)")
	}
	if HasIndex(Workouts, "name") {
		t.Error("workouts.name was never declared as an index")
	}
	if !Known(Settings) || !Known(Students) || Known(Collection("bogus")) {
		t.Error("Known() misclassifies collections")
	}

	// Versions must be strictly increasing so upgrades stay additive.
	last := 0
	for _, m := range Migrations {
		if m.Version <= last {
			t.Fatalf("migration versions not monotonic at %d", m.Version)
		}
		last = m.Version
	}
	if last != SchemaVersion {
		t.Errorf("SchemaVersion %d does not match last migration %d", SchemaVersion, last)
	}
}

func TestCloneIsolation(t *testing.T) {
	r := Record{ID: 1, Fields: Fields{"a": 1}}
	c := r.Clone()
	c.Fields["a"] = 2
	if r.Fields.Int("a") != 1 {
		t.Error("Clone must not share the Fields map")
	}
}

func TestKeyPrefersCloudID(t *testing.T) {
	local := Record{ID: 7}
	if got := local.Key(); got != "7" {
		t.Fatalf("local key = %q, want %q", got, "7")
	}

	synced := Record{ID: 7, CloudID: "c0ffee"}
	if got := synced.Key(); got != "c0ffee" {
		t.Fatalf("synced key = %q, want %q", got, "c0ffee")
	}

	// Records fetched from the remote carry no local id at all.
	remote := Record{CloudID: "c0ffee"}
	if got := remote.Key(); got != "c0ffee" {
		t.Fatalf("remote key = %q, want %q", got, "c0ffee")
	}
}

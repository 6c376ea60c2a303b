package record

// IndexDef declares a secondary index over a single payload field.
type IndexDef struct {
	Field  string
	Unique bool
}

// CollectionDef declares a collection and its secondary indexes.
type CollectionDef struct {
	Name    Collection
	Indexes []IndexDef
}

// Migration is one additive schema version. Upgrades may only introduce new
// collections and indexes; nothing is ever dropped, so existing records
// survive every upgrade.
type Migration struct {
	Version     int
	Collections []CollectionDef
}

// SchemaVersion is the current schema version number.
const SchemaVersion = 2

// Migrations is the ordered, append-only upgrade history. Version 2 added
// the trainer roster and daily check-in collections.
var Migrations = []Migration{
	{
		Version: 1,
		Collections: []CollectionDef{
			{Name: Users, Indexes: []IndexDef{{Field: "email", Unique: true}, {Field: "type"}}},
			{Name: Workouts, Indexes: []IndexDef{{Field: "userId"}, {Field: "createdAt"}}},
			{Name: Exercises, Indexes: []IndexDef{{Field: "muscle"}, {Field: "equipment"}}},
			{Name: History, Indexes: []IndexDef{{Field: "userId"}, {Field: "workoutId"}, {Field: "date"}}},
			{Name: Assessments, Indexes: []IndexDef{{Field: "userId"}, {Field: "date"}}},
			{Name: Progress, Indexes: []IndexDef{{Field: "userId"}, {Field: "date"}}},
		},
	},
	{
		Version: 2,
		Collections: []CollectionDef{
			{Name: Students, Indexes: []IndexDef{{Field: "trainerId"}}},
			{Name: Checkins, Indexes: []IndexDef{{Field: "userId"}, {Field: "date"}}},
		},
	},
}

// IndexedFields returns the declared index fields for a collection, across
// all schema versions.
func IndexedFields(c Collection) []IndexDef {
	var out []IndexDef
	for _, m := range Migrations {
		for _, def := range m.Collections {
			if def.Name == c {
				out = append(out, def.Indexes...)
			}
		}
	}
	return out
}

// HasIndex reports whether field is a declared index on collection c.
func HasIndex(c Collection, field string) bool {
	for _, def := range IndexedFields(c) {
		if def.Field == field {
			return true
		}
	}
	return false
}

// Known reports whether c is a declared collection.
func Known(c Collection) bool {
	if c == Settings {
		return true
	}
	for _, m := range Migrations {
		for _, def := range m.Collections {
			if def.Name == c {
				return true
			}
		}
	}
	return false
}

// Package workout manages workout definitions and the in-memory execution
// of a single active session.
package workout

import (
	"time"

	"github.com/fitlocker/fitlocker/record"
)

// Exercise is one planned exercise inside a workout definition.
type Exercise struct {
	Name        string
	Muscle      string
	Equipment   string
	TargetSets  int
	TargetReps  int
	RestSeconds int
}

// Workout is a reusable workout definition owned by a user.
type Workout struct {
	ID        string
	CloudID   string
	UserID    string
	Name      string
	Exercises []Exercise
	CreatedAt time.Time
}

func (w Workout) fields() record.Fields {
	exercises := make([]interface{}, 0, len(w.Exercises))
	for _, ex := range w.Exercises {
		exercises = append(exercises, map[string]interface{}{
			"name":        ex.Name,
			"muscle":      ex.Muscle,
			"equipment":   ex.Equipment,
			"targetSets":  ex.TargetSets,
			"targetReps":  ex.TargetReps,
			"restSeconds": ex.RestSeconds,
		})
	}
	return record.Fields{
		"userId":    w.UserID,
		"name":      w.Name,
		"exercises": exercises,
	}
}

func fromRecord(rec record.Record) Workout {
	w := Workout{
		ID:        rec.Key(),
		CloudID:   rec.CloudID,
		UserID:    rec.Fields.String("userId"),
		Name:      rec.Fields.String("name"),
		CreatedAt: rec.CreatedAt,
	}
	raw, _ := rec.Fields["exercises"].([]interface{})
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		f := record.Fields(m)
		w.Exercises = append(w.Exercises, Exercise{
			Name:        f.String("name"),
			Muscle:      f.String("muscle"),
			Equipment:   f.String("equipment"),
			TargetSets:  f.Int("targetSets"),
			TargetReps:  f.Int("targetReps"),
			RestSeconds: f.Int("restSeconds"),
		})
	}
	return w
}

package workout

import (
	"context"
	"math"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

// State is the lifecycle state of an execution session.
type State int

const (
	NotStarted State = iota
	InProgress
	Finished
	Cancelled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SetLog is one logged set of an exercise.
type SetLog struct {
	SetNumber int
	Reps      int
	Weight    float64
	Timestamp time.Time
}

// ExerciseProgress is the live state of one exercise during a session.
type ExerciseProgress struct {
	Exercise
	Completed bool
	Skipped   bool
	Sets      []SetLog
}

// Summary is the result of a finished session, persisted as one history
// record.
type Summary struct {
	WorkoutID       string
	WorkoutName     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	TotalSets       int
	TotalVolume     float64
}

const (
	opStart  = storeErrors.Operation("workout.Execution.Start")
	opLogSet = storeErrors.Operation("workout.Execution.LogSet")
	opFinish = storeErrors.Operation("workout.Execution.FinishSession")
)

// Execution runs one workout session at a time. It is purely in-memory
// until FinishSession persists the summary; CancelSession discards it.
// A single device holds at most one active Execution.
type Execution struct {
	store  store.Store
	logger *logging.Logger
	now    func() time.Time

	state     State
	workout   Workout
	startTime time.Time
	current   int
	exercises []ExerciseProgress
}

// NewExecution creates an idle session runner.
func NewExecution(s store.Store) *Execution {
	return &Execution{
		store:  s,
		logger: logging.WithComponent(logging.Component("workout")),
		now:    time.Now,
		state:  NotStarted,
	}
}

// Start begins a session for the workout. Starting while a session is in
// progress is an error; a finished or cancelled session may be restarted.
func (e *Execution) Start(w Workout) error {
	if e.state == InProgress {
		return storeErrors.E(opStart, component, storeErrors.KindValidation,
			"a session is already in progress")
	}
	if len(w.Exercises) == 0 {
		return storeErrors.E(opStart, component, storeErrors.KindValidation,
			"workout has no exercises")
	}

	e.workout = w
	e.startTime = e.now()
	e.current = 0
	e.exercises = make([]ExerciseProgress, len(w.Exercises))
	for i, ex := range w.Exercises {
		e.exercises[i] = ExerciseProgress{Exercise: ex}
	}
	e.state = InProgress
	return nil
}

// State returns the session lifecycle state.
func (e *Execution) State() State { return e.state }

// CurrentExercise returns the exercise at the cursor, or nil when no
// session is in progress.
func (e *Execution) CurrentExercise() *ExerciseProgress {
	if e.state != InProgress {
		return nil
	}
	return &e.exercises[e.current]
}

// LogSet appends a set to the current exercise. The exercise becomes
// completed once its logged-set count reaches the target; further calls
// keep appending, there is no dedup by set number.
func (e *Execution) LogSet(reps int, weight float64) error {
	if e.state != InProgress {
		return storeErrors.E(opLogSet, component, storeErrors.KindValidation,
			"no session in progress")
	}
	ex := &e.exercises[e.current]
	ex.Sets = append(ex.Sets, SetLog{
		SetNumber: len(ex.Sets) + 1,
		Reps:      reps,
		Weight:    weight,
		Timestamp: e.now(),
	})
	if len(ex.Sets) >= ex.TargetSets {
		ex.Completed = true
	}
	return nil
}

// NextExercise advances the cursor and returns the new current exercise,
// or nil when already at the last exercise.
func (e *Execution) NextExercise() *ExerciseProgress {
	if e.state != InProgress || e.current >= len(e.exercises)-1 {
		return nil
	}
	e.current++
	return &e.exercises[e.current]
}

// PreviousExercise moves the cursor back and returns the new current
// exercise, or nil when already at the first exercise.
func (e *Execution) PreviousExercise() *ExerciseProgress {
	if e.state != InProgress || e.current == 0 {
		return nil
	}
	e.current--
	return &e.exercises[e.current]
}

// SkipExercise marks the current exercise skipped, distinct from
// completed, and advances the cursor when possible.
func (e *Execution) SkipExercise() error {
	if e.state != InProgress {
		return storeErrors.E(opLogSet, component, storeErrors.KindValidation,
			"no session in progress")
	}
	e.exercises[e.current].Skipped = true
	e.NextExercise()
	return nil
}

// IsWorkoutComplete reports whether every exercise is completed or skipped.
func (e *Execution) IsWorkoutComplete() bool {
	if e.state != InProgress {
		return false
	}
	for _, ex := range e.exercises {
		if !ex.Completed && !ex.Skipped {
			return false
		}
	}
	return true
}

// FinishSession stamps the end time, computes the summary and persists it
// as one history record. If the write fails the session state is retained
// so the caller can retry without re-entering sets; it is cleared only on
// success.
func (e *Execution) FinishSession(ctx context.Context, userID string) (*Summary, error) {
	if e.state != InProgress {
		return nil, storeErrors.E(opFinish, component, storeErrors.KindValidation,
			"no session in progress")
	}

	end := e.now()
	summary := &Summary{
		WorkoutID:       e.workout.ID,
		WorkoutName:     e.workout.Name,
		StartTime:       e.startTime,
		EndTime:         end,
		DurationMinutes: int(math.Round(end.Sub(e.startTime).Minutes())),
	}
	for _, ex := range e.exercises {
		summary.TotalSets += len(ex.Sets)
		for _, set := range ex.Sets {
			summary.TotalVolume += float64(set.Reps) * set.Weight
		}
	}

	if _, err := e.store.Add(ctx, record.History, e.sessionFields(userID, summary)); err != nil {
		wrapped := storeErrors.WrapOpComponent(err, opFinish, component)
		e.logger.LogError(ctx, wrapped, "session persist failed, keeping state for retry")
		return nil, wrapped
	}

	e.state = Finished
	e.exercises = nil
	return summary, nil
}

// CancelSession discards the session unconditionally without persisting.
func (e *Execution) CancelSession() {
	e.state = Cancelled
	e.exercises = nil
}

func (e *Execution) sessionFields(userID string, s *Summary) record.Record {
	exercises := make([]interface{}, 0, len(e.exercises))
	for _, ex := range e.exercises {
		sets := make([]interface{}, 0, len(ex.Sets))
		for _, set := range ex.Sets {
			sets = append(sets, map[string]interface{}{
				"setNumber": set.SetNumber,
				"reps":      set.Reps,
				"weight":    set.Weight,
				"timestamp": set.Timestamp.Format(time.RFC3339Nano),
			})
		}
		exercises = append(exercises, map[string]interface{}{
			"name":      ex.Name,
			"completed": ex.Completed,
			"skipped":   ex.Skipped,
			"sets":      sets,
		})
	}
	return record.Record{Fields: record.Fields{
		"userId":          userID,
		"workoutId":       s.WorkoutID,
		"workoutName":     s.WorkoutName,
		"date":            s.EndTime.Format("2006-01-02"),
		"startTime":       s.StartTime.Format(time.RFC3339Nano),
		"endTime":         s.EndTime.Format(time.RFC3339Nano),
		"durationMinutes": s.DurationMinutes,
		"totalSets":       s.TotalSets,
		"totalVolume":     s.TotalVolume,
		"exercises":       exercises,
	}}
}

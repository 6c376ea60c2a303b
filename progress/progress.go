// Package progress tracks body-measurement time series and progress photos
// and derives comparisons and chart series from them in memory.
package progress

import (
	"context"
	"sort"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opAddMeasurement = storeErrors.Operation("progress.AddMeasurement")
	opAddPhoto       = storeErrors.Operation("progress.AddPhoto")

	component = storeErrors.Component("progress")
)

const dayFormat = "2006-01-02"

// Records in the progress collection carry a kind discriminator:
// measurements and photos share the collection and its userId/date indexes.
const (
	kindMeasurement = "measurement"
	kindPhoto       = "photo"
)

// Measurement is one dated set of body metrics. Values is keyed by metric
// name ("weightKg", "bodyFatPct", "chestCm", ...); the set of metrics is
// not fixed.
type Measurement struct {
	ID     string
	UserID string
	Date   time.Time
	Values map[string]float64
	Notes  string
}

// Photo is one progress photo reference.
type Photo struct {
	ID     string
	UserID string
	Date   time.Time
	URL    string
	Notes  string
}

// Comparison holds the oldest and latest measurement inside a window and
// the per-metric deltas between them (latest minus oldest, only for
// metrics present in both).
type Comparison struct {
	Oldest *Measurement
	Latest *Measurement
	Deltas map[string]float64
}

// Point is one chart sample.
type Point struct {
	Date  time.Time
	Value float64
}

// Manager reads and writes the progress collection.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("progress")),
	}
}

// AddMeasurement appends a measurement to the user's series.
func (m *Manager) AddMeasurement(ctx context.Context, meas Measurement) (string, error) {
	if meas.UserID == "" || len(meas.Values) == 0 {
		return "", storeErrors.E(opAddMeasurement, component, storeErrors.KindValidation,
			"measurement requires a userId and at least one value")
	}
	date := meas.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	values := make(map[string]interface{}, len(meas.Values))
	for k, v := range meas.Values {
		values[k] = v
	}
	id, err := m.store.Add(ctx, record.Progress, record.Record{Fields: record.Fields{
		"kind":   kindMeasurement,
		"userId": meas.UserID,
		"date":   date.Format(dayFormat),
		"values": values,
		"notes":  meas.Notes,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opAddMeasurement, component)
	}
	return id, nil
}

// GetMeasurements returns the user's measurements, oldest first.
func (m *Manager) GetMeasurements(ctx context.Context, userID string) ([]Measurement, error) {
	recs, err := m.store.GetByIndex(ctx, record.Progress, "userId", userID)
	if err != nil {
		return nil, err
	}
	out := make([]Measurement, 0, len(recs))
	for _, rec := range recs {
		if rec.Fields.String("kind") != kindMeasurement {
			continue
		}
		out = append(out, measurementFromRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetComparison compares the latest measurement in [from, to] against the
// oldest. With fewer than two measurements in the window both pointers may
// be nil or equal and Deltas is empty.
func (m *Manager) GetComparison(ctx context.Context, userID string, from, to time.Time) (*Comparison, error) {
	all, err := m.GetMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	window := filterWindow(all, from, to)

	cmp := &Comparison{Deltas: map[string]float64{}}
	if len(window) == 0 {
		return cmp, nil
	}
	cmp.Oldest = &window[0]
	cmp.Latest = &window[len(window)-1]
	if len(window) < 2 {
		return cmp, nil
	}
	for metric, latest := range cmp.Latest.Values {
		if oldest, ok := cmp.Oldest.Values[metric]; ok {
			cmp.Deltas[metric] = latest - oldest
		}
	}
	return cmp, nil
}

// GetChartSeries returns the dated samples of one metric inside [from, to],
// oldest first. Measurements lacking the metric are skipped.
func (m *Manager) GetChartSeries(ctx context.Context, userID, metric string, from, to time.Time) ([]Point, error) {
	all, err := m.GetMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	var points []Point
	for _, meas := range filterWindow(all, from, to) {
		value, ok := meas.Values[metric]
		if !ok {
			continue
		}
		points = append(points, Point{Date: meas.Date, Value: value})
	}
	return points, nil
}

// AddPhoto stores a progress photo reference.
func (m *Manager) AddPhoto(ctx context.Context, p Photo) (string, error) {
	if p.UserID == "" || p.URL == "" {
		return "", storeErrors.E(opAddPhoto, component, storeErrors.KindValidation,
			"photo requires a userId and a url")
	}
	date := p.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	id, err := m.store.Add(ctx, record.Progress, record.Record{Fields: record.Fields{
		"kind":   kindPhoto,
		"userId": p.UserID,
		"date":   date.Format(dayFormat),
		"url":    p.URL,
		"notes":  p.Notes,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opAddPhoto, component)
	}
	return id, nil
}

// GetPhotos returns the user's photos, oldest first.
func (m *Manager) GetPhotos(ctx context.Context, userID string) ([]Photo, error) {
	recs, err := m.store.GetByIndex(ctx, record.Progress, "userId", userID)
	if err != nil {
		return nil, err
	}
	var out []Photo
	for _, rec := range recs {
		if rec.Fields.String("kind") != kindPhoto {
			continue
		}
		date, _ := time.Parse(dayFormat, rec.Fields.String("date"))
		out = append(out, Photo{
			ID:     rec.Key(),
			UserID: rec.Fields.String("userId"),
			Date:   date,
			URL:    rec.Fields.String("url"),
			Notes:  rec.Fields.String("notes"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DeletePhoto removes a photo reference. Absent ids are a no-op.
func (m *Manager) DeletePhoto(ctx context.Context, id string) error {
	return m.store.Delete(ctx, record.Progress, id)
}

func filterWindow(all []Measurement, from, to time.Time) []Measurement {
	var out []Measurement
	for _, meas := range all {
		if meas.Date.Before(from) || meas.Date.After(to) {
			continue
		}
		out = append(out, meas)
	}
	return out
}

func measurementFromRecord(rec record.Record) Measurement {
	date, _ := time.Parse(dayFormat, rec.Fields.String("date"))
	meas := Measurement{
		ID:     rec.Key(),
		UserID: rec.Fields.String("userId"),
		Date:   date,
		Values: map[string]float64{},
		Notes:  rec.Fields.String("notes"),
	}
	raw, _ := rec.Fields["values"].(map[string]interface{})
	values := record.Fields(raw)
	for metric := range raw {
		meas.Values[metric] = values.Float(metric)
	}
	return meas
}

package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/fitlocker/fitlocker/record"
)

// Exercises the indexed query path against a realistically sized and
// shaped data set.
func TestBulkInsertAndIndexedQueries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	faker := gofakeit.New(11)

	const users = 40
	perUser := map[string]int{}
	for i := 0; i < users; i++ {
		// Seeded emails are unique enough at this size; the suffix makes
		// it certain.
		email := fmt.Sprintf("%d.%s", i, faker.Email())
		userID, err := s.Add(ctx, record.Users, record.Record{Fields: record.Fields{
			"email": email,
			"name":  faker.Name(),
			"type":  "student",
		}})
		if err != nil {
			t.Fatalf("add user %d: %v", i, err)
		}

		workouts := faker.Number(0, 5)
		perUser[userID] = workouts
		for j := 0; j < workouts; j++ {
			_, err := s.Add(ctx, record.Workouts, record.Record{Fields: record.Fields{
				"userId": userID,
				"name":   fmt.Sprintf("%s day %d", faker.Adjective(), j+1),
			}})
			if err != nil {
				t.Fatalf("add workout: %v", err)
			}
		}
	}

	for userID, want := range perUser {
		got, err := s.GetByIndex(ctx, record.Workouts, "userId", userID)
		if err != nil {
			t.Fatalf("GetByIndex(%s): %v", userID, err)
		}
		if len(got) != want {
			t.Errorf("user %s: got %d workouts, want %d", userID, len(got), want)
		}
		for _, rec := range got {
			if rec.Fields.String("userId") != userID {
				t.Errorf("user %s: foreign record %d in result", userID, rec.ID)
			}
		}
	}

	all, err := s.GetAll(ctx, record.Users)
	if err != nil {
		t.Fatalf("GetAll users: %v", err)
	}
	if len(all) != users {
		t.Errorf("got %d users, want %d", len(all), users)
	}
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

func setupReminderTest(t *testing.T) (*ReminderStore, string, *model.ReminderList) {
	t.Helper()
	db := openTestDB(t)
	uid := createTestUser(t, db, "user-1")
	rs := NewReminderStore(db)
	list, err := rs.CreateList(context.Background(), uid, "Errands")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	return rs, uid, list
}

func timep(t time.Time) *time.Time { return &t }

func TestReminderListCRUD(t *testing.T) {
	rs, uid, list := setupReminderTest(t)
	ctx := context.Background()

	renamed, err := rs.RenameList(ctx, uid, list.ID, "Chores")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Chores" {
		t.Errorf("name = %q, want Chores", renamed.Name)
	}

	missing, err := rs.RenameList(ctx, uid, "nope", "x")
	if err != nil || missing != nil {
		t.Errorf("rename missing = %v, %v; want nil, nil", missing, err)
	}

	lists, _ := rs.ListLists(ctx, uid)
	if len(lists) != 1 {
		t.Fatalf("lists = %d, want 1", len(lists))
	}

	if ok, _ := rs.DeleteList(ctx, uid, list.ID); !ok {
		t.Error("delete should succeed")
	}
	if ok, _ := rs.DeleteList(ctx, uid, list.ID); ok {
		t.Error("second delete should report false")
	}
}

func TestCreateReminderForeignList(t *testing.T) {
	rs, _, list := setupReminderTest(t)

	_, err := rs.Create(context.Background(), "someone-else", list.ID, "x", nil, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReminderListOrdering(t *testing.T) {
	rs, uid, list := setupReminderTest(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	rs.Create(ctx, uid, list.ID, "undated", nil, 1)
	rs.Create(ctx, uid, list.ID, "later", timep(day.AddDate(0, 0, 2)), 2)
	rs.Create(ctx, uid, list.ID, "sooner", timep(day), 3)

	items, err := rs.List(ctx, uid, list.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, r := range items {
		got = append(got, r.Title)
	}
	want := []string{"sooner", "later", "undated"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestUpdateReminder(t *testing.T) {
	rs, uid, list := setupReminderTest(t)
	ctx := context.Background()

	r, _ := rs.Create(ctx, uid, list.ID, "Call mom", timep(time.Now()), 1)

	done := true
	updated, err := rs.Update(ctx, uid, r.ID, model.ReminderPatch{
		Completed: &done,
		DueDate:   model.OptionalTime{Set: true},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed {
		t.Error("expected completed")
	}
	if updated.DueDate != nil {
		t.Errorf("due_date = %v, want nil", updated.DueDate)
	}
	if updated.Title != "Call mom" {
		t.Errorf("title = %q, want unchanged", updated.Title)
	}

	missing, err := rs.Update(ctx, uid, "nope", model.ReminderPatch{Completed: &done})
	if err != nil || missing != nil {
		t.Errorf("update missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestListDueBetween(t *testing.T) {
	db := openTestDB(t)
	u1 := createTestUser(t, db, "user-1")
	u2 := createTestUser(t, db, "user-2")
	rs := NewReminderStore(db)
	ctx := context.Background()
	l1, _ := rs.CreateList(ctx, u1, "a")
	l2, _ := rs.CreateList(ctx, u2, "b")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in1, _ := rs.Create(ctx, u1, l1.ID, "in window", timep(now.Add(30*time.Minute)), 1)
	in2, _ := rs.Create(ctx, u2, l2.ID, "other user", timep(now.Add(59*time.Minute)), 1)
	rs.Create(ctx, u1, l1.ID, "too late", timep(now.Add(2*time.Hour)), 1)
	rs.Create(ctx, u1, l1.ID, "past", timep(now.Add(-time.Minute)), 1)
	rs.Create(ctx, u1, l1.ID, "undated", nil, 1)
	done, _ := rs.Create(ctx, u1, l1.ID, "done", timep(now.Add(10*time.Minute)), 1)
	yes := true
	rs.Update(ctx, u1, done.ID, model.ReminderPatch{Completed: &yes})

	due, err := rs.ListDueBetween(ctx, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("list due between: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(due), due)
	}
	if due[0].ID != in1.ID || due[1].ID != in2.ID {
		t.Errorf("got %s, %s; want %s, %s", due[0].Title, due[1].Title, in1.Title, in2.Title)
	}
}

func TestDeleteListCascadesReminders(t *testing.T) {
	rs, uid, list := setupReminderTest(t)
	ctx := context.Background()

	r, _ := rs.Create(ctx, uid, list.ID, "x", nil, 1)
	rs.DeleteList(ctx, uid, list.ID)

	got, err := rs.GetByID(ctx, uid, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("reminder should be deleted with its list")
	}
}

package services

import (
	"context"
	"testing"

	"github.com/guitarprime/api/model"
)

func TestModuleListGuestSeesOnlyFree(t *testing.T) {
	db := newTestDB(t)
	svc := NewModuleService(db, nil)
	coach := createUser(t, db, model.RoleCoach)

	createModule(t, db, &coach.ID, true, nil)
	createModule(t, db, &coach.ID, false, priceMinor(4999))

	modules, err := svc.List(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("guest should see 1 free module, got %d", len(modules))
	}
	if !modules[0].IsFree() {
		t.Errorf("guest list returned a paid module")
	}

	student := createUser(t, db, model.RoleStudent)
	modules, err = svc.List(context.Background(), student, "")
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(modules) != 2 {
		t.Errorf("student should browse the full catalog, got %d modules", len(modules))
	}
}

func TestModuleListSearch(t *testing.T) {
	db := newTestDB(t)
	svc := NewModuleService(db, nil)
	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)

	sweep := createModule(t, db, &coach.ID, true, nil)
	if err := db.Model(sweep).Update("title", "Sweep Picking Basics").Error; err != nil {
		t.Fatalf("update title: %v", err)
	}
	other := createModule(t, db, &coach.ID, true, nil)
	if err := db.Model(other).Update("title", "Open Chords").Error; err != nil {
		t.Fatalf("update title: %v", err)
	}

	modules, err := svc.List(context.Background(), student, "sweep")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(modules) != 1 || modules[0].ID != sweep.ID {
		t.Fatalf("case-insensitive title search should match exactly the sweep module, got %d results", len(modules))
	}

	modules, err = svc.List(context.Background(), student, "tapping")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("unmatched search should return no modules, got %d", len(modules))
	}
}

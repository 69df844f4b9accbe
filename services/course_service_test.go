package services

import (
	"context"
	"errors"
	"testing"

	"github.com/guitarprime/api/model"
)

func TestCourseVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db)
	ctx := context.Background()

	admin := createUser(t, db, model.RoleAdmin)
	coach := createUser(t, db, model.RoleCoach)
	otherCoach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)

	approved := createCourse(t, db, coach.ID, true, priceMinor(9999))
	draft := createCourse(t, db, coach.ID, false, priceMinor(9999))

	count := func(user *model.User) int {
		courses, err := svc.List(ctx, user, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		return len(courses)
	}
	if got := count(admin); got != 2 {
		t.Errorf("admin sees %d courses, want 2", got)
	}
	if got := count(coach); got != 2 {
		t.Errorf("owning coach sees %d courses, want 2", got)
	}
	if got := count(otherCoach); got != 1 {
		t.Errorf("other coach sees %d courses, want 1", got)
	}
	if got := count(student); got != 1 {
		t.Errorf("student sees %d courses, want 1", got)
	}
	if got := count(nil); got != 1 {
		t.Errorf("guest sees %d courses, want 1", got)
	}

	// drafts are forbidden, not missing, for users who can list courses
	if _, err := svc.Get(ctx, student, draft.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("student draft access: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, coach, draft.ID); err != nil {
		t.Errorf("owner draft access: %v", err)
	}
	if _, err := svc.Get(ctx, otherCoach, approved.ID); err != nil {
		t.Errorf("approved course for other coach: %v", err)
	}
}

func TestCourseApprove(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db)
	ctx := context.Background()

	admin := createUser(t, db, model.RoleAdmin)
	coach := createUser(t, db, model.RoleCoach)
	draft := createCourse(t, db, coach.ID, false, priceMinor(9999))

	if _, err := svc.Approve(ctx, coach, draft.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("coach self-approval: err = %v, want ErrForbidden", err)
	}

	course, err := svc.Approve(ctx, admin, draft.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !course.IsApproved {
		t.Error("course should be approved")
	}
}

func TestCourseDeleteRules(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db)
	ctx := context.Background()

	admin := createUser(t, db, model.RoleAdmin)
	coach := createUser(t, db, model.RoleCoach)

	draft := createCourse(t, db, coach.ID, false, priceMinor(9999))
	approved := createCourse(t, db, coach.ID, true, priceMinor(9999))

	if err := svc.Delete(ctx, coach, approved.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("coach deleting approved course: err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, coach, draft.ID); err != nil {
		t.Errorf("coach deleting own draft: %v", err)
	}
	if err := svc.Delete(ctx, admin, approved.ID); err != nil {
		t.Errorf("admin deleting approved course: %v", err)
	}
}

func TestSyncModules(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)
	course := createCourse(t, db, coach.ID, true, priceMinor(9999))

	a := createModule(t, db, &coach.ID, true, nil)
	b := createModule(t, db, &coach.ID, true, nil)
	c := createModule(t, db, &coach.ID, true, nil)

	modules, err := svc.SyncModules(ctx, coach, course.ID, []uint{a.ID, b.ID, c.ID})
	if err != nil {
		t.Fatalf("SyncModules: %v", err)
	}
	if len(modules) != 3 {
		t.Fatalf("modules = %d, want 3", len(modules))
	}

	var pivots []model.CourseModule
	db.Where("course_id = ?", course.ID).Order("sort_order ASC").Find(&pivots)
	for i, pivot := range pivots {
		if pivot.Order != i+1 {
			t.Errorf("pivot %d order = %d, want %d", i, pivot.Order, i+1)
		}
	}

	// re-sync with a shorter, reordered list: b dropped, c before a
	modules, err = svc.SyncModules(ctx, coach, course.ID, []uint{c.ID, a.ID})
	if err != nil {
		t.Fatalf("re-sync: %v", err)
	}
	if len(modules) != 2 {
		t.Fatalf("modules after re-sync = %d, want 2", len(modules))
	}
	if modules[0].ID != c.ID || modules[1].ID != a.ID {
		t.Errorf("order = [%d %d], want [%d %d]", modules[0].ID, modules[1].ID, c.ID, a.ID)
	}
	var count int64
	db.Model(&model.CourseModule{}).Where("course_id = ?", course.ID).Count(&count)
	if count != 2 {
		t.Errorf("pivot rows = %d, want 2 (unlisted module detached)", count)
	}

	// a missing module id aborts the whole sync, leaving the old order intact
	if _, err := svc.SyncModules(ctx, coach, course.ID, []uint{a.ID, 99999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("sync with missing module: err = %v, want ErrNotFound", err)
	}
	db.Model(&model.CourseModule{}).Where("course_id = ?", course.ID).Count(&count)
	if count != 2 {
		t.Errorf("pivot rows after failed sync = %d, want 2 (atomic rollback)", count)
	}

	if _, err := svc.SyncModules(ctx, student, course.ID, []uint{a.ID}); !errors.Is(err, ErrForbidden) {
		t.Errorf("student sync: err = %v, want ErrForbidden", err)
	}
}

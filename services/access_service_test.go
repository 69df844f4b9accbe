package services

import (
	"context"
	"testing"

	"github.com/guitarprime/api/model"
)

func TestCanAccessCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db)
	ctx := context.Background()

	admin := createUser(t, db, model.RoleAdmin)
	coach := createUser(t, db, model.RoleCoach)
	otherCoach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)
	buyer := createUser(t, db, model.RoleStudent)

	paid := createCourse(t, db, coach.ID, true, priceMinor(9999))
	free := createCourse(t, db, coach.ID, true, nil)
	completePurchase(t, db, buyer.ID, model.PurchasableCourse, paid.ID)

	cases := []struct {
		name   string
		user   *model.User
		course *model.Course
		want   bool
	}{
		{"admin always", admin, paid, true},
		{"free course guest", nil, free, true},
		{"free course student", student, free, true},
		{"owning coach", coach, paid, true},
		{"other coach no purchase", otherCoach, paid, false},
		{"student no purchase", student, paid, false},
		{"student with completed purchase", buyer, paid, true},
		{"guest paid course", nil, paid, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanAccessCourse(ctx, tc.user, tc.course)
			if err != nil {
				t.Fatalf("CanAccessCourse: %v", err)
			}
			if got != tc.want {
				t.Errorf("CanAccessCourse = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanAccessCoursePendingPurchaseDoesNotGrant(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)
	course := createCourse(t, db, coach.ID, true, priceMinor(9999))

	for _, status := range []model.PurchaseStatus{model.StatusPending, model.StatusFailed, model.StatusCancelled} {
		p := &model.Purchase{
			UserID:          student.ID,
			PurchasableType: model.PurchasableCourse,
			PurchasableID:   course.ID,
			Amount:          99.99,
			PaymentProvider: model.ProviderStripe,
			Status:          status,
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create %s purchase: %v", status, err)
		}
	}

	got, err := svc.CanAccessCourse(ctx, student, course)
	if err != nil {
		t.Fatalf("CanAccessCourse: %v", err)
	}
	if got {
		t.Error("non-completed purchases must not grant access")
	}
}

func TestCanAccessModule(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db)
	ctx := context.Background()

	admin := createUser(t, db, model.RoleAdmin)
	coach := createUser(t, db, model.RoleCoach)
	courseOwner := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)
	directBuyer := createUser(t, db, model.RoleStudent)
	courseBuyer := createUser(t, db, model.RoleStudent)

	paidModule := createModule(t, db, &coach.ID, false, priceMinor(4999))
	freeModule := createModule(t, db, nil, true, nil)

	// paidModule sits inside a paid course owned by courseOwner
	course := createCourse(t, db, courseOwner.ID, true, priceMinor(9999))
	attachModule(t, db, course.ID, paidModule.ID, 1)

	completePurchase(t, db, directBuyer.ID, model.PurchasableModule, paidModule.ID)
	completePurchase(t, db, courseBuyer.ID, model.PurchasableCourse, course.ID)

	cases := []struct {
		name string
		user *model.User
		mod  *model.Module
		want bool
	}{
		{"admin always", admin, paidModule, true},
		{"guest free module", nil, freeModule, true},
		{"guest paid module", nil, paidModule, false},
		{"student free module", student, freeModule, true},
		{"student paid module no purchase", student, paidModule, false},
		{"module author", coach, paidModule, true},
		{"coach owning containing course", courseOwner, paidModule, true},
		{"direct module purchase", directBuyer, paidModule, true},
		{"purchase of containing course", courseBuyer, paidModule, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanAccessModule(ctx, tc.user, tc.mod)
			if err != nil {
				t.Fatalf("CanAccessModule: %v", err)
			}
			if got != tc.want {
				t.Errorf("CanAccessModule = %v, want %v", got, tc.want)
			}
		})
	}
}

// A free module stays free even when every course containing it is paid.
func TestFreeModuleInsidePaidCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)

	course := createCourse(t, db, coach.ID, true, priceMinor(9999))
	freeModule := createModule(t, db, nil, true, nil)
	attachModule(t, db, course.ID, freeModule.ID, 1)

	got, err := svc.CanAccessModule(ctx, student, freeModule)
	if err != nil {
		t.Fatalf("CanAccessModule: %v", err)
	}
	if !got {
		t.Error("free module must be accessible without any purchase")
	}

	// the paid course around it is still locked
	gotCourse, err := svc.CanAccessCourse(ctx, student, course)
	if err != nil {
		t.Fatalf("CanAccessCourse: %v", err)
	}
	if gotCourse {
		t.Error("paid course must stay locked")
	}
}

// A zero or missing price means free regardless of the is_free flag.
func TestPriceFallbackMeansFree(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)

	zeroPrice := createCourse(t, db, coach.ID, true, priceMinor(0))
	nilPrice := createCourse(t, db, coach.ID, true, nil)

	for _, course := range []*model.Course{zeroPrice, nilPrice} {
		got, err := svc.CanAccessCourse(ctx, student, course)
		if err != nil {
			t.Fatalf("CanAccessCourse: %v", err)
		}
		if !got {
			t.Errorf("course with price %v should be free", course.Price)
		}
	}
}

package services

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guitarprime/api/database"
	"github.com/guitarprime/api/model"
)

// newTestDB opens an isolated sqlite database with the full schema, including
// the partial unique index on completed purchases.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.JWTTokenBlacklist{},
		&model.Theme{},
		&model.Course{},
		&model.Module{},
		&model.CourseModule{},
		&model.Attachment{},
		&model.Purchase{},
		&model.PurchaseEvent{},
		&model.CronJobLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.Constraints(db); err != nil {
		t.Fatalf("constraints: %v", err)
	}
	return db
}

// userSeq keeps generated emails unique under the index even when a test
// creates several users of the same role.
var userSeq atomic.Int64

// themeSeq does the same for theme names, which carry a unique index too.
var themeSeq atomic.Int64

func createUser(t *testing.T, db *gorm.DB, role model.Role) *model.User {
	t.Helper()
	user := &model.User{
		Email:        fmt.Sprintf("%s-%d-%s@example.com", role, userSeq.Add(1), filepath.Base(t.Name())),
		PasswordHash: "x",
		Name:         string(role),
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func priceMinor(v int64) *int64 { return &v }

func createTheme(t *testing.T, db *gorm.DB) *model.Theme {
	t.Helper()
	theme := &model.Theme{Name: fmt.Sprintf("Blues %d %s", themeSeq.Add(1), t.Name())}
	if err := db.Create(theme).Error; err != nil {
		t.Fatalf("create theme: %v", err)
	}
	return theme
}

func createCourse(t *testing.T, db *gorm.DB, coachID uint, approved bool, price *int64) *model.Course {
	t.Helper()
	theme := createTheme(t, db)
	course := &model.Course{
		ThemeID:    theme.ID,
		CoachID:    coachID,
		Title:      "Course",
		IsApproved: approved,
		Price:      price,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	return course
}

func createModule(t *testing.T, db *gorm.DB, coachID *uint, free bool, price *int64) *model.Module {
	t.Helper()
	mod := &model.Module{
		CoachID:    coachID,
		Title:      "Module",
		Difficulty: model.DifficultyEasy,
		IsFreeFlag: free,
		Price:      price,
	}
	if err := db.Create(mod).Error; err != nil {
		t.Fatalf("create module: %v", err)
	}
	return mod
}

func attachModule(t *testing.T, db *gorm.DB, courseID, moduleID uint, order int) {
	t.Helper()
	pivot := &model.CourseModule{CourseID: courseID, ModuleID: moduleID, Order: order}
	if err := db.Create(pivot).Error; err != nil {
		t.Fatalf("attach module: %v", err)
	}
}

func completePurchase(t *testing.T, db *gorm.DB, userID uint, kind model.PurchasableKind, id uint) *model.Purchase {
	t.Helper()
	purchase := &model.Purchase{
		UserID:          userID,
		PurchasableType: kind,
		PurchasableID:   id,
		Amount:          99.99,
		Currency:        "USD",
		PaymentProvider: model.ProviderStripe,
		Status:          model.StatusCompleted,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("create completed purchase: %v", err)
	}
	return purchase
}

package course

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{}, &model.Theme{}, &model.Course{}, &model.Module{},
		&model.CourseModule{}, &model.Purchase{}, &model.PurchaseEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// The course's module listing is catalog data. The video URL is protected
// payload that only the entitlement-checked module endpoint may return, so it
// must never appear in the listing, paywall or not.
func TestCourseModulesListingHidesVideoURL(t *testing.T) {
	db := newTestDB(t)

	price := int64(9999)
	course := &model.Course{ThemeID: 1, CoachID: 1, Title: "Advanced Bends", IsApproved: true, Price: &price}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	mod := &model.Module{Title: "Bend Vibrato", Difficulty: model.DifficultyHard, VideoURL: "https://vimeo.com/secret-lesson", Price: &price}
	if err := db.Create(mod).Error; err != nil {
		t.Fatalf("create module: %v", err)
	}
	pivot := &model.CourseModule{CourseID: course.ID, ModuleID: mod.ID, Order: 1}
	if err := db.Create(pivot).Error; err != nil {
		t.Fatalf("create pivot: %v", err)
	}

	handler := NewCourseHandler(services.NewCourseService(db), services.NewAccessService(db))
	app := fiber.New()
	app.Get("/api/v1/courses/:id/modules", handler.Modules)

	// guest request: no auth middleware, no user in locals
	req := httptest.NewRequest("GET", "/api/v1/courses/1/modules", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if !strings.Contains(string(body), "Bend Vibrato") {
		t.Errorf("listing should include module metadata, got %s", body)
	}
	if strings.Contains(string(body), "vimeo.com") || strings.Contains(string(body), "video_url") {
		t.Errorf("listing leaked the protected video URL: %s", body)
	}
}

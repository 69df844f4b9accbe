package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/guitarprime/api/model"
)

// fakeDisk keeps objects in memory and can be told to fail deletes, to prove
// a storage failure never blocks record deletion.
type fakeDisk struct {
	objects   map[string][]byte
	deleteErr error
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{objects: map[string][]byte{}}
}

func (d *fakeDisk) Name() string { return "fake" }

func (d *fakeDisk) Store(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	d.objects[key] = b
	return nil
}

func (d *fakeDisk) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := d.objects[key]
	return ok, nil
}

func (d *fakeDisk) Download(ctx context.Context, key string) ([]byte, error) {
	b, ok := d.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return b, nil
}

func (d *fakeDisk) Delete(ctx context.Context, key string) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	delete(d.objects, key)
	return nil
}

func TestAttachmentUpload(t *testing.T) {
	db := newTestDB(t)
	disk := newFakeDisk()
	svc := NewAttachmentService(db, disk)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	student := createUser(t, db, model.RoleStudent)
	mod := createModule(t, db, &coach.ID, true, nil)

	att, err := svc.Upload(ctx, coach, mod.ID, "Practice sheet", "../../etc/passwd scales.pdf", strings.NewReader("notes"), 5)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if att.Filename == "scales.pdf" || !strings.HasSuffix(att.Filename, ".pdf") {
		t.Errorf("filename = %q, want generated name keeping only the extension", att.Filename)
	}
	if att.MimeType != "application/pdf" {
		t.Errorf("mime = %q, want application/pdf", att.MimeType)
	}
	if att.Disk != "fake" {
		t.Errorf("disk = %q, want fake", att.Disk)
	}
	if exists, _ := disk.Exists(ctx, att.Path); !exists {
		t.Error("object should exist on disk")
	}

	if _, err := svc.Upload(ctx, student, mod.ID, "x", "x.pdf", strings.NewReader("x"), 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("student upload: err = %v, want ErrForbidden", err)
	}

	dl, _, err := svc.Fetch(ctx, att.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(dl.Data) != "notes" {
		t.Errorf("data = %q", dl.Data)
	}
	if dl.Name != "Practice sheet.pdf" {
		t.Errorf("download name = %q", dl.Name)
	}
}

func TestAttachmentRenameKeepsObject(t *testing.T) {
	db := newTestDB(t)
	disk := newFakeDisk()
	svc := NewAttachmentService(db, disk)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	mod := createModule(t, db, &coach.ID, true, nil)
	att, err := svc.Upload(ctx, coach, mod.ID, "Before", "sheet.pdf", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	renamed, err := svc.Rename(ctx, coach, att.ID, "After")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != "After" {
		t.Errorf("name = %q, want After", renamed.Name)
	}
	if renamed.Filename != att.Filename || renamed.Path != att.Path {
		t.Error("rename must not touch the stored object")
	}
}

func TestAttachmentDeleteStorageFailureNotFatal(t *testing.T) {
	db := newTestDB(t)
	disk := newFakeDisk()
	svc := NewAttachmentService(db, disk)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	mod := createModule(t, db, &coach.ID, true, nil)
	att, err := svc.Upload(ctx, coach, mod.ID, "Doomed", "x.pdf", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	disk.deleteErr = errors.New("storage unreachable")
	if err := svc.Delete(ctx, coach, att.ID); err != nil {
		t.Fatalf("Delete with broken storage: %v", err)
	}

	var count int64
	db.Model(&model.Attachment{}).Where("id = ?", att.ID).Count(&count)
	if count != 0 {
		t.Error("attachment record should be gone despite storage failure")
	}
}

func TestModuleDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	disk := newFakeDisk()
	attachments := NewAttachmentService(db, disk)
	modules := NewModuleService(db, disk)
	ctx := context.Background()

	coach := createUser(t, db, model.RoleCoach)
	mod := createModule(t, db, &coach.ID, true, nil)
	course := createCourse(t, db, coach.ID, true, nil)
	attachModule(t, db, course.ID, mod.ID, 1)

	att, err := attachments.Upload(ctx, coach, mod.ID, "Sheet", "sheet.pdf", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	// simulate an object that already vanished from storage
	delete(disk.objects, att.Path)

	if err := modules.Delete(ctx, coach, mod.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var count int64
	db.Model(&model.Attachment{}).Where("module_id = ?", mod.ID).Count(&count)
	if count != 0 {
		t.Error("attachment rows should cascade with the module")
	}
	db.Model(&model.CourseModule{}).Where("module_id = ?", mod.ID).Count(&count)
	if count != 0 {
		t.Error("pivot rows should cascade with the module")
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/policy"
	"github.com/guitarprime/api/services/storage"
)

// AttachmentService manages module attachments on the private disk. Storage
// filenames are uuid-based so user-supplied names never leak into object keys
// and renames never touch storage.
type AttachmentService struct {
	db   *gorm.DB
	disk storage.Disk
}

func NewAttachmentService(db *gorm.DB, disk storage.Disk) *AttachmentService {
	return &AttachmentService{db: db, disk: disk}
}

// Download is the attachment payload plus the headers a handler needs to
// serve it.
type Download struct {
	Name     string
	MimeType string
	Data     []byte
}

func (s *AttachmentService) loadModule(ctx context.Context, moduleID uint) (*model.Module, error) {
	var mod model.Module
	err := s.db.WithContext(ctx).First(&mod, moduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	return &mod, nil
}

// Upload stores the file under a generated key and records the attachment.
// Mutating attachments follows the module's update policy.
func (s *AttachmentService) Upload(ctx context.Context, user *model.User, moduleID uint, name, originalFilename string, data io.Reader, size int64) (*model.Attachment, error) {
	mod, err := s.loadModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !policy.ModuleUpdate(user, mod) {
		return nil, ErrForbidden
	}

	filename := uuid.NewString() + filepath.Ext(originalFilename)
	path := fmt.Sprintf("attachments/%d/%s", moduleID, filename)
	mimeType := storage.ContentType(originalFilename)

	if err := s.disk.Store(ctx, path, data, size, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	attachment := &model.Attachment{
		ModuleID: moduleID,
		Name:     name,
		Filename: filename,
		Disk:     s.disk.Name(),
		Path:     path,
		Size:     size,
		MimeType: mimeType,
	}
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		// The record is the source of truth; clean the orphaned object up.
		if derr := s.disk.Delete(ctx, path); derr != nil {
			log.Printf("[WARN] failed to remove orphaned object %s: %v", path, derr)
		}
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}
	return attachment, nil
}

// Rename updates the logical name only; the stored object stays put.
func (s *AttachmentService) Rename(ctx context.Context, user *model.User, id uint, name string) (*model.Attachment, error) {
	attachment, mod, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.ModuleUpdate(user, mod) {
		return nil, ErrForbidden
	}
	if err := s.db.WithContext(ctx).Model(attachment).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("failed to rename attachment: %w", err)
	}
	return attachment, nil
}

// Delete removes the database record and the stored object. A failed
// storage delete is logged but never blocks record deletion.
func (s *AttachmentService) Delete(ctx context.Context, user *model.User, id uint) error {
	attachment, mod, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !policy.ModuleUpdate(user, mod) {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(attachment).Error; err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if err := s.disk.Delete(ctx, attachment.Path); err != nil {
		log.Printf("[WARN] failed to remove stored object %s for attachment %d: %v", attachment.Path, attachment.ID, err)
	}
	return nil
}

// Describe returns the attachment record and its owning module without
// touching storage, so entitlement can be checked before any bytes move.
func (s *AttachmentService) Describe(ctx context.Context, id uint) (*model.Attachment, *model.Module, error) {
	return s.get(ctx, id)
}

// Fetch reads the attachment payload for an entitled caller. Entitlement is
// the caller's responsibility (the handler runs the access check first).
func (s *AttachmentService) Fetch(ctx context.Context, id uint) (*Download, *model.Module, error) {
	attachment, mod, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.disk.Download(ctx, attachment.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return &Download{
		Name:     attachment.Name + filepath.Ext(attachment.Filename),
		MimeType: attachment.MimeType,
		Data:     data,
	}, mod, nil
}

func (s *AttachmentService) get(ctx context.Context, id uint) (*model.Attachment, *model.Module, error) {
	var attachment model.Attachment
	err := s.db.WithContext(ctx).First(&attachment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load attachment: %w", err)
	}
	mod, err := s.loadModule(ctx, attachment.ModuleID)
	if err != nil {
		return nil, nil, err
	}
	return &attachment, mod, nil
}

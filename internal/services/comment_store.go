package services

import (
	"context"
	"errors"

	"bookden/internal/db"
	"bookden/internal/models"

	"gorm.io/gorm"
)

// GormCommentStore 基于 gorm/postgres 的 CommentStore 实现
type GormCommentStore struct{}

func NewGormCommentStore() *GormCommentStore {
	return &GormCommentStore{}
}

func (s *GormCommentStore) Insert(ctx context.Context, comment *models.Comment) error {
	return db.DB.WithContext(ctx).Create(comment).Error
}

func (s *GormCommentStore) Get(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := db.DB.WithContext(ctx).First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *GormCommentStore) ListRoots(ctx context.Context, bookID uint, page, pageSize int) ([]models.Comment, int64, error) {
	var total int64
	if err := db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("book_id = ? AND parent_id IS NULL", bookID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := db.DB.WithContext(ctx).
		Where("book_id = ? AND parent_id IS NULL", bookID).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&comments).Error
	return comments, total, err
}

func (s *GormCommentStore) ListChildren(ctx context.Context, parentID uint, page, pageSize int) ([]models.Comment, int64, error) {
	var total int64
	if err := db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_id = ?", parentID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := db.DB.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&comments).Error
	return comments, total, err
}

func (s *GormCommentStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// DeleteCascade 在单个事务里逐层收集后代 ID 后统一删除，
// 保证"父删子留"的半截状态不会出现
func (s *GormCommentStore) DeleteCascade(ctx context.Context, id uint) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := collectSubtreeIDs(tx, id)
		if err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
}

// collectSubtreeIDs 广度优先收集 id 及其全部后代
func collectSubtreeIDs(tx *gorm.DB, id uint) ([]uint, error) {
	all := []uint{id}
	frontier := []uint{id}
	for len(frontier) > 0 {
		var next []uint
		if err := tx.Model(&models.Comment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &next).Error; err != nil {
			return nil, err
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

func (s *GormCommentStore) CountDescendants(ctx context.Context, id uint) (int64, error) {
	ids, err := collectSubtreeIDs(db.DB.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	// 减去自身
	return int64(len(ids) - 1), nil
}

func (s *GormCommentStore) CountRoots(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("book_id = ? AND parent_id IS NULL", bookID).
		Count(&count).Error
	return count, err
}

func (s *GormCommentStore) CountChildren(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count, err
}

func (s *GormCommentStore) CountByBook(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("book_id = ?", bookID).
		Count(&count).Error
	return count, err
}

func (s *GormCommentStore) BookExists(ctx context.Context, bookID uint) (bool, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", bookID).
		Count(&count).Error
	return count > 0, err
}

// GormUserDirectory 基于用户表的 UserDirectory 实现
type GormUserDirectory struct{}

func NewGormUserDirectory() *GormUserDirectory {
	return &GormUserDirectory{}
}

func (d *GormUserDirectory) DisplayName(ctx context.Context, userID uint) (string, error) {
	var user models.User
	err := db.DB.WithContext(ctx).Select("username").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 用户可能已注销，展示占位名而不是报错
		return "已注销用户", nil
	}
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (d *GormUserDirectory) Role(ctx context.Context, userID uint) (string, error) {
	var user models.User
	err := db.DB.WithContext(ctx).Select("role").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "user", nil
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

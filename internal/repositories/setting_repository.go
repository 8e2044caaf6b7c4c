package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sona/internal/models"
)

type SettingRepository interface {
	List(ctx context.Context) ([]models.SettingRow, error)
	Upsert(ctx context.Context, rows []models.SettingRow) error
	// Replace deletes every row and writes rows in one transaction.
	Replace(ctx context.Context, rows []models.SettingRow) error
}

type settingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) List(ctx context.Context) ([]models.SettingRow, error) {
	var rows []models.SettingRow
	if err := r.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	return rows, nil
}

func (r *settingRepository) Upsert(ctx context.Context, rows []models.SettingRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}
	return nil
}

func (r *settingRepository) Replace(ctx context.Context, rows []models.SettingRow) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.SettingRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replacing settings: %w", err)
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recipebox/models"
)

// GormStore is an scs.CtxStore that keeps session payloads in the auth_tokens table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore returns a store backed by db. The auth_tokens table must exist.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// FindCtx returns the payload for token. Expired rows are reported as missing.
func (s *GormStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var row models.AuthToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !row.Expiry.After(s.now()) {
		return nil, false, nil
	}
	return row.Data, true, nil
}

// CommitCtx inserts or replaces the payload for token.
func (s *GormStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	row := models.AuthToken{Token: token, Data: b, Expiry: expiry.UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expiry"}),
	}).Create(&row).Error
}

// DeleteCtx removes token. Deleting an unknown token is not an error.
func (s *GormStore) DeleteCtx(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.AuthToken{}).Error
}

func (s *GormStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *GormStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *GormStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expiry <= ?", s.now().UTC()).Delete(&models.AuthToken{})
	return result.RowsAffected, result.Error
}

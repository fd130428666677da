package repository

import (
	"errors"
	"time"

	"github.com/taxdesk/taxdesk/internal/domain"

	"gorm.io/gorm"
)

// masterRow pins the single master credential to a fixed primary key so the
// one-master invariant holds at the schema level too.
type masterRow struct {
	ID                uint `gorm:"primaryKey"`
	domain.Credential `gorm:"embedded"`
}

func (masterRow) TableName() string { return "master_credential" }

// Migrate creates the sqlite schema for both stores.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&masterRow{},
		&domain.ClientAccount{},
		&domain.Session{},
	)
}

// GormCredentialStore is the sqlite-backed CredentialStore.
type GormCredentialStore struct{ db *gorm.DB }

func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

func (r *GormCredentialStore) GetMaster() (*domain.Credential, error) {
	var row masterRow
	if err := r.db.First(&row, 1).Error; err != nil {
		return nil, translate(err)
	}
	return &row.Credential, nil
}

func (r *GormCredentialStore) SaveMaster(c *domain.Credential) error {
	row := masterRow{ID: 1, Credential: *c}
	return r.db.Save(&row).Error
}

func (r *GormCredentialStore) GetClient(id string) (*domain.ClientAccount, error) {
	var client domain.ClientAccount
	if err := r.db.First(&client, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *GormCredentialStore) GetClientByEmail(email string) (*domain.ClientAccount, error) {
	var client domain.ClientAccount
	if err := r.db.First(&client, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *GormCredentialStore) ListClients() ([]*domain.ClientAccount, error) {
	var clients []*domain.ClientAccount
	if err := r.db.Order("created_at").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *GormCredentialStore) SaveClient(c *domain.ClientAccount) error {
	return r.db.Save(c).Error
}

func (r *GormCredentialStore) DeleteClient(id string) error {
	res := r.db.Delete(&domain.ClientAccount{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GormSessionStore is the sqlite-backed SessionStore.
type GormSessionStore struct{ db *gorm.DB }

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

func (r *GormSessionStore) Create(s *domain.Session) error {
	return r.db.Create(s).Error
}

func (r *GormSessionStore) Get(token string) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.First(&s, "token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *GormSessionStore) Update(s *domain.Session) error {
	res := r.db.Model(&domain.Session{}).Where("token = ?", s.Token).
		Updates(map[string]any{"last_activity": s.LastActivity})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormSessionStore) Delete(token string) error {
	return r.db.Delete(&domain.Session{}, "token = ?", token).Error
}

func (r *GormSessionStore) DeleteInactiveSince(cutoff time.Time) (int, error) {
	res := r.db.Delete(&domain.Session{}, "last_activity < ?", cutoff)
	return int(res.RowsAffected), res.Error
}

func (r *GormSessionStore) List() ([]*domain.Session, error) {
	var sessions []*domain.Session
	if err := r.db.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

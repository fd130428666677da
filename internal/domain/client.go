package domain

import "time"

// ClientAccount is a secondary credential namespace managed through an
// authenticated master or professional session. Email is unique across all
// clients; DataDirectory is the client's isolated storage path, created when
// the account is.
type ClientAccount struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	Name          string    `json:"name" gorm:"size:255;not null"`
	Email         string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	SSNLast4      string    `json:"ssn_last4" gorm:"size:4"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedBy     string    `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
	DataDirectory string    `json:"data_directory" gorm:"size:1024"`
	Credential    `gorm:"embedded"`
}

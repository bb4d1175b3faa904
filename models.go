package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Admin is the single administrator allowed to sign in
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	ID            uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Principal returns the identity claims for the admin
func (a *Admin) Principal() Principal {
	if a == nil {
		return Principal{}
	}
	return Principal{
		ID:    a.ID.String(),
		Email: a.Email,
	}
}

// NormalizeEmail trims and lower cases an email so lookups and the unique
// index agree on a single spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareAdminDefaults(record *Admin, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

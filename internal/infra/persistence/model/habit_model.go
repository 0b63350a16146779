package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// MemberRecord is one element of the 'members' jsonb column.
type MemberRecord struct {
	ID         string `json:"id"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"bestStreak"`
	Status     string `json:"status"`
}

// MemberList maps the 'members' jsonb column.
type MemberList []MemberRecord

// Value implements driver.Valuer.
func (l MemberList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, errors.Wrap(err, "marshal members")
	}

	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *MemberList) Scan(src any) error {
	return scanJSON(src, l)
}

// HabitModel is the GORM-specific struct for the 'habits' table.
// member_ids mirrors members[].id so array-contains queries can use a GIN index.
type HabitModel struct {
	ID            string         `gorm:"type:varchar(64);primaryKey"`
	Name          string         `gorm:"type:varchar(200);not null"`
	OwnerID       string         `gorm:"type:varchar(128);not null;index"`
	Members       MemberList     `gorm:"type:jsonb;not null"`
	MemberIDs     pq.StringArray `gorm:"type:text[];not null"`
	LastReset     string         `gorm:"type:varchar(10);not null"`
	Version       int64          `gorm:"not null"`
	SchemaVersion int            `gorm:"not null"`
	// Legacy holds the original document of a habit imported from the schema-version-1 app
	// until the upgrade step rewrites it.
	Legacy    *string `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (HabitModel) TableName() string {
	return "habits"
}

// LegacyHabitDocument is the JSON shape stored in habits.legacy.
type LegacyHabitDocument struct {
	Name           string   `json:"name"`
	OwnerID        string   `json:"ownerId"`
	Members        []string `json:"members"`
	Streak         int      `json:"streak"`
	BestStreak     int      `json:"bestStreak"`
	SubmittedToday bool     `json:"submittedToday"`
	Approved       *bool    `json:"approved"`
	LastResetDate  string   `json:"lastResetDate"`
}

func scanJSON(src, dst any) error {
	var raw []byte

	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("unsupported jsonb source %T", src)
	}

	return errors.Wrap(json.Unmarshal(raw, dst), "unmarshal jsonb")
}

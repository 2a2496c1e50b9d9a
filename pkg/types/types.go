package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONMap is a custom type that can handle JSON serialization for both PostgreSQL and SQLite
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for GORM
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for GORM
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// Client represents a customer organisation that receives upload links
type Client struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the client ID
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Project groups uploads under a client
type Project struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	ClientID  uuid.UUID `json:"client_id" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Client    Client    `json:"client" gorm:"foreignKey:ClientID"`
}

// BeforeCreate generates a UUID for the project ID
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// UploadLink is a time-limited token that authorizes uploads into a project
type UploadLink struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	ProjectID uuid.UUID `json:"project_id" gorm:"not null;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	MaxUses   int       `json:"max_uses" gorm:"default:0"` // 0 means unlimited
	UsedCount int       `json:"used_count" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Project   Project   `json:"project" gorm:"foreignKey:ProjectID"`
}

// BeforeCreate generates a UUID for the upload link ID
func (l *UploadLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// FileRecord statuses
const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// FileRecord is the persisted outcome of a finalized upload. Its ID is the
// transport's upload id, which anchors finished-event idempotence across
// process restarts.
type FileRecord struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null"`
	StoragePath string     `json:"storage_path"`
	Size        int64      `json:"size"`
	Hash        string     `json:"hash" gorm:"index"`
	MimeType    string     `json:"mime_type"`
	Status      string     `json:"status" gorm:"not null;default:processing"`
	ProjectID   uuid.UUID  `json:"project_id" gorm:"index"`
	Metadata    JSONMap    `json:"metadata" gorm:"serializer:json"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Project     Project    `json:"project" gorm:"foreignKey:ProjectID"`
}

// Lifecycle event types delivered by the upload transport
const (
	EventCreated    = "created"
	EventReceiving  = "receiving"
	EventFinished   = "finished"
	EventTerminated = "terminated"
)

// HookEvent is the lifecycle event payload posted by the upload transport
type HookEvent struct {
	Type     string            `json:"type" binding:"required"`
	UploadID string            `json:"uploadId" binding:"required"`
	Offset   int64             `json:"offset"`
	Size     int64             `json:"size"`
	Metadata map[string]string `json:"metadata"`
}

package setting

import (
	"time"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
)

// SettingCreatedEvent is published after a setting is inserted
type SettingCreatedEvent struct {
	SettingID string           `json:"setting_id"`
	Version   document.Version `json:"version"`
	Setting   *Setting         `json:"setting"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
}

// SettingUpdatedEvent is published after a successful update or patch.
// Changes is the RFC 7396 merge patch from the previous to the new fields.
type SettingUpdatedEvent struct {
	SettingID string                 `json:"setting_id"`
	Version   document.Version       `json:"version"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id"`
}

// SettingRemovedEvent is published after a setting is deleted
type SettingRemovedEvent struct {
	SettingID string    `json:"setting_id"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

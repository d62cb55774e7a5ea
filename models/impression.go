package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ImpressionStatus represents the lifecycle state of an impression
type ImpressionStatus string

const (
	ImpressionStatusReserved  ImpressionStatus = "reserved"
	ImpressionStatusServed    ImpressionStatus = "served"
	ImpressionStatusConfirmed ImpressionStatus = "confirmed"
	ImpressionStatusExpired   ImpressionStatus = "expired"
	ImpressionStatusCancelled ImpressionStatus = "cancelled"
)

// String returns the string representation of the status
func (s ImpressionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ImpressionStatus) Valid() bool {
	switch s {
	case ImpressionStatusReserved, ImpressionStatusServed, ImpressionStatusConfirmed,
		ImpressionStatusExpired, ImpressionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed
func (s ImpressionStatus) IsTerminal() bool {
	return s == ImpressionStatusConfirmed ||
		s == ImpressionStatusExpired ||
		s == ImpressionStatusCancelled
}

// Scan implements the sql.Scanner interface for ImpressionStatus
func (s *ImpressionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ImpressionStatus(v)
	case []byte:
		*s = ImpressionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ImpressionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ImpressionStatus
func (s ImpressionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ImpressionStatus: %s", s)
	}
	return string(s), nil
}

// ImpressionAction records what the viewer did with the ad
type ImpressionAction string

const (
	ImpressionActionView     ImpressionAction = "view"
	ImpressionActionClick    ImpressionAction = "click"
	ImpressionActionSkip     ImpressionAction = "skip"
	ImpressionActionComplete ImpressionAction = "complete"
	ImpressionActionPause    ImpressionAction = "pause"
	ImpressionActionResume   ImpressionAction = "resume"
	ImpressionActionMute     ImpressionAction = "mute"
	ImpressionActionUnmute   ImpressionAction = "unmute"
)

// Valid checks if the action is valid
func (a ImpressionAction) Valid() bool {
	switch a {
	case ImpressionActionView, ImpressionActionClick, ImpressionActionSkip,
		ImpressionActionComplete, ImpressionActionPause, ImpressionActionResume,
		ImpressionActionMute, ImpressionActionUnmute:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ImpressionAction
func (a *ImpressionAction) Scan(value any) error {
	if value == nil {
		*a = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*a = ImpressionAction(v)
	case []byte:
		*a = ImpressionAction(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ImpressionAction", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ImpressionAction
func (a ImpressionAction) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid ImpressionAction: %s", a)
	}
	return string(a), nil
}

// ImpressionEvent is the client-reported event driving a state transition
type ImpressionEvent string

const (
	ImpressionEventServed    ImpressionEvent = "served"
	ImpressionEventClicked   ImpressionEvent = "clicked"
	ImpressionEventCompleted ImpressionEvent = "completed"
	ImpressionEventSkipped   ImpressionEvent = "skipped"
)

// Valid checks if the event is valid
func (e ImpressionEvent) Valid() bool {
	switch e {
	case ImpressionEventServed, ImpressionEventClicked,
		ImpressionEventCompleted, ImpressionEventSkipped:
		return true
	default:
		return false
	}
}

// Action returns the impression action recorded for this event
func (e ImpressionEvent) Action() ImpressionAction {
	switch e {
	case ImpressionEventClicked:
		return ImpressionActionClick
	case ImpressionEventCompleted:
		return ImpressionActionComplete
	case ImpressionEventSkipped:
		return ImpressionActionSkip
	default:
		return ImpressionActionView
	}
}

// DeviceType is a coarse device classification parsed from the user agent
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeTV      DeviceType = "tv"
	DeviceTypeUnknown DeviceType = "unknown"
)

// OSType is a coarse operating-system classification
type OSType string

const (
	OSTypeWindows OSType = "windows"
	OSTypeMacOS   OSType = "macos"
	OSTypeLinux   OSType = "linux"
	OSTypeAndroid OSType = "android"
	OSTypeIOS     OSType = "ios"
	OSTypeUnknown OSType = "unknown"
)

// Impression is one reserved-and-potentially-billed ad display. Rows are
// never deleted; they end in confirmed, expired or cancelled. At most one
// of ViewerID/AnonID is set at any instant; promoting anon to user clears
// AnonID.
type Impression struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Token string `gorm:"type:varchar(512);uniqueIndex;not null" json:"token"`

	AdID       uint `gorm:"not null;index" json:"ad_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	Status ImpressionStatus `gorm:"type:varchar(20);not null;default:'reserved';index" json:"status"`
	Action ImpressionAction `gorm:"type:varchar(20);not null;default:'view'" json:"action"`

	CostCents int64     `gorm:"not null;check:cost_cents >= 0" json:"cost_cents"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	ViewerID  *string `gorm:"type:varchar(64);index" json:"viewer_id,omitempty"`
	AnonID    *string `gorm:"type:varchar(64);index" json:"anon_id,omitempty"`
	SessionID *string `gorm:"type:varchar(128)" json:"session_id,omitempty"`

	VideoID  string         `gorm:"type:varchar(64);not null;index" json:"video_id"`
	Category *string        `gorm:"type:varchar(128)" json:"category,omitempty"`
	Tags     pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	DeviceType DeviceType `gorm:"type:varchar(16);not null;default:'unknown'" json:"device_type"`
	OSType     OSType     `gorm:"type:varchar(16);not null;default:'unknown'" json:"os_type"`
	UserAgent  *string    `gorm:"type:varchar(1024)" json:"user_agent,omitempty"`
	IPAddress  *string    `gorm:"type:varchar(64)" json:"ip_address,omitempty"`

	ViewDuration  *int `json:"view_duration,omitempty"`  // seconds
	VideoProgress *int `json:"video_progress,omitempty"` // 0..100

	ServedAt    *time.Time `json:"served_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// Audit fields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Ad       Ad       `gorm:"foreignKey:AdID;constraint:OnDelete:CASCADE" json:"ad,omitempty"`
	Campaign Campaign `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"campaign,omitempty"`
}

// CanTransition reports whether the given event is a legal transition
// from the impression's current status:
//
//	reserved --served--> served
//	served --clicked|completed|skipped--> confirmed
//
// Terminal states accept nothing.
func (i *Impression) CanTransition(event ImpressionEvent) bool {
	switch i.Status {
	case ImpressionStatusReserved:
		return event == ImpressionEventServed
	case ImpressionStatusServed:
		return event == ImpressionEventClicked ||
			event == ImpressionEventCompleted ||
			event == ImpressionEventSkipped
	default:
		return false
	}
}

// AllowedEvents lists the events currently accepted, for error payloads.
func (i *Impression) AllowedEvents() []ImpressionEvent {
	switch i.Status {
	case ImpressionStatusReserved:
		return []ImpressionEvent{ImpressionEventServed}
	case ImpressionStatusServed:
		return []ImpressionEvent{ImpressionEventClicked, ImpressionEventCompleted, ImpressionEventSkipped}
	default:
		return nil
	}
}

// IsExpired reports whether the impression is past its expiry at the
// given instant. Exactly-now counts as expired.
func (i *Impression) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// ImpressionFilter represents filter criteria for impressions
type ImpressionFilter struct {
	ID            *uint             `json:"id,omitempty"`
	Token         *string           `json:"token,omitempty"`
	AdID          *uint             `json:"ad_id,omitempty"`
	CampaignID    *uint             `json:"campaign_id,omitempty"`
	Status        *ImpressionStatus `json:"status,omitempty"`
	ViewerID      *string           `json:"viewer_id,omitempty"`
	AnonID        *string           `json:"anon_id,omitempty"`
	VideoID       *string           `json:"video_id,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}

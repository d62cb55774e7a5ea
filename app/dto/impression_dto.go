package dto

// ConfirmMetadata carries optional client playback details on confirm
type ConfirmMetadata struct {
	UserAgent     *string `json:"userAgent,omitempty" validate:"omitempty,max=1024"`
	IPAddress     *string `json:"ipAddress,omitempty" validate:"omitempty,max=64"`
	ViewDuration  *int    `json:"viewDuration,omitempty" validate:"omitempty,min=0"`
	VideoProgress *int    `json:"videoProgress,omitempty" validate:"omitempty,min=0,max=100"`
}

// ConfirmImpressionRequest reports an impression event. At most one of
// UserID/AnonID may be present.
type ConfirmImpressionRequest struct {
	Token    string           `json:"token" validate:"required,min=1,max=512"`
	Event    string           `json:"event" validate:"required,oneof=served clicked completed skipped"`
	UserID   *string          `json:"user_id,omitempty" validate:"omitempty,min=1,max=64"`
	AnonID   *string          `json:"anon_id,omitempty" validate:"omitempty,min=1,max=64"`
	Metadata *ConfirmMetadata `json:"metadata,omitempty"`
}

// BillingDetails is attached to the billing-path confirm response
type BillingDetails struct {
	CostCents       int64  `json:"costCents"`
	RemainingBudget *int64 `json:"remainingBudget,omitempty"`
}

// ConfirmImpressionResponse is the confirm result payload
type ConfirmImpressionResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Status         string          `json:"status"`
	Action         string          `json:"action"`
	BillingDetails *BillingDetails `json:"billingDetails,omitempty"`
}

// ImpressionDTO is the debug-lookup rendering of an impression row
type ImpressionDTO struct {
	ID            uint     `json:"id"`
	Token         string   `json:"token"`
	AdID          uint     `json:"ad_id"`
	CampaignID    uint     `json:"campaign_id"`
	Status        string   `json:"status"`
	Action        string   `json:"action"`
	CostCents     int64    `json:"cost_cents"`
	ExpiresAt     string   `json:"expires_at"`
	ViewerID      *string  `json:"viewer_id,omitempty"`
	AnonID        *string  `json:"anon_id,omitempty"`
	SessionID     *string  `json:"session_id,omitempty"`
	VideoID       string   `json:"video_id"`
	Category      *string  `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	DeviceType    string   `json:"device_type"`
	OSType        string   `json:"os_type"`
	ViewDuration  *int     `json:"view_duration,omitempty"`
	VideoProgress *int     `json:"video_progress,omitempty"`
	ServedAt      *string  `json:"served_at,omitempty"`
	ConfirmedAt   *string  `json:"confirmed_at,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

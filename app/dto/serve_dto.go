package dto

// ServeAdRequest asks for one ad to play against a video. At least one of
// Category/Tags must be present, and exactly one of UserID/AnonID.
type ServeAdRequest struct {
	VideoID   string   `json:"videoId" validate:"required,min=1,max=64"`
	Category  *string  `json:"category,omitempty" validate:"omitempty,min=1,max=128"`
	Tags      []string `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=128"`
	UserID    *string  `json:"user_id,omitempty" validate:"omitempty,min=1,max=64"`
	AnonID    *string  `json:"anon_id,omitempty" validate:"omitempty,min=1,max=64"`
	SessionID *string  `json:"sessionId,omitempty" validate:"omitempty,max=128"`
}

// ServedAdDTO is the ad payload of a successful serve
type ServedAdDTO struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	VideoURL     string   `json:"videoUrl"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	Categories   []string `json:"categories"`
	Tags         []string `json:"tags"`
	CTALink      *string  `json:"ctaLink,omitempty"`
}

// ServeAdResponse carries the reserved impression. When no eligible ad
// exists Ad is nil and Reason is "no_eligible_ads".
type ServeAdResponse struct {
	Ad              *ServedAdDTO `json:"ad,omitempty"`
	ImpressionToken string       `json:"impressionToken,omitempty"`
	CostCents       int64        `json:"costCents,omitempty"`
	ExpiresAt       string       `json:"expiresAt,omitempty"`
	Reason          string       `json:"reason,omitempty"`
}

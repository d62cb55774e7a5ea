package dto

// CreateAdRequest creates an ad under a campaign. BudgetCents nil or -1
// inherits the campaign budget.
type CreateAdRequest struct {
	Title        string   `json:"title" validate:"required,min=1,max=255"`
	Description  string   `json:"description" validate:"max=4096"`
	BudgetCents  *int64   `json:"budget_cents,omitempty" validate:"omitempty,min=-1"`
	Categories   []string `json:"categories" validate:"required,min=1,dive,min=1,max=128"`
	Tags         []string `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=128"`
	VideoURL     string   `json:"video_url" validate:"required,url,max=2048"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=2048"`
	CTALink      *string  `json:"cta_link,omitempty" validate:"omitempty,url,max=2048"`
	Activate     bool     `json:"activate,omitempty"`
}

// UpdateAdRequest updates mutable ad fields; nil leaves a field unchanged
type UpdateAdRequest struct {
	Title        *string  `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=4096"`
	Status       *string  `json:"status,omitempty" validate:"omitempty,oneof=draft active paused completed rejected under_review"`
	BudgetCents  *int64   `json:"budget_cents,omitempty" validate:"omitempty,min=-1"`
	Categories   []string `json:"categories,omitempty" validate:"omitempty,min=1,dive,min=1,max=128"`
	Tags         []string `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=128"`
	VideoURL     *string  `json:"video_url,omitempty" validate:"omitempty,url,max=2048"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=2048"`
	CTALink      *string  `json:"cta_link,omitempty" validate:"omitempty,url,max=2048"`
}

// AdDTO is the API rendering of an ad
type AdDTO struct {
	UUID         string   `json:"uuid"`
	CampaignUUID string   `json:"campaign_uuid"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	BudgetCents  int64    `json:"budget_cents"`
	SpentCents   int64    `json:"spent_cents"`
	Categories   []string `json:"categories"`
	Tags         []string `json:"tags"`
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	CTALink      *string  `json:"cta_link,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// AdBudgetValidationDTO reports how a requested ad budget fits inside the
// campaign allocation. RemainingCents -1 means unlimited.
type AdBudgetValidationDTO struct {
	Valid          bool   `json:"valid"`
	CampaignCents  *int64 `json:"campaign_cents,omitempty"`
	AllocatedCents int64  `json:"allocated_cents"`
	RemainingCents int64  `json:"remaining_cents"`
	Reason         string `json:"reason,omitempty"`
}

// ListAdsResponse is the paginated ad listing
type ListAdsResponse struct {
	Ads        []AdDTO        `json:"ads"`
	Pagination PaginationInfo `json:"pagination"`
}

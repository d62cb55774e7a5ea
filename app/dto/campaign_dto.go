package dto

// CreateCampaignRequest creates a campaign under a team. BudgetCents nil
// means uncapped; a positive value is allocated from the owner wallet.
type CreateCampaignRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	BudgetCents *int64  `json:"budget_cents,omitempty" validate:"omitempty,min=0"`
	StartDate   *string `json:"start_date,omitempty" validate:"omitempty"`
	EndDate     *string `json:"end_date,omitempty" validate:"omitempty"`
	Activate    bool    `json:"activate,omitempty"`
}

// UpdateCampaignRequest updates mutable campaign fields; nil leaves a
// field unchanged
type UpdateCampaignRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=draft active paused completed cancelled"`
	BudgetCents *int64  `json:"budget_cents,omitempty" validate:"omitempty,min=0"`
	StartDate   *string `json:"start_date,omitempty" validate:"omitempty"`
	EndDate     *string `json:"end_date,omitempty" validate:"omitempty"`
}

// CampaignDTO is the API rendering of a campaign
type CampaignDTO struct {
	UUID        string  `json:"uuid"`
	TeamUUID    string  `json:"team_uuid"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	BudgetCents *int64  `json:"budget_cents,omitempty"`
	SpentCents  int64   `json:"spent_cents"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// DeleteCampaignResponse reports the refund credited on delete
type DeleteCampaignResponse struct {
	RefundCents int64 `json:"refund_cents"`
}

// ListCampaignsResponse is the paginated campaign listing
type ListCampaignsResponse struct {
	Campaigns  []CampaignDTO  `json:"campaigns"`
	Pagination PaginationInfo `json:"pagination"`
}

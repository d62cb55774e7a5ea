package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/videostreampro/adserver/app/services"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
)

// fakeTxManager runs the callback directly; the fakes below are already
// atomic enough for single-goroutine tests.
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	nextID  uint
	wallets map[uint]*models.Wallet
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uint]*models.Wallet)}
}

// Reads return snapshots, matching how a row read differs from the
// stored row once guarded updates run against it.
func copyWallet(w *models.Wallet) *models.Wallet {
	if w == nil {
		return nil
	}
	copied := *w
	return &copied
}

func (r *fakeWalletRepo) ByID(_ context.Context, id uint) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyWallet(r.wallets[id]), nil
}

func (r *fakeWalletRepo) ByOwnerID(_ context.Context, ownerID string) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			return copyWallet(w), nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) GetOrCreate(ctx context.Context, ownerID string) (*models.Wallet, error) {
	if wallet, _ := r.ByOwnerID(ctx, ownerID); wallet != nil {
		return wallet, nil
	}
	wallet := &models.Wallet{UUID: uuid.New(), OwnerID: ownerID, Currency: "USD"}
	if err := r.Save(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *fakeWalletRepo) LockByID(ctx context.Context, id uint) (*models.Wallet, error) {
	return r.ByID(ctx, id)
}

func (r *fakeWalletRepo) UpdateBalance(_ context.Context, walletID uint, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wallets[walletID]; ok {
		w.Balance = newBalance
	}
	return nil
}

func (r *fakeWalletRepo) Save(_ context.Context, wallet *models.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	wallet.ID = r.nextID
	if wallet.UUID == uuid.Nil {
		wallet.UUID = uuid.New()
	}
	r.wallets[wallet.ID] = wallet
	return nil
}

func (r *fakeWalletRepo) ByFilter(_ context.Context, filter models.WalletFilter, _ string, _, _ int) ([]*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Wallet
	for _, w := range r.wallets {
		if filter.OwnerID != nil && w.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *fakeWalletRepo) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

type fakeTransactionRepo struct {
	mu     sync.Mutex
	nextID uint
	items  []*models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{}
}

func (r *fakeTransactionRepo) ByID(_ context.Context, id uint) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) Save(_ context.Context, transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	transaction.ID = r.nextID
	r.items = append(r.items, transaction)
	return nil
}

func (r *fakeTransactionRepo) Update(_ context.Context, transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.items {
		if t.ID == transaction.ID {
			r.items[i] = transaction
			return nil
		}
	}
	return nil
}

func (r *fakeTransactionRepo) matches(t *models.Transaction, filter models.TransactionFilter) bool {
	if filter.WalletID != nil && t.WalletID != *filter.WalletID {
		return false
	}
	if filter.Type != nil && t.Type != *filter.Type {
		return false
	}
	if filter.Status != nil && t.Status != *filter.Status {
		return false
	}
	if filter.CampaignID != nil && (t.CampaignID == nil || *t.CampaignID != *filter.CampaignID) {
		return false
	}
	if filter.AdID != nil && (t.AdID == nil || *t.AdID != *filter.AdID) {
		return false
	}
	return true
}

func (r *fakeTransactionRepo) ByFilter(_ context.Context, filter models.TransactionFilter, _ string, limit, offset int) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Transaction
	// Newest first, mirroring the created_at DESC ordering of the real
	// repository.
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.matches(r.items[i], filter) {
			matched = append(matched, r.items[i])
		}
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *fakeTransactionRepo) Count(_ context.Context, filter models.TransactionFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.items {
		if r.matches(t, filter) {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactionRepo) SumCompletedByType(_ context.Context, walletID uint, txType models.TransactionType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.items {
		if t.WalletID == walletID && t.Type == txType && t.Status == models.TransactionStatusCompleted {
			sum += t.Amount
		}
	}
	return sum, nil
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID uint
	teams  map[uint]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[uint]*models.Team)}
}

func (r *fakeTeamRepo) ByID(_ context.Context, id uint) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teams[id], nil
}

func (r *fakeTeamRepo) ByUUID(_ context.Context, teamUUID string) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.UUID.String() == teamUUID {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTeamRepo) Save(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	team.ID = r.nextID
	if team.UUID == uuid.Nil {
		team.UUID = uuid.New()
	}
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) ByFilter(_ context.Context, filter models.TeamFilter, _ string, _, _ int) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Team
	for _, t := range r.teams {
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTeamRepo) Count(ctx context.Context, filter models.TeamFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    uint
	campaigns map[uint]*models.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func copyCampaign(c *models.Campaign) *models.Campaign {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCampaign(r.campaigns[id]), nil
}

func (r *fakeCampaignRepo) ByUUID(_ context.Context, campaignUUID string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == campaignUUID {
			return copyCampaign(c), nil
		}
	}
	return nil, nil
}

// stored returns the live row for direct test assertions
func (r *fakeCampaignRepo) stored(id uint) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id]
}

func (r *fakeCampaignRepo) Save(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	campaign.ID = r.nextID
	if campaign.UUID == uuid.Nil {
		campaign.UUID = uuid.New()
	}
	if campaign.Status == "" {
		campaign.Status = models.CampaignStatusDraft
	}
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *fakeCampaignRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.campaigns, id)
	return nil
}

func (r *fakeCampaignRepo) LockByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return r.ByID(ctx, id)
}

func (r *fakeCampaignRepo) AddToSpent(_ context.Context, id uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return repository.ErrBudgetGuard
	}
	if c.Budget != nil && *c.Budget > 0 && c.Spent+delta > *c.Budget {
		return repository.ErrBudgetGuard
	}
	c.Spent += delta
	return nil
}

func (r *fakeCampaignRepo) SubtractFromSpent(_ context.Context, id uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Spent-delta < 0 {
		return repository.ErrSpentGuard
	}
	c.Spent -= delta
	return nil
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, filter models.CampaignFilter, _ string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for id := r.nextID; id >= 1; id-- {
		c, ok := r.campaigns[id]
		if !ok {
			continue
		}
		if filter.TeamID != nil && c.TeamID != *filter.TeamID {
			continue
		}
		out = append(out, c)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *fakeCampaignRepo) CompleteEnded(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusActive && c.EndDate != nil && c.EndDate.Before(now) {
			c.Status = models.CampaignStatusCompleted
			n++
		}
	}
	return n, nil
}

type fakeAdRepo struct {
	mu        sync.Mutex
	nextID    uint
	ads       map[uint]*models.Ad
	campaigns *fakeCampaignRepo
}

func newFakeAdRepo(campaigns *fakeCampaignRepo) *fakeAdRepo {
	return &fakeAdRepo{ads: make(map[uint]*models.Ad), campaigns: campaigns}
}

func copyAd(a *models.Ad) *models.Ad {
	if a == nil {
		return nil
	}
	copied := *a
	return &copied
}

func (r *fakeAdRepo) ByID(_ context.Context, id uint) (*models.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyAd(r.ads[id]), nil
}

func (r *fakeAdRepo) ByUUID(_ context.Context, adUUID string) (*models.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.ads {
		if a.UUID.String() == adUUID {
			return copyAd(a), nil
		}
	}
	return nil, nil
}

// stored returns the live row for direct test assertions and mutation
func (r *fakeAdRepo) stored(id uint) *models.Ad {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ads[id]
}

func (r *fakeAdRepo) Save(_ context.Context, ad *models.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ad.ID = r.nextID
	if ad.UUID == uuid.Nil {
		ad.UUID = uuid.New()
	}
	if ad.Status == "" {
		ad.Status = models.AdStatusDraft
	}
	r.ads[ad.ID] = ad
	return nil
}

func (r *fakeAdRepo) Update(_ context.Context, ad *models.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ads[ad.ID] = ad
	return nil
}

func (r *fakeAdRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ads, id)
	return nil
}

func (r *fakeAdRepo) LockByID(ctx context.Context, id uint) (*models.Ad, error) {
	return r.ByID(ctx, id)
}

func (r *fakeAdRepo) AddToSpent(_ context.Context, id uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.ads[id]
	if !ok {
		return repository.ErrBudgetGuard
	}
	if a.Budget > 0 && a.Spent+delta > a.Budget {
		return repository.ErrBudgetGuard
	}
	a.Spent += delta
	return nil
}

func (r *fakeAdRepo) SubtractFromSpent(_ context.Context, id uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.ads[id]
	if !ok || a.Spent-delta < 0 {
		return repository.ErrSpentGuard
	}
	a.Spent -= delta
	return nil
}

func (r *fakeAdRepo) SumOwnBudgets(_ context.Context, campaignID uint, excludeAdID *uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, a := range r.ads {
		if a.CampaignID != campaignID || a.Budget <= 0 {
			continue
		}
		if excludeAdID != nil && a.ID == *excludeAdID {
			continue
		}
		sum += a.Budget
	}
	return sum, nil
}

func (r *fakeAdRepo) FetchCandidates(ctx context.Context, category *string, tags []string, now time.Time, limit int) ([]*models.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ad
	// Ascending ID order stands in for RANDOM() so tests are deterministic.
	for id := uint(1); id <= r.nextID; id++ {
		ad, ok := r.ads[id]
		if !ok || ad.Status != models.AdStatusActive {
			continue
		}
		campaign := r.campaigns.campaigns[ad.CampaignID]
		if campaign == nil || !campaign.IsActive(now) {
			continue
		}
		hasCategory := category != nil && *category != ""
		if hasCategory || len(tags) > 0 {
			matchesCategory := hasCategory && contains(ad.Categories, *category)
			matchesTags := len(tags) > 0 && overlaps(ad.Tags, tags)
			if !matchesCategory && !matchesTags {
				continue
			}
		}
		copied := *ad
		copied.Campaign = *campaign
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (r *fakeAdRepo) ByFilter(_ context.Context, filter models.AdFilter, _ string, limit, offset int) ([]*models.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Ad
	for id := r.nextID; id >= 1; id-- {
		a, ok := r.ads[id]
		if !ok {
			continue
		}
		if filter.CampaignID != nil && a.CampaignID != *filter.CampaignID {
			continue
		}
		out = append(out, a)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAdRepo) Count(ctx context.Context, filter models.AdFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

type fakeImpressionRepo struct {
	mu          sync.Mutex
	nextID      uint
	impressions map[uint]*models.Impression
}

func newFakeImpressionRepo() *fakeImpressionRepo {
	return &fakeImpressionRepo{impressions: make(map[uint]*models.Impression)}
}

func copyImpression(i *models.Impression) *models.Impression {
	if i == nil {
		return nil
	}
	copied := *i
	return &copied
}

func (r *fakeImpressionRepo) ByID(_ context.Context, id uint) (*models.Impression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyImpression(r.impressions[id]), nil
}

func (r *fakeImpressionRepo) ByToken(_ context.Context, token string) (*models.Impression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.impressions {
		if i.Token == token {
			return copyImpression(i), nil
		}
	}
	return nil, nil
}

// stored returns the live row for direct test assertions
func (r *fakeImpressionRepo) stored(id uint) *models.Impression {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.impressions[id]
}

func (r *fakeImpressionRepo) LockByToken(ctx context.Context, token string) (*models.Impression, error) {
	return r.ByToken(ctx, token)
}

func (r *fakeImpressionRepo) Save(_ context.Context, impression *models.Impression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	impression.ID = r.nextID
	r.impressions[impression.ID] = impression
	return nil
}

func (r *fakeImpressionRepo) Update(_ context.Context, impression *models.Impression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impressions[impression.ID] = impression
	return nil
}

func (r *fakeImpressionRepo) ByFilter(_ context.Context, filter models.ImpressionFilter, _ string, limit, offset int) ([]*models.Impression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Impression
	for id := r.nextID; id >= 1; id-- {
		i, ok := r.impressions[id]
		if !ok {
			continue
		}
		if filter.Status != nil && i.Status != *filter.Status {
			continue
		}
		if filter.AdID != nil && i.AdID != *filter.AdID {
			continue
		}
		out = append(out, i)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeImpressionRepo) Count(ctx context.Context, filter models.ImpressionFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), nil
}

func (r *fakeImpressionRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, i := range r.impressions {
		if i.Status == models.ImpressionStatusReserved && !i.ExpiresAt.After(now) {
			i.Status = models.ImpressionStatusExpired
			n++
		}
	}
	return n, nil
}

// fakeMonetizationClient records notifications for assertion; confirms
// dispatch it from a goroutine, so access is guarded.
type fakeMonetizationClient struct {
	mu       sync.Mutex
	notified []services.AdConfirmedNotification
}

func (c *fakeMonetizationClient) NotifyAdConfirmed(_ context.Context, notification services.AdConfirmedNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified = append(c.notified, notification)
	return nil
}

func (c *fakeMonetizationClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notified)
}

func (c *fakeMonetizationClient) last() services.AdConfirmedNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notified[len(c.notified)-1]
}

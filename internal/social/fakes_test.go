package social

import (
	"context"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// fakeAccountRepo is an in-memory models.AccountRepository for tests.
type fakeAccountRepo struct {
	accounts map[string]*models.Account

	updateTokensErr error
	storeCalls      int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *fakeAccountRepo) Store(ctx context.Context, account *models.Account) error {
	r.storeCalls++
	for _, existing := range r.accounts {
		if existing.TwitterID == account.TwitterID {
			existing.TwitterUsername = account.TwitterUsername
			existing.DisplayName = account.DisplayName
			existing.ProfileImageURL = account.ProfileImageURL
			existing.AccessToken = account.AccessToken
			existing.RefreshToken = account.RefreshToken
			existing.TokenExpiresAt = account.TokenExpiresAt
			existing.SyncStatus = models.SyncStatusActive
			existing.ErrorMessage = ""
			*account = *existing
			return nil
		}
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) GetByTwitterID(ctx context.Context, twitterID string) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.TwitterID == twitterID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListActive(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListAll(ctx context.Context, includeInactive bool) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if !includeInactive && !a.IsActive {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	if r.updateTokensErr != nil {
		return r.updateTokensErr
	}
	if a, ok := r.accounts[id]; ok {
		a.AccessToken = accessToken
		a.RefreshToken = refreshToken
		a.TokenExpiresAt = expiresAt
		a.SyncStatus = models.SyncStatusActive
		a.ErrorMessage = ""
	}
	return nil
}

func (r *fakeAccountRepo) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus, errorMessage string) error {
	if a, ok := r.accounts[id]; ok {
		a.SyncStatus = status
		a.ErrorMessage = errorMessage
	}
	return nil
}

func (r *fakeAccountRepo) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	if a, ok := r.accounts[id]; ok {
		a.SyncStatus = models.SyncStatusActive
		a.ErrorMessage = ""
		a.LastSyncedAt = &syncedAt
	}
	return nil
}

func (r *fakeAccountRepo) IncrementMentionsTracked(ctx context.Context, id string, n int) error {
	if a, ok := r.accounts[id]; ok {
		a.TotalMentionsTracked += n
	}
	return nil
}

func (r *fakeAccountRepo) SetActive(ctx context.Context, id string, active bool) error {
	if a, ok := r.accounts[id]; ok {
		a.IsActive = active
	}
	return nil
}

func (r *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	delete(r.accounts, id)
	return nil
}

// fakeStateRepo is an in-memory models.OAuthStateRepository for tests.
type fakeStateRepo struct {
	states map[string]*models.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*models.OAuthState)}
}

func (r *fakeStateRepo) Store(ctx context.Context, state *models.OAuthState) error {
	cp := *state
	r.states[state.State] = &cp
	return nil
}

func (r *fakeStateRepo) Get(ctx context.Context, state string) (*models.OAuthState, error) {
	s, ok := r.states[state]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStateRepo) Delete(ctx context.Context, state string) error {
	delete(r.states, state)
	return nil
}

func (r *fakeStateRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	removed := 0
	for key, s := range r.states {
		if s.CreatedAt.Before(before) {
			delete(r.states, key)
			removed++
		}
	}
	return removed, nil
}

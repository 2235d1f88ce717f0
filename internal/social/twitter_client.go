package social

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"
)

const (
	// DefaultBaseURL is the Twitter API v2 host.
	DefaultBaseURL = "https://api.twitter.com"

	// mentionsPageSize is the fixed page size for one poll cycle. No
	// automatic pagination: a cycle covers only the most recent page.
	mentionsPageSize = 100
)

// TwitterClient handles Twitter API v2 interactions using OAuth2 bearer
// tokens scoped per tracked account, plus the app-credential token grants.
type TwitterClient struct {
	// BaseURL may be overridden to point at a test server.
	BaseURL string

	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewTwitterClient creates a new Twitter API client.
func NewTwitterClient(clientID, clientSecret string, logger *slog.Logger) *TwitterClient {
	return &TwitterClient{
		BaseURL:      DefaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// TokenResponse represents the token endpoint payload for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// UserProfile represents a user from the API.
type UserProfile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Tweet represents a tweet from the API.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MentionsPage is one page of the mentions timeline with author expansions.
type MentionsPage struct {
	Data     []Tweet `json:"data"`
	Includes struct {
		Users []UserProfile `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id,omitempty"`
		OldestID    string `json:"oldest_id,omitempty"`
	} `json:"meta"`
}

// AuthorByID returns the expanded author profile for an ID, if present.
func (p *MentionsPage) AuthorByID(id string) (UserProfile, bool) {
	for _, u := range p.Includes.Users {
		if u.ID == id {
			return u, true
		}
	}
	return UserProfile{}, false
}

// ExchangeAuthorizationCode exchanges an authorization code plus PKCE
// verifier for a token pair using Basic app-credential auth.
func (c *TwitterClient) ExchangeAuthorizationCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}

	return c.postTokenForm(ctx, form)
}

// RefreshAccessToken exchanges a refresh token for a new token pair.
func (c *TwitterClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
	}

	return c.postTokenForm(ctx, form)
}

func (c *TwitterClient) postTokenForm(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/2/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &token, nil
}

// Me fetches the authenticated user's profile. Used both as the token
// liveness check and to resolve the account identity after an exchange.
func (c *TwitterClient) Me(ctx context.Context, accessToken string) (*UserProfile, error) {
	reqURL := c.BaseURL + "/2/users/me?user.fields=profile_image_url"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Data UserProfile `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse identity response: %w", err)
	}

	return &result.Data, nil
}

// Mentions fetches the most recent page of mentions for a user, with
// author profiles expanded in the same call.
func (c *TwitterClient) Mentions(ctx context.Context, accessToken, twitterUserID string) (*MentionsPage, error) {
	params := url.Values{
		"max_results":  {fmt.Sprintf("%d", mentionsPageSize)},
		"tweet.fields": {"created_at,author_id,text"},
		"expansions":   {"author_id"},
		"user.fields":  {"username,name,profile_image_url"},
	}

	reqURL := fmt.Sprintf("%s/2/users/%s/mentions?%s", c.BaseURL, twitterUserID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mentions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page MentionsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to parse mentions response: %w", err)
	}

	return &page, nil
}

// Reply posts a public reply to a tweet.
func (c *TwitterClient) Reply(ctx context.Context, accessToken, inReplyToTweetID, text string) (string, error) {
	payload := map[string]interface{}{
		"text": text,
		"reply": map[string]string{
			"in_reply_to_tweet_id": inReplyToTweetID,
		},
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/2/tweets", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse reply response: %w", err)
	}

	c.logger.Info("reply posted",
		"tweet_id", result.Data.ID,
		"in_reply_to", inReplyToTweetID,
		"text_length", len(text))

	return result.Data.ID, nil
}

// SendDirectMessage sends a DM to the given participant.
func (c *TwitterClient) SendDirectMessage(ctx context.Context, accessToken, participantID, text string) error {
	payload := map[string]string{"text": text}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal DM request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/2/dm_conversations/with/%s/messages", c.BaseURL, participantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info("direct message sent", "participant_id", participantID, "text_length", len(text))
	return nil
}

func (c *TwitterClient) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
}

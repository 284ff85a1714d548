package blink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"blinksync/pkg/config"
	errs "blinksync/pkg/errors"
	"blinksync/pkg/logger"
	"blinksync/pkg/ratelimit"
)

// UserAgent is sent with every request
var UserAgent = "blinksync/dev"

// Client talks to the Blink REST API
type Client struct {
	httpClient  *http.Client
	mediaClient *http.Client
	apiServer   string
	regionURL   string
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// NewClient creates a Blink API client from cfg. JSON calls use the API
// timeout and media transfers use the download timeout.
func NewClient(cfg *config.Config, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	apiServer := cfg.Blink.APIServer
	if apiServer == "" {
		apiServer = DefaultAPIServer
	}
	regionURL := cfg.Blink.RegionURL
	if regionURL == "" {
		regionURL = DefaultRegionURL
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Blink.APITimeout},
		mediaClient: &http.Client{Timeout: cfg.Download.DownloadTimeout},
		apiServer: apiServer,
		regionURL: regionURL,
		limiter:   limiter,
		logger:    log,
	}
}

// tokenHeader returns the auth header used by listing and media calls.
// Blink expects the underscore spelling, which net/http would canonicalise.
func tokenHeader(s Session) http.Header {
	h := http.Header{}
	h["TOKEN_AUTH"] = []string{s.Token}
	return h
}

// doRequest waits for the rate limiter, sends req and logs the exchange
func (c *Client) doRequest(hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.WaitContext(req.Context()); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// doJSON sends in (when non-nil) as a JSON body and decodes the reply into out (when non-nil)
func (c *Client) doJSON(ctx context.Context, method, url string, header http.Header, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errs.New(errs.ErrorTypeUnknown, 0, "failed to encode request: %v", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doRequest(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps non-2xx replies to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}
	errType := errs.FromStatus(resp.StatusCode)

	switch errType {
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errType, resp.StatusCode, "authentication rejected")
	case errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.New(errType, resp.StatusCode, "resource not found")
	case errs.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return errs.New(errType, resp.StatusCode, "rate limit exceeded")
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
		return errs.New(errType, resp.StatusCode, "server error")
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return errs.New(errType, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// Login exchanges account credentials for a token on the global API host
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	uniqueID := creds.UniqueID
	if uniqueID == "" {
		uniqueID = DefaultUniqueID
	}

	url := GetLoginURL(c.apiServer)
	c.logger.DebugWithFields("logging in", map[string]interface{}{
		"email": creds.Email,
		"url":   url,
	})

	var resp LoginResponse
	err := c.doJSON(ctx, http.MethodPost, url, nil, LoginRequest{
		Email:    creds.Email,
		Password: creds.Password,
		UniqueID: uniqueID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Auth.Token == "" || resp.Account.Tier == "" {
		return nil, errs.New(errs.ErrorTypeParsing, http.StatusOK, "login response is missing token or tier")
	}
	return &resp, nil
}

// NewSession builds the session for a successful login
func (c *Client) NewSession(resp *LoginResponse) Session {
	return Session{
		Token:     resp.Auth.Token,
		AccountID: resp.Account.AccountID,
		ClientID:  resp.Account.ClientID,
		Tier:      resp.Account.Tier,
		BaseURL:   RegionBaseURL(c.regionURL, resp.Account.Tier),
	}
}

// VerifyPin submits the one-time PIN for this client instance
func (c *Client) VerifyPin(ctx context.Context, s Session, pin string) error {
	header := http.Header{}
	header.Set("TOKEN-AUTH", s.Token)

	return c.doJSON(ctx, http.MethodPost, GetPinVerifyURL(s), header, PinVerifyRequest{Pin: pin}, nil)
}

// ListNetworks returns every network of the account with its cameras
func (c *Client) ListNetworks(ctx context.Context, s Session) ([]Network, error) {
	var resp UsageResponse
	if err := c.doJSON(ctx, http.MethodGet, GetUsageURL(s), tokenHeader(s), nil, &resp); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("listed networks", map[string]interface{}{
		"networks": len(resp.Networks),
	})
	return resp.Networks, nil
}

// CameraDetail fetches the detail of one camera, including its thumbnail reference
func (c *Client) CameraDetail(ctx context.Context, s Session, networkID, cameraID int64) (*CameraDetail, error) {
	var detail CameraDetail
	if err := c.doJSON(ctx, http.MethodGet, GetCameraURL(s, networkID, cameraID), tokenHeader(s), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MediaPage fetches one page of the changed-media listing. An empty slice
// marks the end of the listing.
func (c *Client) MediaPage(ctx context.Context, s Session, page int, since string) ([]MediaItem, error) {
	url, err := GetMediaPageURL(s, page, since)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "%v", err)
	}

	var resp MediaPageResponse
	if err := c.doJSON(ctx, http.MethodGet, url, tokenHeader(s), nil, &resp); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("fetched media page", map[string]interface{}{
		"page":  page,
		"items": len(resp.Media),
	})
	return resp.Media, nil
}

// OpenMedia starts an authenticated download of url and returns the body.
// The caller must close it.
func (c *Client) OpenMedia(ctx context.Context, s Session, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	for k, v := range tokenHeader(s) {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.doRequest(c.mediaClient, req)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// MediaOpener opens authenticated media downloads
type MediaOpener interface {
	OpenMedia(ctx context.Context, s Session, url string) (io.ReadCloser, error)
}

// SessionFetcher binds a session to a client for media downloads
type SessionFetcher struct {
	Client  MediaOpener
	Session Session
}

// Fetch implements the downloader's fetcher contract
func (f SessionFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f.Client.OpenMedia(ctx, f.Session, url)
}

// String hides the token when a session is logged
func (s Session) String() string {
	return fmt.Sprintf("Session{account=%d client=%d tier=%s base=%s}", s.AccountID, s.ClientID, s.Tier, s.BaseURL)
}

package blink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Credentials are the fixed account inputs supplied at startup
type Credentials struct {
	Email    string
	Password string
	UniqueID string
}

// LoginRequest is the body of the login call
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UniqueID string `json:"unique_id"`
}

// LoginResponse is the subset of the login reply blinksync relies on
type LoginResponse struct {
	Account LoginAccount `json:"account"`
	Auth    LoginAuth    `json:"auth"`
}

// LoginAccount identifies the account and this client instance
type LoginAccount struct {
	AccountID int64  `json:"account_id"`
	ClientID  int64  `json:"client_id"`
	Tier      string `json:"tier"`
}

// LoginAuth carries the session token
type LoginAuth struct {
	Token string `json:"token"`
}

// Session is the authenticated context shared by every call after login.
// It is created once and never refreshed.
type Session struct {
	Token     string
	AccountID int64
	ClientID  int64
	Tier      string
	BaseURL   string
}

// PinVerifyRequest is the body of the PIN verification call
type PinVerifyRequest struct {
	Pin string `json:"pin"`
}

// UsageResponse lists the account's networks
type UsageResponse struct {
	Networks []Network `json:"networks"`
}

// Network is a sync module together with its cameras
type Network struct {
	ID      int64    `json:"network_id"`
	Name    string   `json:"name"`
	Cameras []Camera `json:"cameras"`
}

// Camera belongs to exactly one network
type Camera struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CameraDetail is the camera detail reply
type CameraDetail struct {
	CameraStatus CameraStatus `json:"camera_status"`
}

// CameraStatus holds the thumbnail reference of a camera
type CameraStatus struct {
	Thumbnail string `json:"thumbnail"`
}

// MediaPageResponse is one page of the changed-media listing
type MediaPageResponse struct {
	Media []MediaItem `json:"media"`
}

// MediaItem describes one recorded clip
type MediaItem struct {
	Media       string `json:"media"`
	CreatedAt   string `json:"created_at"`
	NetworkName string `json:"network_name"`
	DeviceName  string `json:"device_name"`
	Deleted     Flag   `json:"deleted"`
}

// Flag is a boolean that also accepts the strings "True" and "False".
// It never fails to decode: anything else reads as false and the raw JSON
// is kept in Raw.
type Flag struct {
	Value bool
	Raw   string
}

// Unrecognised reports whether the decoded value was neither a boolean nor a true/false string
func (f Flag) Unrecognised() bool {
	return f.Raw != ""
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Value = b
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			f.Value = true
			return nil
		case "false", "":
			return nil
		}
	}

	f.Raw = string(data)
	return nil
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999-0700",
}

// ParseCreatedAt parses a media timestamp
func ParseCreatedAt(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid created_at timestamp %q", s)
}

// FileStemLayout is the time layout of local clip names
const FileStemLayout = "2006-01-02T15-04-05"

// FileStem renders the capture time as the local file name without extension.
// The time is converted to UTC, colons become dashes and sub-second digits
// and the zone suffix are dropped.
func (m MediaItem) FileStem() (string, error) {
	t, err := ParseCreatedAt(m.CreatedAt)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(FileStemLayout), nil
}

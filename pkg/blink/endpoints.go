package blink

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	// DefaultAPIServer is the global host used for login
	DefaultAPIServer = "rest-prod.immedia-semi.com"

	// DefaultRegionURL is the per-tier REST base URL template
	DefaultRegionURL = "https://rest-{tier}.immedia-semi.com"

	// DefaultSince is the lower bound sent with every media listing
	DefaultSince = "2015-04-19T23:11:20+0000"

	// DefaultUniqueID is the client instance id used when none is configured
	DefaultUniqueID = "00000000-1111-0000-1111-00000000000"

	LoginEndpoint        = "/api/v5/account/login"
	PinVerifyEndpoint    = "/api/v4/account/%d/client/%d/pin/verify"
	UsageEndpoint        = "/api/v1/camera/usage"
	CameraEndpoint       = "/network/%d/camera/%d"
	MediaChangedEndpoint = "/api/v1/accounts/%d/media/changed"

	// ThumbnailExt is appended to the camera thumbnail reference
	ThumbnailExt = ".jpg"

	tierPlaceholder = "{tier}"
)

// GetLoginURL returns the login URL on apiServer. A bare host gets https.
func GetLoginURL(apiServer string) string {
	base := strings.TrimRight(apiServer, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + LoginEndpoint
}

// RegionBaseURL expands the {tier} placeholder in template
func RegionBaseURL(template, tier string) string {
	return strings.TrimRight(strings.ReplaceAll(template, tierPlaceholder, tier), "/")
}

// GetPinVerifyURL returns the PIN verification URL for the session's account and client
func GetPinVerifyURL(s Session) string {
	return s.BaseURL + fmt.Sprintf(PinVerifyEndpoint, s.AccountID, s.ClientID)
}

// GetUsageURL returns the URL listing networks and their cameras
func GetUsageURL(s Session) string {
	return s.BaseURL + UsageEndpoint
}

// GetCameraURL returns the detail URL of one camera
func GetCameraURL(s Session, networkID, cameraID int64) string {
	return s.BaseURL + fmt.Sprintf(CameraEndpoint, networkID, cameraID)
}

// GetMediaPageURL returns the URL of one page of the changed-media listing.
// Pages are 1-based.
func GetMediaPageURL(s Session, page int, since string) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid media page %d: pages start at 1", page)
	}
	if since == "" {
		since = DefaultSince
	}

	params := url.Values{}
	params.Set("since", since)
	params.Set("page", strconv.Itoa(page))

	return fmt.Sprintf("%s%s?%s", s.BaseURL, fmt.Sprintf(MediaChangedEndpoint, s.AccountID), params.Encode()), nil
}

// GetThumbnailURL returns the image URL for a camera thumbnail reference
func GetThumbnailURL(s Session, thumbnail string) string {
	return s.BaseURL + thumbnail + ThumbnailExt
}

// GetMediaFileURL returns the download URL for a media item path
func GetMediaFileURL(s Session, mediaPath string) string {
	return s.BaseURL + mediaPath
}

// ThumbnailID returns the last path element of a thumbnail reference
func ThumbnailID(thumbnail string) string {
	if thumbnail == "" {
		return ""
	}
	id := path.Base(thumbnail)
	if id == "/" || id == "." {
		return ""
	}
	return id
}

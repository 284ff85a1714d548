package syncer

// State is the current phase of the poll loop
type State string

const (
	StateAuthenticating        State = "AUTHENTICATING"
	StateVerifyingPin          State = "VERIFYING_PIN"
	StateListingNetworks       State = "LISTING_NETWORKS"
	StateDownloadingThumbnails State = "DOWNLOADING_THUMBNAILS"
	StateListingMediaPages     State = "LISTING_MEDIA_PAGES"
	StateDownloadingMedia      State = "DOWNLOADING_MEDIA"
	StateSleeping              State = "SLEEPING"
)

func (s State) String() string {
	return string(s)
}

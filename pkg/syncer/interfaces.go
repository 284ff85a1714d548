package syncer

import (
	"context"
	"io"

	"blinksync/pkg/blink"
	"blinksync/pkg/prompt"
)

// Authenticator turns credentials and a PIN into a session
type Authenticator interface {
	Authenticate(ctx context.Context, creds blink.Credentials, pins prompt.PinReader) (blink.Session, error)
}

// API defines the Blink operations used by a cycle
type API interface {
	ListNetworks(ctx context.Context, s blink.Session) ([]blink.Network, error)
	CameraDetail(ctx context.Context, s blink.Session, networkID, cameraID int64) (*blink.CameraDetail, error)
	MediaPage(ctx context.Context, s blink.Session, page int, since string) ([]blink.MediaItem, error)
	OpenMedia(ctx context.Context, s blink.Session, url string) (io.ReadCloser, error)
}

// StateObserver is told about every state change of the loop
type StateObserver func(State)

// Package ratelimit throttles requests to the Blink REST API.
//
// A single TokenBucket is shared by the API client and the media downloader so
// that enumeration and transfers draw from the same per-minute budget:
//
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	if err := limiter.WaitContext(ctx); err != nil {
//	    return err // cancelled
//	}
//	// proceed with request
package ratelimit

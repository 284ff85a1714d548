// Package syncer runs the Blink mirror poll loop.
//
// A Syncer authenticates once, then repeats a cycle forever:
//
//   - list the networks of the account, retrying after a fixed delay on failure
//   - fetch every camera's thumbnail into <dest>/Blink/<network>/<camera>/
//   - walk the changed-media listing page by page until an empty page
//   - download every clip that is not marked deleted
//   - sleep for the poll interval
//
// Whether a file was already fetched is decided by its presence on disk only.
// The loop ends when the context is cancelled or authentication fails.
//
// Usage:
//
//	s, err := syncer.New(cfg, blink.NewAuthenticator(client, log), client, store, syncer.Options{
//	    Logger:     log,
//	    Checkpoint: cp,
//	    Metrics:    rec,
//	})
//	if err != nil {
//	    return err
//	}
//	err = s.Run(ctx, creds, prompt.NewTerminal())
package syncer

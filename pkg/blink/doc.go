// Package blink is a client for the Blink camera REST API.
//
// Login happens against the global API host; every later call goes to the
// regional host for the account tier, carried in an immutable Session:
//
//	client := blink.NewClient(cfg, limiter, log)
//	auth := blink.NewAuthenticator(client, log)
//	session, err := auth.Authenticate(ctx, creds, prompt.NewTerminal())
//	if err != nil {
//	    // login and PIN failures are *errors.Error with ErrorTypeAuth
//	}
//
//	networks, err := client.ListNetworks(ctx, session)
//	for page := 1; ; page++ {
//	    items, err := client.MediaPage(ctx, session, page, cfg.Poll.Since)
//	    if err != nil || len(items) == 0 {
//	        break
//	    }
//	}
package blink

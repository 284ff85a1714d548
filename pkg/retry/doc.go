// Package retry repeats an operation after a fixed delay.
//
// blinksync deliberately has no exponential policy: the only retried call is
// the network listing at the top of a cycle, which is attempted again after a
// constant pause until it succeeds or the context is cancelled.
//
//	err := retry.Do(ctx, func() error {
//		networks, err = client.ListNetworks(ctx, session)
//		return err
//	}, &retry.Config{
//		Backoff: &retry.ConstantBackoff{Delay: 10 * time.Second},
//		Logger:  log,
//	})
package retry

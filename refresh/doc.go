// Package refresh coordinates credential refreshes so that only one runs at a time.
//
// A Coordinator holds at most one pending flight. The first caller of Ensure
// starts it; callers arriving before it settles attach to it and receive the
// same true/false outcome. When the flight settles the coordinator forgets it,
// so a later expiry starts a brand-new refresh.
//
// # Features
//
//   - Single flight keyed by the coordinator itself, no process-wide state
//   - Refresh runs on a detached context; waiters may cancel individually
//   - Optional per-refresh timeout (WithTimeout) and logging (WithLogger)
//   - Exclusive for other credential mutations that must not overlap a refresh
//   - InFlight, Waiters and Stats for introspection
//
// # Quick Start
//
//	coord := refresh.New(func(ctx context.Context) bool {
//	    return callRefreshEndpoint(ctx) == nil
//	}, refresh.WithTimeout(10*time.Second))
//
//	ok, err := coord.Ensure(ctx)
//
// The package knows nothing about HTTP; httpclient plugs its refresh call in.
package refresh

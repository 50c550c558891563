// Package coordinator drives the panel session on a fixed schedule.
//
// Lifecycle:
//
//	Uninitialized -> Authenticating -> Polling
//
// Start performs setup (Connect then InitializeState) and a first refresh,
// returning any error so the caller can refuse to report ready. A failure
// anywhere in that phase puts the coordinator back in Uninitialized and the
// caller may call Start again. After that a
// ticker calls Refresh once per interval. A failing periodic poll is logged,
// counted and reported through the availability callback; the next tick
// simply tries again.
//
// At most one poll runs at a time. A Refresh that finds another poll in
// flight returns ErrPollInFlight instead of queueing, which keeps cache
// writes and listener notifications strictly ordered.
//
// Stop cancels the schedule and waits for it. It never logs out of the panel.
package coordinator

// Package comfortclick is the session client for a ComfortClick building
// automation panel.
//
// The client owns the whole HTTP conversation with the panel:
//
//   - Connect logs in and stores the session cookie headers
//   - InitializeState loads the full panel snapshot into the Cache
//   - Poll applies incremental value updates to existing Cache entries
//   - SetValue writes one device point without touching the Cache
//   - Disconnect logs out
//
// No other package talks to the panel. Consumers read values through
// GetValue, which returns nil (and logs a warning) for unknown names.
//
// Device names may carry doubled backslashes depending on where they came
// from. NormalizeName collapses them, and every lookup compares normalized
// forms.
//
// The panel serves a self-signed certificate, so TLS verification is
// disabled for this client only.
package comfortclick

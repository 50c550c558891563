package entity

import "time"

// Options carries the collaborators shared by every entity.
type Options struct {
	// Reader is required.
	Reader Reader
	// Writer is required for entities that accept commands.
	Writer Writer
	Sink   Sink
	Logger Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

func (o Options) logDebug(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

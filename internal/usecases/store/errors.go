package store

import "errors"

// ErrSenderLocked is returned when the cross-instance redis lock for a
// sender is already held by another engine instance; the caller should
// leave the work queued for the next sweep rather than retry immediately.
var ErrSenderLocked = errors.New("sender exclusivity lock held elsewhere")

// Package notifications alerts operators when sermon processing finishes.
//
// The ntfy implementation posts plain-text messages with Title, Tags and
// Priority headers to the configured topic URL. Without a topic the service
// is a no-op, so the worker can call it unconditionally.
package notifications

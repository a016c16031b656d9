// Package playback tracks viewer sessions of published sermons.
//
// A Controller resumes from the persisted position, reports engagement
// (start, pause progress, quarter milestones, completion, quality and speed
// changes, downloads) as analytics events, and decides how to react to fatal
// streaming errors: one reload for network failures, one recovery for media
// failures, and a terminal unplayable state after that.
package playback

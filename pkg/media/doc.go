// Package media holds the media glue shared by the publisher and viewer
// applications and by the checks that verify them: device list handling,
// capability based resolution lists, constraint re-negotiation checks,
// the bitrate and codec catalogs, display formatting and the publisher
// session state machine.
package media

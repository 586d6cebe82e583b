package models

import "time"

// ModLogEntry records one moderator grant or revocation. Entries are
// append-only; nothing in this codebase mutates or deletes them.
type ModLogEntry struct {
	Mod       string
	Other     string
	Community string
	Removed   bool
	When      time.Time
}

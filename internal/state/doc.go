// Package state holds the bot's mutable state: in-memory conversation
// sessions, the plain-text fallback log, and the submission journal.
package state

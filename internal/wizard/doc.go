// Package wizard implements the interactive setup flow that turns a
// controller address and login into a persisted entry.Entry.
//
// A Session moves through fixed states:
//
//	collecting-credentials -> selecting-objects -> selecting-properties -> done
//
// Each Submit validates its input against the current state. Invalid input
// and controller errors leave the session where it was; repeated discovery
// failures move it to failed. Manager keys sessions by UUID and expires
// idle ones.
package wizard

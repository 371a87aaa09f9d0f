// Package state keeps per-user conversation steps for multi-message flows and
// routes messages of a user in a step to the handler registered for it.
package state

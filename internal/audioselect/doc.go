// Package audioselect implements the interactive audio stream reorder session:
// the user moves streams with inline buttons until they confirm, cancel, or the
// session times out.
package audioselect

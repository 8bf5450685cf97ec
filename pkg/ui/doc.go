// Package ui holds the terminal presentation of bookmarkvault: colored
// messages, the live sync progress line, the run summary table and desktop
// notifications at the end of a run.
package ui

// Package grid implements the editable-cell controller for a tabular display.
//
// A Controller owns an ordered set of rows, each addressed by a process-local
// handle, and drives the per-cell edit lifecycle: BeginEdit produces the
// editor affordance for the column's declared editor kind, Commit validates
// and dispatches the change to a Store, Cancel rolls back. Store calls run as
// Bubble Tea commands; their results come back as messages handed to
// Controller.Update, so every state transition happens on the host's event
// loop.
package grid

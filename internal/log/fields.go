// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldNode      = "node"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTrigger   = "trigger"
	FieldOutcome   = "outcome"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Backup fields
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldFiles       = "files"
	FieldBytes       = "bytes"
	FieldPath        = "path"
)

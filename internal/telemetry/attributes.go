// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans. HTTP spans are annotated by otelhttp
// and need no keys here.
const (
	// Backup run attributes
	BackupSourceKey      = "backup.source"
	BackupDestinationKey = "backup.destination"
	BackupTriggerKey     = "backup.trigger"
	BackupFilesKey       = "backup.files"
	BackupCopiedKey      = "backup.copied"
	BackupFailedKey      = "backup.failed"
	BackupBytesKey       = "backup.bytes"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RunAttributes describes a backup run on its span.
func RunAttributes(source, destination, trigger string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BackupSourceKey, source),
		attribute.String(BackupDestinationKey, destination),
		attribute.String(BackupTriggerKey, trigger),
	}
}

// ResultAttributes records the counters of a finished run.
func ResultAttributes(files, copied, failed int, bytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(BackupFilesKey, files),
		attribute.Int(BackupCopiedKey, copied),
		attribute.Int(BackupFailedKey, failed),
		attribute.Int64(BackupBytesKey, bytes),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

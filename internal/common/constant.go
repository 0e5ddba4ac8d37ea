// Package common contains shared constants and sentinel errors used across
// the activity dashboard core.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the bridge
// session token on inbound calls.
const AccessTokenHeaderName = "access_token"

// Column names of the ActivityTracker activity table.
const (
	IdentifierColumn = "employee_id"
	StartTimeColumn  = "start_time"
	DurationColumn   = "duration_seconds"
	AFKColumn        = "is_afk"
)

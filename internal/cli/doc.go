// Package cli provides the activity dashboard command-line client.
//
// Commands run against a Backend: either a dashboard.Service built in
// process from the runtime configuration, or a running activityd daemon
// reached through the bridge client when --remote is given.
//
// Key commands:
//   - discover, export, cancel, refresh
//   - dates, day, range, days
//   - config show | set | init
//   - table
//
// Build the command tree with NewRootCommand and execute it.
package cli

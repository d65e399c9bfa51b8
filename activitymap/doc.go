// Package activitymap turns auth activity events into audit trail rows and
// stores them in the activity_log table.
package activitymap

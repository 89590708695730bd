// Package venue defines the venue configuration edited by the web interface
// and read by the announcer: database credentials, voice settings, message
// templates, the daily schedule and user-defined announcement types.
package venue

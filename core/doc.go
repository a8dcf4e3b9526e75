// Package core defines the shared vocabulary of agentrail: the closed Event
// sum type, the derived Message view, thread metadata, authorization scopes,
// and the Agent and ThreadStore contracts the runner orchestrates.
package core

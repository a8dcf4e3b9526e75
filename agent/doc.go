// Package agent provides core.Agent implementations: ModelAgent streams one
// language model turn per run, ScriptAgent replays canned event sequences
// for tests and examples.
package agent

// Package model defines the provider-agnostic language model interface and
// shared request/definition types. Implementations translate provider
// streaming protocols into the normalized thread event vocabulary so agents
// and the orchestrator never branch per vendor. Concrete adapters live in
// the openai and anthropic subpackages; MockModel provides a deterministic
// in-memory implementation for tests and examples.
package model

// Package stream implements the append-only, multi-consumer event log
// underlying a thread. Writers append until Done; consumers always replay
// the full history before tailing live events, so two consumers collecting
// the complete stream observe identical sequences.
package stream

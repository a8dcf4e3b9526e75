package core

import (
	"encoding/json"
	"fmt"
)

// EventType identifies the concrete kind of an Event. The string values
// follow the wire names used by agent-UI protocols so persisted payloads
// stay readable by external tooling.
type EventType string

const (
	EventTypeRunStarted         EventType = "RUN_STARTED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
	EventTypeRunError           EventType = "RUN_ERROR"
	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTypeToolCallStart      EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd        EventType = "TOOL_CALL_END"
	EventTypeToolCallResult     EventType = "TOOL_CALL_RESULT"
	EventTypeStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventTypeStateDelta         EventType = "STATE_DELTA"
	EventTypeMessagesSnapshot   EventType = "MESSAGES_SNAPSHOT"
	EventTypeRaw                EventType = "RAW"
	EventTypeCustom             EventType = "CUSTOM"
)

// Event is the atomic unit of run activity. Concrete event types implement
// the unexported isEvent marker enabling a closed set, so dedup and
// compaction logic can switch exhaustively over every kind.
//
// Events carry no wall-clock timestamp: append order within a thread's log
// is the single source of truth for ordering.
type Event interface {
	Type() EventType
	isEvent()
}

// RunStarted marks the beginning of one agent run against a thread.
type RunStarted struct {
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

func (RunStarted) Type() EventType { return EventTypeRunStarted }
func (RunStarted) isEvent()        {}

// RunFinished marks successful completion of a run.
type RunFinished struct {
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

func (RunFinished) Type() EventType { return EventTypeRunFinished }
func (RunFinished) isEvent()        {}

// RunError terminates a run with an error description.
type RunError struct {
	RunID   string `json:"runId,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (RunError) Type() EventType { return EventTypeRunError }
func (RunError) isEvent()        {}

// TextMessageStart opens a streamed text message identified by MessageID.
type TextMessageStart struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
}

func (TextMessageStart) Type() EventType { return EventTypeTextMessageStart }
func (TextMessageStart) isEvent()        {}

// TextMessageContent carries a content delta for an open text message.
type TextMessageContent struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

func (TextMessageContent) Type() EventType { return EventTypeTextMessageContent }
func (TextMessageContent) isEvent()        {}

// TextMessageEnd closes a streamed text message.
type TextMessageEnd struct {
	MessageID string `json:"messageId"`
}

func (TextMessageEnd) Type() EventType { return EventTypeTextMessageEnd }
func (TextMessageEnd) isEvent()        {}

// ToolCallStart opens a streamed tool invocation.
type ToolCallStart struct {
	ToolCallID      string `json:"toolCallId"`
	ToolName        string `json:"toolCallName"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

func (ToolCallStart) Type() EventType { return EventTypeToolCallStart }
func (ToolCallStart) isEvent()        {}

// ToolCallArgs carries an argument delta (serialized JSON fragment) for an
// open tool call.
type ToolCallArgs struct {
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

func (ToolCallArgs) Type() EventType { return EventTypeToolCallArgs }
func (ToolCallArgs) isEvent()        {}

// ToolCallEnd closes a streamed tool invocation.
type ToolCallEnd struct {
	ToolCallID string `json:"toolCallId"`
}

func (ToolCallEnd) Type() EventType { return EventTypeToolCallEnd }
func (ToolCallEnd) isEvent()        {}

// ToolCallResult records the outcome of a completed tool call.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
}

func (ToolCallResult) Type() EventType { return EventTypeToolCallResult }
func (ToolCallResult) isEvent()        {}

// StateSnapshot replaces the run state wholesale.
type StateSnapshot struct {
	Snapshot map[string]any `json:"snapshot"`
}

func (StateSnapshot) Type() EventType { return EventTypeStateSnapshot }
func (StateSnapshot) isEvent()        {}

// PatchOp is a single RFC 6902 JSON Patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// StateDelta applies incremental state changes as JSON Patch operations.
type StateDelta struct {
	Delta []PatchOp `json:"delta"`
}

func (StateDelta) Type() EventType { return EventTypeStateDelta }
func (StateDelta) isEvent()        {}

// MessagesSnapshot replaces the derived message history wholesale.
type MessagesSnapshot struct {
	Messages []Message `json:"messages"`
}

func (MessagesSnapshot) Type() EventType { return EventTypeMessagesSnapshot }
func (MessagesSnapshot) isEvent()        {}

// Raw passes through event data from an external system.
type Raw struct {
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"event"`
}

func (Raw) Type() EventType { return EventTypeRaw }
func (Raw) isEvent()        {}

// Custom is an application-defined extension event.
type Custom struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

func (Custom) Type() EventType { return EventTypeCustom }
func (Custom) isEvent()        {}

// CorrelationID returns the stable key correlating streamed fragments of the
// same message or tool call, or "" for uncorrelated events. The switch is
// exhaustive over the closed event set.
func CorrelationID(e Event) string {
	switch ev := e.(type) {
	case TextMessageStart:
		return ev.MessageID
	case TextMessageContent:
		return ev.MessageID
	case TextMessageEnd:
		return ev.MessageID
	case ToolCallStart:
		return ev.ToolCallID
	case ToolCallArgs:
		return ev.ToolCallID
	case ToolCallEnd:
		return ev.ToolCallID
	case ToolCallResult:
		return ev.ToolCallID
	case RunStarted, RunFinished, RunError, StateSnapshot, StateDelta, MessagesSnapshot, Raw, Custom:
		return ""
	default:
		return ""
	}
}

// eventEnvelope carries the discriminating "type" member of a persisted event.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// MarshalEvent serializes an event with its type discriminator for storage.
func MarshalEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type(), err)
	}
	fields["type"], _ = json.Marshal(e.Type())
	return json.Marshal(fields)
}

// UnmarshalEvent restores an event serialized by MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	var (
		ev  Event
		err error
	)
	switch env.Type {
	case EventTypeRunStarted:
		ev, err = decodeEvent[RunStarted](data)
	case EventTypeRunFinished:
		ev, err = decodeEvent[RunFinished](data)
	case EventTypeRunError:
		ev, err = decodeEvent[RunError](data)
	case EventTypeTextMessageStart:
		ev, err = decodeEvent[TextMessageStart](data)
	case EventTypeTextMessageContent:
		ev, err = decodeEvent[TextMessageContent](data)
	case EventTypeTextMessageEnd:
		ev, err = decodeEvent[TextMessageEnd](data)
	case EventTypeToolCallStart:
		ev, err = decodeEvent[ToolCallStart](data)
	case EventTypeToolCallArgs:
		ev, err = decodeEvent[ToolCallArgs](data)
	case EventTypeToolCallEnd:
		ev, err = decodeEvent[ToolCallEnd](data)
	case EventTypeToolCallResult:
		ev, err = decodeEvent[ToolCallResult](data)
	case EventTypeStateSnapshot:
		ev, err = decodeEvent[StateSnapshot](data)
	case EventTypeStateDelta:
		ev, err = decodeEvent[StateDelta](data)
	case EventTypeMessagesSnapshot:
		ev, err = decodeEvent[MessagesSnapshot](data)
	case EventTypeRaw:
		ev, err = decodeEvent[Raw](data)
	case EventTypeCustom:
		ev, err = decodeEvent[Custom](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", env.Type, err)
	}
	return ev, nil
}

func decodeEvent[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

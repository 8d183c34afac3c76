package proto

import (
	"fmt"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// MessageKind defines how an envelope participates in the bridge protocol
type MessageKind int32

const (
	MessageKind_UNKNOWN  MessageKind = 0
	MessageKind_NOTIFY   MessageKind = 1
	MessageKind_REQUEST  MessageKind = 2
	MessageKind_RESPONSE MessageKind = 3
)

// String returns the lowercase name of the kind
func (k MessageKind) String() string {
	switch k {
	case MessageKind_NOTIFY:
		return "notify"
	case MessageKind_REQUEST:
		return "request"
	case MessageKind_RESPONSE:
		return "response"
	default:
		return "unknown"
	}
}

// Channel names. Exact, case-sensitive strings shared by both processes.
const (
	ChannelNewDocument     = "new-document"
	ChannelOpenFile        = "open-file"
	ChannelSaveDocument    = "save-document"
	ChannelSaveDocumentAs  = "save-document-as"
	ChannelExportDocument  = "export-document"
	ChannelAIAction        = "ai-action"
	ChannelOpenPreferences = "open-preferences"
	ChannelShowHelp        = "show-help"
	ChannelShowShortcuts   = "show-shortcuts"
	ChannelSaveFile        = "save-file"
	ChannelReadFile        = "read-file"
)

// AIAction identifies a text transformation carried by the ai-action channel
type AIAction string

const (
	AIActionImprove   AIAction = "improve"
	AIActionTranslate AIAction = "translate"
	AIActionCorrect   AIAction = "correct"
	AIActionSummarize AIAction = "summarize"
	AIActionExpand    AIAction = "expand"
	AIActionTone      AIAction = "tone"
	AIActionFormat    AIAction = "format"
	AIActionOptimize  AIAction = "optimize"
)

// AIActions lists the recognized actions in sidebar order
var AIActions = []AIAction{
	AIActionImprove,
	AIActionTranslate,
	AIActionCorrect,
	AIActionSummarize,
	AIActionExpand,
	AIActionTone,
	AIActionFormat,
	AIActionOptimize,
}

// Known reports whether the action is one of the recognized values.
// Unknown actions are still valid payloads; they take the generic path.
func (a AIAction) Known() bool {
	for _, known := range AIActions {
		if a == known {
			return true
		}
	}
	return false
}

// Envelope is the single frame exchanged between host and content.
// Args and Result only ever carry strings; nothing else crosses the boundary.
type Envelope struct {
	Id      string                 `json:"id"`
	Kind    MessageKind            `json:"kind"`
	Channel string                 `json:"channel"`
	Args    []string               `json:"args,omitempty"`
	Result  *string                `json:"result,omitempty"`
	Error   *Error                 `json:"error,omitempty"`
	Meta    map[string]string      `json:"meta,omitempty"`
	Ts      *timestamppb.Timestamp `json:"ts,omitempty"`
}

// Arg returns the positional argument or "" when absent
func (e *Envelope) Arg(i int) string {
	if e == nil || i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// NewNotification builds a host->content notification
func NewNotification(id, channel string, args ...string) *Envelope {
	return &Envelope{
		Id:      id,
		Kind:    MessageKind_NOTIFY,
		Channel: channel,
		Args:    args,
		Ts:      timestamppb.Now(),
	}
}

// NewRequest builds a content->host request
func NewRequest(id, channel string, args ...string) *Envelope {
	return &Envelope{
		Id:      id,
		Kind:    MessageKind_REQUEST,
		Channel: channel,
		Args:    args,
		Ts:      timestamppb.Now(),
	}
}

// NewResponse builds the reply to a request. A nil result is a valid,
// successful reply (for example a cancelled save dialog).
func NewResponse(req *Envelope, result *string, err *Error) *Envelope {
	return &Envelope{
		Id:      req.Id,
		Kind:    MessageKind_RESPONSE,
		Channel: req.Channel,
		Result:  result,
		Error:   err,
		Ts:      timestamppb.Now(),
	}
}

// Error is the wire form of a failed request
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("textai: [%s] %s: %s", e.Type, e.Code, e.Message)
}

// String returns a pointer to s, for building nullable results
func String(s string) *string {
	return &s
}

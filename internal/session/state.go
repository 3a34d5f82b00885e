// Package session orchestrates capture, transport, and playback into the
// user-visible conversational state machine.
package session

// State is the session's position in one conversational turn.
type State int

const (
	Idle State = iota
	Recording
	Uploading
	AwaitingReply
	ReplyReady
	Sending
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Uploading:
		return "uploading"
	case AwaitingReply:
		return "awaiting-reply"
	case ReplyReady:
		return "reply-ready"
	case Sending:
		return "sending"
	case Errored:
		return "error"
	}
	return "unknown"
}

// Event names a user action or completion that may move the machine.
type Event int

const (
	RecordPressed Event = iota
	StopPressed
	UploadComplete
	ReplyReceived
	SendPressed
	SendComplete
	Failed
	Reset
)

func (e Event) String() string {
	switch e {
	case RecordPressed:
		return "record-pressed"
	case StopPressed:
		return "stop-pressed"
	case UploadComplete:
		return "upload-complete"
	case ReplyReceived:
		return "reply-received"
	case SendPressed:
		return "send-pressed"
	case SendComplete:
		return "send-complete"
	case Failed:
		return "failed"
	case Reset:
		return "reset"
	}
	return "unknown"
}

// Mode selects which transition table applies: the full voice turn machine
// or the collapsed text-chat machine.
type Mode int

const (
	VoiceMode Mode = iota
	TextMode
)

// transition returns the successor state for an event, and whether the
// event is valid in the current state. Invalid events are non-events: the
// caller logs and stays put.
func transition(mode Mode, s State, e Event) (State, bool) {
	if e == Reset {
		return Idle, true
	}
	if mode == TextMode {
		return textTransition(s, e)
	}
	return voiceTransition(s, e)
}

func voiceTransition(s State, e Event) (State, bool) {
	switch e {
	case RecordPressed:
		// A new turn may start from rest, after a reply, or after a
		// surfaced error.
		if s == Idle || s == ReplyReady || s == Errored {
			return Recording, true
		}
	case StopPressed:
		if s == Recording {
			return Uploading, true
		}
	case UploadComplete:
		if s == Uploading {
			return AwaitingReply, true
		}
	case ReplyReceived:
		if s == AwaitingReply {
			return ReplyReady, true
		}
	case Failed:
		if s == Recording || s == Uploading || s == AwaitingReply {
			return Errored, true
		}
	}
	return s, false
}

func textTransition(s State, e Event) (State, bool) {
	switch e {
	case SendPressed:
		if s == Idle || s == Errored {
			return Sending, true
		}
	case SendComplete:
		if s == Sending {
			return Idle, true
		}
	case Failed:
		if s == Sending {
			return Errored, true
		}
	}
	return s, false
}

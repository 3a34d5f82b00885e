package session

import "testing"

func TestVoiceTransitions(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		to    State
		ok    bool
	}{
		{Idle, RecordPressed, Recording, true},
		{ReplyReady, RecordPressed, Recording, true},
		{Errored, RecordPressed, Recording, true},
		{Recording, StopPressed, Uploading, true},
		{Uploading, UploadComplete, AwaitingReply, true},
		{AwaitingReply, ReplyReceived, ReplyReady, true},
		{Uploading, Failed, Errored, true},
		{AwaitingReply, Failed, Errored, true},
		{Recording, Failed, Errored, true},

		// Non-events.
		{Idle, StopPressed, Idle, false},
		{Recording, RecordPressed, Recording, false},
		{Uploading, RecordPressed, Uploading, false},
		{Idle, ReplyReceived, Idle, false},
		{Idle, SendPressed, Idle, false},
	}

	for _, tc := range cases {
		got, ok := transition(VoiceMode, tc.from, tc.event)
		if got != tc.to || ok != tc.ok {
			t.Fatalf("%s + %s: expected (%s, %v), got (%s, %v)",
				tc.from, tc.event, tc.to, tc.ok, got, ok)
		}
	}
}

func TestTextTransitions(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		to    State
		ok    bool
	}{
		{Idle, SendPressed, Sending, true},
		{Sending, SendComplete, Idle, true},
		{Sending, Failed, Errored, true},
		{Errored, SendPressed, Sending, true},

		{Idle, RecordPressed, Idle, false},
		{Idle, SendComplete, Idle, false},
		{Sending, SendPressed, Sending, false},
	}

	for _, tc := range cases {
		got, ok := transition(TextMode, tc.from, tc.event)
		if got != tc.to || ok != tc.ok {
			t.Fatalf("%s + %s: expected (%s, %v), got (%s, %v)",
				tc.from, tc.event, tc.to, tc.ok, got, ok)
		}
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	for _, mode := range []Mode{VoiceMode, TextMode} {
		got, ok := transition(mode, Errored, Reset)
		if !ok || got != Idle {
			t.Fatalf("reset from error: expected idle, got %s (%v)", got, ok)
		}
	}
}

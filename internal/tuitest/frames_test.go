package tuitest

import (
	"bytes"
	"testing"
)

func TestParseFramesSplitsOnClearScreen(t *testing.T) {
	raw := []byte("\x1b[2J\x1b[H\x1b[1mSign in\x1b[0m   \r\n\x1b[2J\x1b[HYour library\n\n\n")
	frames := parseFrames(raw)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %#v", len(frames), frames)
	}
	if frames[0].Plain != "Sign in" {
		t.Fatalf("unexpected first frame %q", frames[0].Plain)
	}
	if frames[1].Plain != "Your library" || frames[1].Index != 1 {
		t.Fatalf("unexpected second frame %#v", frames[1])
	}

	rec := &Recording{Frames: frames}
	if !rec.Contains("Sign in") || rec.Contains("Upload") {
		t.Fatal("Contains does not match frame text")
	}
	last, ok := rec.FinalFrame()
	if !ok || last.Plain != "Your library" {
		t.Fatalf("unexpected final frame %#v", last)
	}
}

func TestParseFramesWithoutClearScreen(t *testing.T) {
	frames := parseFrames([]byte("\x1b]0;title\x07plain output"))
	if len(frames) != 1 || frames[0].Plain != "plain output" {
		t.Fatalf("unexpected frames %#v", frames)
	}
}

func TestResponderAnswersQueriesInOrder(t *testing.T) {
	var out bytes.Buffer
	tr := newTerminalResponder(&out)
	tr.Process([]byte("abc\x1b]11;?\x07def\x1b[6"))
	tr.Process([]byte("n"))
	want := "\x1b]11;rgb:0000/0000/0000\x07\x1b[1;1R"
	if out.String() != want {
		t.Fatalf("unexpected replies %q", out.String())
	}
}

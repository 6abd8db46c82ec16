package tuitest

import (
	"bytes"
	"io"
)

// terminalReplies answers the capability queries bubbletea and termenv send
// on startup. Without an answer they stall until their own timeout.
var terminalReplies = []struct {
	query, reply string
}{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:cccc/cccc/cccc\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:cccc/cccc/cccc\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:0000/0000/0000\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:0000/0000/0000\x1b\\"},
}

const (
	responderMaxBuffer = 256
	responderKeepTail  = 64
)

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, responderMaxBuffer)}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.answerOne() {
	}
	// A query may straddle two reads, so keep a tail.
	if len(tr.buf) > responderMaxBuffer {
		tr.buf = append(tr.buf[:0], tr.buf[len(tr.buf)-responderKeepTail:]...)
	}
}

// answerOne replies to the earliest pending query and reports whether it
// found one.
func (tr *terminalResponder) answerOne() bool {
	first, which := -1, -1
	for i, pair := range terminalReplies {
		idx := bytes.Index(tr.buf, []byte(pair.query))
		if idx >= 0 && (first < 0 || idx < first) {
			first, which = idx, i
		}
	}
	if which < 0 {
		return false
	}
	pair := terminalReplies[which]
	tr.buf = tr.buf[first+len(pair.query):]
	_, _ = io.WriteString(tr.w, pair.reply)
	return true
}

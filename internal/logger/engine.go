package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// The engine dump log records every raw exchange with the decision engine so a
// bad cycle can be replayed offline. It is separate from the main log because
// raw outputs routinely run to tens of kilobytes.

var (
	engineMu  sync.Mutex
	engineLog *log.Logger
)

func SetEngineWriter(w io.Writer) {
	engineMu.Lock()
	defer engineMu.Unlock()
	if w == nil {
		engineLog = nil
		return
	}
	engineLog = log.New(w, "", log.LstdFlags)
}

type engineSection struct {
	Title string
	Body  string
}

func logEngine(kind, engine, trace string, sections []engineSection) {
	engineMu.Lock()
	l := engineLog
	engineMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ENGINE]")
	if kind != "" {
		b.WriteString("[")
		b.WriteString(kind)
		b.WriteString("]")
	}
	if engine != "" {
		b.WriteString("[")
		b.WriteString(engine)
		b.WriteString("]")
	}
	if trace != "" {
		b.WriteString("[")
		b.WriteString(trace)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogEnginePrompt(engine, trace, system, user string) {
	logEngine("prompt", engine, trace, []engineSection{
		{Title: "SYSTEM", Body: system},
		{Title: "USER", Body: user},
	})
}

func LogEngineOutput(engine, trace, raw string) {
	logEngine("output", engine, trace, []engineSection{{Title: "RAW", Body: raw}})
}

func LogEngineFailure(engine, trace, detail string) {
	logEngine("failure", engine, trace, []engineSection{{Title: "ERROR", Body: detail}})
}

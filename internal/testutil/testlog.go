// Package testlog provides an in-memory logx.Logger for assertions on
// what a component logged.
package testlog

import (
	"sync"

	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Entry is one recorded call.
type Entry struct {
	Level  string
	Msg    string
	Fields []logx.Field
}

// Field returns the last value logged under key.
func (e Entry) Field(key string) (any, bool) {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value, true
		}
	}
	return nil, false
}

// Recorder collects entries from every logger derived from it.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Recorder { return &Recorder{} }

func (r *Recorder) Logger() logx.Logger { return &recLogger{rec: r} }

// Entries returns a snapshot.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Find returns the first entry with the given message.
func (r *Recorder) Find(msg string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Recorder) Has(msg string) bool {
	_, ok := r.Find(msg)
	return ok
}

type recLogger struct {
	rec  *Recorder
	with []logx.Field
}

func (l *recLogger) record(level, msg string, fields []logx.Field) {
	all := make([]logx.Field, 0, len(l.with)+len(fields))
	all = append(all, l.with...)
	all = append(all, fields...)

	l.rec.mu.Lock()
	l.rec.entries = append(l.rec.entries, Entry{Level: level, Msg: msg, Fields: all})
	l.rec.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f ...logx.Field) { l.record("debug", msg, f) }
func (l *recLogger) Info(msg string, f ...logx.Field)  { l.record("info", msg, f) }
func (l *recLogger) Warn(msg string, f ...logx.Field)  { l.record("warn", msg, f) }
func (l *recLogger) Error(msg string, f ...logx.Field) { l.record("error", msg, f) }

func (l *recLogger) With(f ...logx.Field) logx.Logger {
	with := make([]logx.Field, 0, len(l.with)+len(f))
	with = append(with, l.with...)
	with = append(with, f...)
	return &recLogger{rec: l.rec, with: with}
}

func (l *recLogger) Sync() error { return nil }

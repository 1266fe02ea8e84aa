package es

import "log/slog"

// Version is the position of an event within its aggregate stream.
// Streams run 1..N; version 0 is the implicit empty state, stored only as
// the Initialized marker row. On an event, 0 means "not yet assigned".
// The expected version carried by an append call is the optimistic
// concurrency precondition: it must equal the persisted stream head.
type Version int

func (v Version) Int() int                             { return int(v) }
func (v Version) SlogAttr() slog.Attr                  { return newSlogVersionAttr("version", v) }
func (v Version) SlogAttrWithKey(key string) slog.Attr { return newSlogVersionAttr(key, v) }

func newSlogVersionAttr(key string, v Version) slog.Attr { return slog.Int(key, int(v)) }

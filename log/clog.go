/*
Package log provides Context-carried logging metadata plus logging helper functions,
used throughout the Aid dispatch core and its background workers.
*/
package log

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/golang/glog"
)

// unique type to prevent assignment collisions on the context key.
type fieldsContextKeyType struct{}

var fieldsContextKey = fieldsContextKeyType{}

const defaultVerbosity glog.Level = 3

// fields is an ordered key/value list attached to a context. A slice, rather than a
// map, so a job's log lines keep a stable field order across ticks.
type fields []any

func init() {
	// -v defaults to 3 so tests and ad-hoc runs get useful output without a flag.
	if vFlag := flag.Lookup("v"); vFlag != nil {
		// nolint:errcheck
		vFlag.Value.Set(fmt.Sprintf("%d", defaultVerbosity))
	}
}

type VerboseLogger struct {
	level glog.Level
}

// V returns a logger aware of glog -v=[0-9] verbosity levels.
func V(level glog.Level) *VerboseLogger {
	return &VerboseLogger{level: level}
}

// WithLogValues returns a context carrying args appended after any fields already
// attached to ctx. args must be an even-length key/value sequence.
func WithLogValues(ctx context.Context, args ...string) context.Context {
	existing, _ := ctx.Value(fieldsContextKey).(fields)

	merged := make(fields, len(existing), len(existing)+len(args))
	copy(merged, existing)
	for i := 1; i < len(args); i += 2 {
		merged = append(merged, args[i-1], args[i])
	}
	return context.WithValue(ctx, fieldsContextKey, merged)
}

// requestIDOf scans f for a "request_id" entry, returning "" if none is present.
func requestIDOf(f fields) string {
	for i := 0; i+1 < len(f); i += 2 {
		key, ok := f[i].(string)
		if !ok || key != "request_id" {
			continue
		}
		id, _ := f[i+1].(string)
		return id
	}
	return ""
}

func (v *VerboseLogger) logCtx(ctx context.Context, message string, args ...any) {
	if !glog.V(v.level) {
		return
	}
	f, _ := ctx.Value(fieldsContextKey).(fields)

	allArgs := make([]any, 0, len(f)+len(args)+2)
	allArgs = append(allArgs, f...)
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs, "caller", caller(3))

	if requestID := requestIDOf(f); requestID != "" {
		Log(requestID, message, allArgs...)
	} else {
		LogNoRequestID(message, allArgs...)
	}
}

func (v *VerboseLogger) LogCtx(ctx context.Context, message string, args ...any) {
	v.logCtx(ctx, message, args...)
}

func LogCtx(ctx context.Context, message string, args ...any) {
	V(defaultVerbosity).logCtx(ctx, message, args...)
}

// moduleRoot resolves once, on first use, to the directory one level above this package.
var moduleRoot = sync.OnceValue(func() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..")
})

// caller returns filenames relative to the module root, e.g. dispatch/service.go:58
func caller(depth int) string {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		return "unknown"
	}
	rel, err := filepath.Rel(moduleRoot(), file)
	if err != nil {
		rel = file
	}
	return rel + ":" + strconv.Itoa(line)
}

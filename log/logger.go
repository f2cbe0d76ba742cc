package log

import (
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	gocache "github.com/patrickmn/go-cache"
)

const loggerCacheTTL = 6 * time.Hour

var loggerCache = gocache.New(loggerCacheTTL, 10*time.Minute)

// logOutput is a var, not a literal os.Stderr, so tests can redirect it.
var logOutput io.Writer = os.Stderr

// AddContext attaches keyvals to the cached logger for requestID. Later logging for that
// request ID includes them until the cache entry expires, loggerCacheTTL after the last write.
func AddContext(requestID string, keyvals ...interface{}) {
	cacheLogger(requestID, kitlog.With(getLogger(requestID), redactKeyvals(keyvals...)...))
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogNoRequestID logs in situations without a request ID, e.g. background worker ticks.
// Should be used sparingly, with as much context packed into the message/keyvals as possible.
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(baseLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	withMsg := kitlog.With(getLogger(requestID), "msg", message, "err", err.Error())
	_ = withMsg.Log(redactKeyvals(keyvals...)...)
}

func getLogger(requestID string) kitlog.Logger {
	if cached, ok := loggerCache.Get(requestID); ok {
		return cached.(kitlog.Logger)
	}

	logger := kitlog.With(baseLogger(), "request_id", requestID)
	cacheLogger(requestID, logger)
	return logger
}

// cacheLogger upserts logger into loggerCache, resetting its TTL.
func cacheLogger(requestID string, logger kitlog.Logger) {
	loggerCache.SetDefault(requestID, logger)
}

func baseLogger() kitlog.Logger {
	return kitlog.With(kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logOutput)), "ts", kitlog.DefaultTimestampUTC)
}

func redactKeyvals(keyvals ...interface{}) []interface{} {
	res := make([]interface{}, 0, len(keyvals))
	for i := 1; i < len(keyvals); i += 2 {
		res = append(res, keyvals[i-1], redactValue(keyvals[i]))
	}
	return res
}

func redactValue(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return RedactURL(s)
	case url.URL:
		return s.Redacted()
	case *url.URL:
		if s == nil {
			return nil
		}
		return s.Redacted()
	default:
		return v
	}
}

// RedactURL strips credentials from str if it looks like a URL, leaving it untouched
// otherwise.
func RedactURL(str string) string {
	lower := strings.ToLower(str)
	if !strings.HasPrefix(lower, "http") && !strings.HasPrefix(lower, "s3") {
		return str
	}

	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}

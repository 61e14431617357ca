package log

import (
	"net/url"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateScheme is the output path scheme served by lumberjack,
// e.g. "rotate:///var/log/hmi-broker.log".
const RotateScheme = "rotate"

var (
	sinkOnce sync.Once
	sinkErr  error

	sinkMu     sync.Mutex
	sinkPolicy = RotateOptions{MaxSize: 100, MaxBackups: 3, MaxAge: 7}
)

type rotateSink struct {
	*lumberjack.Logger
}

// Sync is a no-op; lumberjack writes through on every call.
func (rotateSink) Sync() error { return nil }

func registerRotateSink(policy RotateOptions) error {
	sinkMu.Lock()
	sinkPolicy = policy
	sinkMu.Unlock()

	sinkOnce.Do(func() {
		sinkErr = zap.RegisterSink(RotateScheme, func(u *url.URL) (zap.Sink, error) {
			sinkMu.Lock()
			defer sinkMu.Unlock()
			return rotateSink{&lumberjack.Logger{
				Filename:   u.Path,
				MaxSize:    sinkPolicy.MaxSize,
				MaxBackups: sinkPolicy.MaxBackups,
				MaxAge:     sinkPolicy.MaxAge,
				Compress:   sinkPolicy.Compress,
			}}, nil
		})
	})
	return sinkErr
}

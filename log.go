package aerobasic

import (
	"fmt"
	"io"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered at the given level
// (debug, info, warn or error) and stamped with the provided subsystem.
func NewLogger(w io.Writer, lvl, subsys string) (kitlog.Logger, error) {
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "", "info":
		opt = level.AllowInfo()
	case "warn", "warning":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "none":
		opt = level.AllowNone()
	default:
		return nil, fmt.Errorf("%w: unknown log level %q", ErrConfiguration, lvl)
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	klog = level.NewFilter(klog, opt)
	return kitlog.With(klog, "subsys", subsys), nil
}

// orNop returns a no-op logger if l is nil.
func orNop(l kitlog.Logger) kitlog.Logger {
	if l == nil {
		return kitlog.NewNopLogger()
	}
	return l
}

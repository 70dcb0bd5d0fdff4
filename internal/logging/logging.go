// Package logging centralizes the daemon's logging setup around a single
// leveled logger instead of the three competing loggers the teacher tooling
// accumulated over time (glug, apex/log, distillog). Every component in this
// module logs through here.
package logging

import (
	"flag"
	"os"

	log "github.com/msolo/go-bis/glug"
)

// Span wraps glug's Tracef/Finish pattern so callers can time an operation
// with a single defer, matching cmd/git-sync/cmd.go's exec tracing idiom.
type Span struct {
	finish func()
}

func (s *Span) Finish() {
	if s.finish != nil {
		s.finish()
	}
}

// Trace starts a performance span logged at TRACE level on completion.
func Trace(format string, args ...interface{}) *Span {
	t := log.Tracef(format, args...)
	return &Span{finish: t.Finish}
}

func Infof(format string, args ...interface{})    { log.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { log.Warningf(format, args...) }
func Warningln(args ...interface{})               { log.Warningln(args...) }
func Fatalf(format string, args ...interface{})   { log.Fatalf(format, args...) }
func Fatal(args ...interface{})                   { log.Fatal(args...) }
func Exit(err error)                              { log.Exit(err) }

// RegisterFlags wires glug's verbosity/level flags into the given flag set,
// the way cmd/git-preflight registers them on flag.CommandLine.
func RegisterFlags(fs *flag.FlagSet) {
	log.RegisterFlags(fs)
}

// SetLevelFromEnv mirrors the teacher's GIT_TRACE / GIT_TRACE_PERFORMANCE
// convention: any value of envVar other than "" or "0" selects INFO;
// otherwise the level is defaultLevel.
func SetLevelFromEnv(envVar, defaultLevel string) {
	level := os.Getenv(envVar)
	if level == "" || level == "0" {
		level = defaultLevel
	} else {
		level = "INFO"
	}
	log.SetLevel(level)
}

// Bootstrap sets glug's initial level; glug already formats its own output
// lines in glog's classic style, so there's no separate formatter to
// install. CLI entrypoints call this once in main().
func Bootstrap(defaultLevel string) {
	log.SetLevel(defaultLevel)
}

// Package logging constructs the zap logger shared by all three
// binaries. Grounded on kubectl-dns/cmd/main.go's
// zap.New(zap.UseDevMode(verbose), zap.WriteTo(os.Stdout)) construction,
// generalized from controller-runtime's logr-wrapped zap (there is no
// client.Object to carry a context-scoped logger here) down to
// go.uber.org/zap used directly.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger: development encoding (console, caller
// line, debug level) under verbose, production encoding (JSON, info
// level) otherwise, the same two-mode split as zap.UseDevMode.
func New(verbose bool) *zap.SugaredLogger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Falls back to a basic stdout logger; this should not happen
		// with the static config above.
		logger = zap.NewExample()
	}
	return logger.Sugar()
}

// Component returns a child logger scoped to a named loop, mirroring the
// teacher's log.FromContext(ctx).WithValues("component", ...) idiom.
func Component(l *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return l.With("component", name)
}

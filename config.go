package ubundle

import "github.com/golobby/cast"

// LogLevelKey is the one construction-time option the core itself
// interprets (spec.md §6): a numeric log verbosity, name chosen by the
// embedding layer. The core does not act on it directly — Logger is an
// external seam — but exposes LogLevelFromConfig so front ends can build
// their own Logger at the verbosity the operator asked for without
// reimplementing the cast.
const LogLevelKey = "log.level"

// LogLevelFromConfig extracts and casts the numeric log-level option out of
// a construction config map, the way the teacher's config feeders cast
// loosely-typed values. Returns 0 (the default) if the key is absent.
func LogLevelFromConfig(cfg map[string]string) (int, error) {
	raw, ok := cfg[LogLevelKey]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := cast.FromString(raw, cast.Int)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

package config

import "github.com/savannahghi/idrclient/internal/mlog"

// ResolveLevel combines the configured LOGGING.level with the CLI's -v
// repeat count: any -v at all overrides the configured level (§6.1's
// verbosity flags are meant to let an operator turn up logging ad hoc,
// without editing config), otherwise the configured level applies.
func ResolveLevel(configured string, verbosity int) (mlog.Level, error) {
	if verbosity > 0 {
		return mlog.FromVerbosity(verbosity), nil
	}

	return mlog.ParseLevel(configured)
}

package main

import (
	"errors"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/registry"
)

// exitCodeForError maps a boot-time failure to the process exit codes §6.1
// reserves for them: 64 for a malformed manifest/bundle, 65 for missing or
// invalid configuration, 70 for anything else that is unrecoverable at
// boot. A graceful shutdown by signal exits 0 and never reaches this
// function.
func exitCodeForError(err error) int {
	var cfgErr *registry.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 65
	}
	switch apperr.KindOf(err) {
	case apperr.KindBundleIntegrity:
		return 64
	case apperr.KindConfiguration:
		return 65
	default:
		return 70
	}
}

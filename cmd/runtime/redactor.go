package main

import "github.com/nwalker85/agentfoundry-sub000/audit"

// valueRedactor hides any Metadata["value"] entry at query time, mirroring
// audit_test.go's redactSecrets helper: the durable record keeps whatever a
// caller stored (secret paths, never secret values themselves — callers
// are responsible for that per audit.Entry's own doc comment), but query
// callers never see raw tool/worker output values that might embed
// sensitive content.
type valueRedactor struct{}

func (valueRedactor) Redact(e audit.Entry) audit.Entry {
	if e.Metadata == nil {
		return e
	}
	if _, ok := e.Metadata["value"]; !ok {
		return e
	}
	cp := make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		if k == "value" {
			cp[k] = "[redacted]"
			continue
		}
		cp[k] = v
	}
	e.Metadata = cp
	return e
}

package metrics

import pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"

// Outcome labels shared by the request-level counters.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
)

// OutcomeFor maps an error to a low-cardinality outcome label.
func OutcomeFor(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation:
		return "invalid"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeWriteConflict:
		return "conflict"
	case pkgerrors.CodeStateConflict, pkgerrors.CodeIdempotency:
		return "rejected"
	case pkgerrors.CodeForbidden:
		return "forbidden"
	case pkgerrors.CodeDependency:
		return "dependency"
	default:
		return "error"
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

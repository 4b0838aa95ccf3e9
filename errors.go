package admitgov

import "fmt"

// InvalidConfigError is returned by New when the supplied Config is
// internally inconsistent (e.g. an interactive reserve that would consume
// the entire concurrency ceiling).
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("admitgov: invalid config: %s", e.Reason)
}

// DoubleReleaseError is returned by Release in strict mode when lease_id
// was already released. In non-strict mode the same condition is a silent
// no-op.
type DoubleReleaseError struct {
	LeaseID string
}

func (e *DoubleReleaseError) Error() string {
	return fmt.Sprintf("admitgov: lease %q already released", e.LeaseID)
}

// UnknownLeaseError is returned by Release in strict mode when lease_id
// was never issued, or has already been forgotten. In non-strict mode the
// same condition is a silent no-op.
type UnknownLeaseError struct {
	LeaseID string
}

func (e *UnknownLeaseError) Error() string {
	return fmt.Sprintf("admitgov: unknown lease %q", e.LeaseID)
}

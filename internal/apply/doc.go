// Package apply drives a fix plan through its state machine:
//
//	PLANNED -> VALIDATING -> APPLYING -> VERIFYING -> COMMITTED
//	                                   \-> ROLLED_BACK | FAILED
//
// The contract is all-or-nothing: a device ends in its pre-plan state or
// its fully committed state, with the single exception of FAILED, where
// a rollback command itself failed and the inconsistency is flagged for
// manual intervention instead of being retried.
//
// Steps run strictly in declared order and each is verified before the
// next starts. A step gets one retry; once rollback begins nothing is
// retried. Command timeouts are failures. Cancellation is honored at
// step boundaries only, so a half-applied step is never abandoned
// mid-command, and rollback itself ignores cancellation.
package apply

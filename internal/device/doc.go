// Package device abstracts the command channel to a managed router. A
// Session is the exclusive channel one remediation session holds while a
// fix plan is in flight; command execution is the only blocking
// operation in the engine and is always timeout-bounded.
//
// SimSession is a stateful in-memory double used by tests and the demo
// command. It records a transcript, supports scripted outputs and
// injected failures, and exposes a field snapshot so rollback can be
// verified observable-state against observable-state.
package device

// Package learning closes the feedback loop: every terminal fix outcome,
// whether observed by the applier or reported by an operator, becomes an
// immutable history entry and nudges the priors of the rule that
// produced the fix. Committed plans reinforce, rollbacks and failures
// decay.
package learning

// Package inference turns a detected network problem into ranked causal
// hypotheses. Diagnosis runs forward chaining over the knowledge base:
// concluded causes are fed back as derived symptoms until no new rule
// fires, with each rule allowed to fire at most once per derivation.
//
// Conflicting conclusions are resolved by posterior, then specificity,
// and every such resolution is logged with both competing rule IDs. An
// optional external probability estimate is blended into the top
// hypothesis; an unavailable or under-trained estimator degrades the
// diagnosis to rule-based-only rather than failing it.
package inference

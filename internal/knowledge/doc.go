// Package knowledge implements the knowledge base: troubleshooting rules and
// the history of applied fixes.
//
// The rule set is append-only. Rules are keyed by unique ID and carry a raw
// prior weight; priors exposed to callers are always renormalized within a
// category so they form a distribution. Matching filters rules by category,
// evaluates each rule's condition against the problem's symptoms and
// evidence, and renormalizes posteriors across the matching rules so they
// sum to 1.
//
// History entries are immutable. Recording an outcome appends an entry and
// nudges the involved rule's weight toward the observed success or failure,
// bounded away from 0 and 1 so no rule ever collapses to certainty.
//
// Rule packs can be loaded from YAML files and hot-appended by a file
// watcher; packs never replace existing rules.
package knowledge

// Package detect turns a normalized device snapshot into Problem
// records. One detector per protocol category registers behind a single
// capability interface, so adding a protocol never touches the inference
// engine. Detectors compare observed state against the device baseline
// and protocol defaults, tag symptoms, and attach the evidence fields
// rules and fix templates consume; they never set confidence.
package detect

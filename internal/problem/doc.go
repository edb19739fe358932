// Package problem defines the normalized problem model shared by detectors,
// the knowledge base, and the inference engine.
//
// A Problem is a snapshot of observed symptoms for one device and one
// protocol category. Detectors produce Problems; they never assign
// confidence. Confidence is assigned during diagnosis.
package problem

// Package session coordinates the diagnose, recommend and apply
// operations per device. Each device has one lock: a diagnosis queues
// behind an in-flight fix plan on the same device, and two plans never
// run concurrently against one device. Operations on different devices
// proceed in parallel.
package session

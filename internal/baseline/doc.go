// Package baseline holds the known-good per-device configuration values
// that fix templates substitute from: expected IPs, AS and process
// numbers, timer values, router IDs. Values are strings as they appear
// in device configuration; fix customization never invents a value that
// is not present here or in the problem's evidence.
package baseline

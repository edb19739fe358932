// Package fixplan turns a diagnosed hypothesis into an executable fix
// plan. Templates carry IOS command skeletons with per-step verification
// and a paired rollback; customization substitutes placeholders strictly
// from the problem's evidence and the device baseline and fails rather
// than guess a missing value. Every mutating step must declare its
// rollback up front, which is what makes the applier's all-or-nothing
// contract possible.
package fixplan

// Package diag defines the diagnostic model shared by the declaration
// surface and the lowering phases.
//
//   - Provide deterministic, serialisable data structures that capture
//     findings produced by decl loading / layout / ABI lowering.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// Package diag performs no formatting, IO, or CLI integration; rendering
// lives with the driver and the command layer.
//
// Internal logic errors of the lowering engine are not diagnostics: a
// violated ABI invariant is a panic, never a Diagnostic. Diagnostics cover
// bad declaration input and not-yet-implemented ABI corners, both of which
// are reportable to the user.
package diag

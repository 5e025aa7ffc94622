// Package utils provides shared low-level helpers used throughout the
// flowmesh internals: string truncation for log sanitization, deep merging of
// configuration maps, and lenient JSON decoding that repairs slightly
// malformed documents before giving up.
//
// Key entry points: [TruncateString] for bounded log output, [DeepMergeMaps]
// for layering user configuration over defaults, and [DecodeLenientJSON] for
// tolerant payload parsing.
package utils

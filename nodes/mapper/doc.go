// Package mapper implements declarative structural data transformation.
// A mapper node reshapes event payloads using JMESPath source expressions,
// dotted target paths, per-field transforms, and configurable error
// dispositions, in either object mode (one document in, one document out) or
// array mode (locate an array, filter it with a JsonLogic predicate, map each
// item).
package mapper

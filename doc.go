// Package sop implements read-only, inter-process-shareable containers backed
// by System V shared-memory segments (or a process-private heap region as an
// alternate backing).
//
// A producer process serializes an in-memory vector, map, set, hash map, hash
// set, or nested variant to a binary file via the wire package. A consumer
// process memory-maps that file into a shared segment exactly once per path
// (segment and manager packages); every subsequent consumer attaches to the
// same segment without copying. Because the serialized layout is the same
// layout the container uses at run time (container package, built on top of
// the arena package's bump allocator), lookup requires no deserialization.
package sop

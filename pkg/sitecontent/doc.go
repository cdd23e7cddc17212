// Package sitecontent keeps the editable content of the public school site as
// a single schema-less JSON document and applies partial updates to it.
//
// A Service loads the current document from a Store, deep-merges the caller's
// patch into it, saves the result and then notifies Invalidators that the
// views rendered from the touched sections are stale. Stores for memory,
// filesystem, Postgres and S3 are provided under store/, and invalidators for
// Redis pub/sub and HTTP webhooks under invalidate/.
//
// # Merge Semantics
//
// Objects merge key by key, recursively. Arrays, scalars and null replace
// whatever was stored at that key, including when the stored value has a
// different type. There is no delete operation: a null patch value stores a
// null.
//
// # Concurrency
//
// The load, merge and save cycle is not serialized across callers. Two
// concurrent updates race and the last save wins.
package sitecontent

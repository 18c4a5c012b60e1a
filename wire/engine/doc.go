// Package engine defines the contract between the wire protocol server and
// the external query execution engine: SQL text in, a lazy row stream plus
// a terminal outcome out. The wire layer streams rows to the client as the
// engine produces them and never materializes a result set.
package engine

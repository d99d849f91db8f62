// Package persist converts callback chains to and from flat ChainRecords.
//
// Serialize walks a chain from its head and emits one entry per callback.
// Receivers go into a side table of named slots (target0, target1, ...)
// so a receiver used by several entries is saved once; WithTargetMode
// switches to embedding them inline instead. Deserialize follows the
// head and next links, resolves every name through the Platform, and
// rebuilds the chain in the recorded invocation order.
//
// Records travel as canonical JSON or YAML documents (EncodeJSON,
// EncodeYAML, DecodeFile) and can be checked against the embedded CUE
// schema with Validate.
package persist

//go:build !release

package core

// DebugEnabled mirrors a debug build. It drives defaults only: validation
// and sample verification are passed to their consumers explicitly.
const DebugEnabled = true

//go:build release

package core

const DebugEnabled = false

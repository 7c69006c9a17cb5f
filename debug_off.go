//go:build !btrec_debug

package btrec

// debugAsserts is false in normal builds: assertf never raises.
const debugAsserts = false

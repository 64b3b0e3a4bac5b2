// Package config holds the format-agnostic model of everything gridrunner
// reads from disk: the module manifests (runner and asset definitions) and
// the user's grid of steps and resources.
//
// The dag and executor packages consume only this model, never raw HCL.
// Loader and Converter are the seams a concrete format implementation
// plugs into; the hcl package provides the one that ships.
package config

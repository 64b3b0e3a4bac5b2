// Package hcl implements the config.Loader and config.Converter interfaces
// for HCL sources. It parses module manifests and grid files into the
// format-agnostic model and binds decoded argument blocks onto the Go
// structs module handlers receive.
package hcl

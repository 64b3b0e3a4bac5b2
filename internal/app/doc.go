// Package app wires the gridrunner services together. It defines the main
// App struct, its configuration, and the primary execution lifecycle,
// decoupled from any specific entrypoint like a CLI or server.
package app

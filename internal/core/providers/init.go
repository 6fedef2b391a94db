// Package providers registers provider casters with the core registry.
// Import this package to ensure all casters are registered.
package providers

// This file exists to provide a single import point.
// Each provider file uses init() to register its caster.

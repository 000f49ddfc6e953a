// Package metrics exposes prometheus collectors for docstore operations and
// units of work. A nil *Registry is valid and records nothing.
package metrics

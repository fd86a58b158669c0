// Package template defines the engine-agnostic rendering contract. The pongo
// subpackage implements it on pongo2.
package template

// Package npz unpacks NumPy .npz archives and picks the member that holds
// point geometry.
//
// Every member is decoded independently: a corrupt member is reported on
// its Entry and never aborts extraction of the others.
package npz

// Package smklog provides the storage-agnostic persistence layer used by the
// SMK training log: composable specifications, a generic repository staged
// through a unit of work, additive schema probing, sequence-based id issuance,
// a bounded retry executor and a typed error taxonomy.
//
// Storage engines plug in through the Provider contract; see the smkgorm,
// smkbun and smkmongo adapters.
package smklog

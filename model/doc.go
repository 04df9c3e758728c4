// Package model contains the in-memory representation of media access
// requests, their decision ledger entries and the fixed approval graph that
// the workflow engine enforces.
//
// The transition table defined in transition.go is the only source of legal
// status changes; storage and service layers never write a status that is not
// the target of one of its edges.
package model

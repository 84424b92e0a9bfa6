// Package message holds the canonical message record, its flag bitset, and the
// Store that maps ids to records.
//
// Records are created from server payloads by Store.Process, which is
// idempotent: re-ingesting a known id overwrites server-owned fields on the
// existing record. Identifiers are server-assigned and never rewritten except
// when a locally echoed record (provisional id) is re-keyed by Store.Reify once
// the server confirms it.
package message

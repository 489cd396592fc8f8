// Package storage provides utilities shared across storage adapter
// implementations, including sentinel errors and tenant context helpers.
//
// Storage adapters (memory, postgres) implement the transport.RecordStore
// interface defined in pkg/transport/handler.go and persist conversion
// records, not MusicXML documents.
package storage

// Package docstore defines the contract for persisting captured documents.
// Implementations live in subpackages (memory, postgres, firestore); this
// package must not import database drivers or concrete clients.
package docstore

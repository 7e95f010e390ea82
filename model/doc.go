// Package model defines the domain types reconstructed from broker state:
// workers, tasks, queues, and the immutable Snapshot that aggregates them.
//
// The types here are plain values. They carry no broker knowledge and no
// behavior beyond small predicates and ordering helpers; everything is
// populated by a broker implementation and published through a Snapshot.
//
// A Snapshot is immutable once published. All three collections in a
// Snapshot originate from the same fetch cycle, so readers never observe
// tasks from one cycle next to queues from another.
package model

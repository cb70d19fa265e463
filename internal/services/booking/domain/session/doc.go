// Package session models the lifecycle of a booked studio engagement.
//
// The aggregate moves through an explicit transition table plus a global
// cancellation edge. Every transition runs an ordered guard list and reports
// all violations at once. Derived fields (deadlines, deposit, refund) are
// deterministic functions of the aggregate and the clock; paid and balance
// amounts are projections over the append-only payment ledger and are never
// stored authoritatively.
package session

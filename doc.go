// Package espp computes the tax positions of an employee stock purchase plan
// participant from the raw transaction history of their broker accounts.
//
// The core functionalities include:
//   - Transaction Schema: the common record shape every broker importer
//     normalizes into, and its JSONL encoding.
//   - Lot Ledger: per symbol FIFO queues of acquisition lots, consumed by
//     sales, producing realized gains classified by holding period.
//   - Reconciliation: wires are matched against dividends and sale proceeds,
//     computed balances are checked against externally supplied expected
//     balances.
//   - Year Carryover: several strategies build the opening Holdings snapshot
//     of a year, depending on how complete the available history is.
//   - Tax Report: realized sales, dividends and totals of a tax year.
//
// A run either succeeds with a consistent report and snapshot, or fails with
// a structured error naming the faulty symbol, date or record. Runs share
// nothing but a read only RateTable.
//
// This package serves as the foundational logic for the `espp2`
// command-line tool.
package espp

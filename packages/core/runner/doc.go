// Package runner executes data-driven scenarios.
//
// A Scenario pairs a list of rows with a RowFunc. The Executor runs the
// function once per row, sequentially or with bounded parallelism, and
// records one Outcome per row in declared order. A failing or panicking row
// never stops the rows after it.
//
// A scenario with zero rows is reported with VerdictNoRows rather than as a
// pass, so callers can tell an empty data source from a green run.
package runner

// Package output provides formatters for scenario reports.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Formatters accumulate reports and write structured formats on Flush. The
// console formatter also implements runner.Listener for live progress.
package output

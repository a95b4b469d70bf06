package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one scenario
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single row
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats reports as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatReport(suite string, report *runner.Report) {
	passed, failed := report.Counts()
	ts := JUnitTestSuite{
		Name:      suite + "/" + report.Scenario,
		Tests:     passed + failed,
		Time:      report.Duration.Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(report.Outcomes)),
	}

	if report.Verdict() == runner.VerdictNoRows {
		ts.Tests = 1
		ts.Skipped = 1
		ts.TestCases = append(ts.TestCases, JUnitTestCase{
			Name:      report.Scenario,
			ClassName: suite,
			Skipped:   &JUnitSkipped{Message: "no rows"},
		})
	}

	for _, o := range report.Outcomes {
		tc := JUnitTestCase{
			Name:      o.Name,
			ClassName: suite + "." + report.Scenario,
			Time:      o.Duration.Seconds(),
		}

		if !o.Passed() {
			d := describe(o.Err)
			if d.Abort {
				ts.Errors++
				tc.Error = &JUnitError{
					Message: d.Message,
					Type:    errorType(o.Err),
					Content: strings.Join(append(d.lines(), d.Curl), "\n"),
				}
			} else {
				ts.Failures++
				tc.Failure = &JUnitFailure{
					Message: d.Message,
					Type:    "AssertionError",
					Content: strings.Join(append(d.lines(), d.Curl), "\n"),
				}
			}
		}

		ts.TestCases = append(ts.TestCases, tc)
	}

	hooks := map[string]error{"teardown": report.TeardownErr}
	if len(report.Outcomes) == 0 {
		hooks["setup"] = report.SetupErr
	}
	for _, name := range []string{"setup", "teardown"} {
		if hooks[name] == nil {
			continue
		}
		ts.Tests++
		ts.Errors++
		ts.TestCases = append(ts.TestCases, JUnitTestCase{
			Name:      name,
			ClassName: suite + "." + report.Scenario,
			Error:     &JUnitError{Message: hooks[name].Error(), Type: "HookError"},
		})
	}

	f.testSuites = append(f.testSuites, ts)
}

func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "contractkit",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}

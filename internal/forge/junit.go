package forge

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
)

const junitSuiteName = "forge"

// FormatJUnit renders the run as a JUnit XML document with a single test case named after the
// test suite, so that CI systems can display the outcome next to unit test results.
func FormatJUnit(c *ForgeContext, result *ForgeResult) string {
	duration := junitDuration(result.EndTime.Sub(result.StartTime))
	report := FormatReport(c, result)

	testcase := junit.Testcase{
		Name:      c.TestSuite,
		Classname: fmt.Sprintf("%s.%s", junitSuiteName, c.Namespace),
		Time:      duration,
		SystemOut: &junit.Output{Data: report},
	}
	suite := junit.Testsuite{
		Name:      junitSuiteName,
		Tests:     1,
		Time:      duration,
		Timestamp: result.StartTime.UTC().Format(time.RFC3339),
	}
	switch result.State {
	case StatePass:
	case StateFail:
		testcase.Failure = &junit.Result{Message: result.Format(), Type: string(result.State), Data: report}
		suite.Failures = 1
	case StateSkip:
		testcase.Skipped = &junit.Result{Message: result.Format()}
		suite.Skipped = 1
	default:
		testcase.Error = &junit.Result{Message: fmt.Sprintf("forge run ended in state %s", result.State)}
		suite.Errors = 1
	}
	suite.Testcases = []junit.Testcase{testcase}

	suites := junit.Testsuites{
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Errors:   suite.Errors,
		Skipped:  suite.Skipped,
		Time:     duration,
		Suites:   []junit.Testsuite{suite},
	}
	out, err := xml.MarshalIndent(suites, "", "\t")
	if err != nil {
		return fmt.Sprintf("error rendering junit report: %s", err)
	}
	return xml.Header + string(out) + "\n"
}

func junitDuration(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

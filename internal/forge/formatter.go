package forge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lines of test runner output enclosing the machine-readable report.
const (
	ReportBeginSentinel = "====json-report-begin==="
	ReportEndSentinel   = "====json-report-end==="
)

// ForgeFormatter renders a result into the contents of one output target.
type ForgeFormatter struct {
	// File the rendering is written to.
	Target string
	Format func(c *ForgeContext, result *ForgeResult) string
}

// NewForgeFormatter returns a formatter writing format's rendering to target.
func NewForgeFormatter(target string, format func(c *ForgeContext, result *ForgeResult) string) ForgeFormatter {
	return ForgeFormatter{Target: target, Format: format}
}

// FormatOutput renders the raw captured output.
func FormatOutput(_ *ForgeContext, result *ForgeResult) string {
	return result.Output
}

type jsonReport struct {
	Text string `json:"text"`
}

// FormatReport extracts the "text" field of the JSON report embedded in the output between
// ReportBeginSentinel and ReportEndSentinel. Missing, malformed and empty reports each produce a
// diagnostic instead.
func FormatReport(_ *ForgeContext, result *ForgeResult) string {
	reportLines := extractReportLines(result.Output)
	if len(reportLines) == 0 {
		return "Forge test runner terminated"
	}
	var report jsonReport
	if err := json.Unmarshal([]byte(strings.Join(reportLines, "")), &report); err != nil {
		return fmt.Sprintf("Forge report malformed: %s\n%s", err, strings.Join(reportLines, "\n"))
	}
	if report.Text == "" {
		return "Forge report text empty. See test runner output."
	}
	return report.Text
}

func extractReportLines(output string) []string {
	var reportLines []string
	recording := false
	for _, line := range strings.Split(strings.TrimRight(strings.ReplaceAll(output, "\r\n", "\n"), "\n"), "\n") {
		if line == ReportBeginSentinel || line == ReportEndSentinel {
			recording = !recording
		} else if recording {
			reportLines = append(reportLines, line)
		}
	}
	return reportLines
}

// FormatPreComment renders the PR comment posted before the outcome of a run is known.
// Links follow the last 15 minutes.
func FormatPreComment(c *ForgeContext, _ *ForgeResult) string {
	filter := RelativeTimeFilter{}
	return "\n" +
		"=====START PRE_FORGE COMMENT=====\n" +
		links(c, filter) +
		"=====END PRE_FORGE COMMENT=====\n"
}

// FormatComment renders the PR comment posted once a run is over. Links cover exactly the
// duration of the run.
func FormatComment(c *ForgeContext, result *ForgeResult) string {
	filter := AbsoluteTimeFilter{Start: result.StartTime, End: result.EndTime}
	return "\n" +
		"=====START FORGE COMMENT=====\n" +
		"```\n" +
		"```\n" +
		links(c, filter) +
		result.Format() + "\n" +
		"=====END FORGE COMMENT=====\n"
}

func links(c *ForgeContext, filter TimeFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Forge is running with `%s`\n", c.ImageTag)
	fmt.Fprintf(&b, "* [Grafana dashboard (auto-refresh)](%s)\n", DashboardLink(c.ClusterName, c.Namespace, c.ChainName(), filter))
	fmt.Fprintf(&b, "* [Validator 0 logs (auto-refresh)](%s)\n", ValidatorLogsLink(c.Namespace, c.ChainName(), filter))
	fmt.Fprintf(&b, "* [Humio Logs](%s)\n", HumioLogsLink(c.Namespace))
	return b.String()
}

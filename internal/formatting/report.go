package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/util"
)

// ReportFooter is appended to every generated report.
const ReportFooter = "*This report was generated by the Multi-Agent AI System*"

// ReportTitle turns a report type tag such as "executive_summary" into
// "Executive Summary Report".
func ReportTitle(reportType string) string {
	return util.TitleCase(strings.ReplaceAll(reportType, "_", " ")) + " Report"
}

// FormatReport wraps generated content with the standard header (title,
// generation time, audience) and footer.
func FormatReport(content, reportType, audience string, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ReportTitle(reportType))
	fmt.Fprintf(&b, "**Generated on:** %s\n", generatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "**Target Audience:** %s\n\n", util.TitleCase(audience))
	b.WriteString("---\n\n")
	b.WriteString(content)
	b.WriteString("\n\n---\n\n")
	b.WriteString(ReportFooter)
	b.WriteString("\n")
	return b.String()
}

// StripEnvelope returns the body of a report produced by FormatReport, or the
// input unchanged when it does not carry the standard header and footer.
func StripEnvelope(report string) string {
	start := strings.Index(report, "---\n\n")
	end := strings.LastIndex(report, "\n\n---\n\n"+ReportFooter)
	if start == -1 || end == -1 || end < start+5 {
		return report
	}
	return report[start+5 : end]
}

package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath string // Path to write the HTML file
	Title      string // Report title (default: "Smoke Test Report")
}

// GenerateHTML renders report.html from the report.json in reportDir.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, err := ReadReport(reportDir)
	if err != nil {
		return err
	}

	if cfg.Title == "" {
		cfg.Title = "Smoke Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(index, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title       string
	GeneratedAt string
	Index       *Index
	Duration    string
	PassRate    float64
}

func buildHTMLData(index *Index, cfg HTMLConfig) HTMLData {
	data := HTMLData{
		Title:       cfg.Title,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Index:       index,
		Duration:    formatDuration(index.Duration),
	}
	if index.Summary.Screens > 0 {
		data.PassRate = float64(index.Summary.PassedScreens) / float64(index.Summary.Screens) * 100
	}
	return data
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"duration": formatDuration,
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 24px; color: #222; }
table { border-collapse: collapse; margin-bottom: 24px; }
td, th { border: 1px solid #ddd; padding: 6px 10px; text-align: left; vertical-align: top; }
.passed { color: #1a7f37; } .failed { color: #cf222e; } .errored { color: #9a6700; } .skipped, .pending, .running { color: #666; }
img { max-height: 240px; margin-right: 6px; }
code { font-size: 12px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Run <code>{{.Index.RunID}}</code> &middot; {{.Index.App.Package}} &middot; <span class="{{.Index.Status}}">{{.Index.Status}}</span> &middot; {{.Duration}} &middot; generated {{.GeneratedAt}}</p>
<p>Devices: {{.Index.Summary.PassedDevices}} passed, {{.Index.Summary.FailedDevices}} failed, {{.Index.Summary.ErroredDevices}} errored &middot;
Screens: {{.Index.Summary.PassedScreens}}/{{.Index.Summary.Screens}} ({{printf "%.0f" .PassRate}}%)</p>
{{range .Index.Devices}}
<h2>{{.Serial}} <span class="{{.Status}}">{{.Status}}</span></h2>
{{with .Error}}<p class="errored">{{.}}</p>{{end}}
<table>
<tr><th>Screen</th><th>Status</th><th>Duration</th><th>Details</th><th>Screenshots</th></tr>
{{range .Screens}}
<tr>
<td>{{.ScreenID}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{duration .Duration}}</td>
<td>{{.FailureReason}}{{with .CrashLine}}<br><code>{{.}}</code>{{end}}{{with .DeviceLog}}<br><a href="{{.}}">device log</a>{{end}}</td>
<td>{{range .Screenshots}}<a href="{{.}}"><img src="{{.}}" alt="{{.}}"></a>{{end}}</td>
</tr>
{{end}}
</table>
{{end}}
</body>
</html>
`

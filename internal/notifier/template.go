package notifier

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
)

var runSummaryTemplate = template.Must(template.New("run-summary").Funcs(sprig.FuncMap()).Parse(
	"🚀 Script: {{.Name}}\nStatus: {{.Status}}\nElapsed: {{ durationRound .Elapsed }}",
))

type runSummaryData struct {
	Name    string
	Status  string
	Elapsed time.Duration
}

// FormatRunSummary renders the one-line run summary sent on script
// completion (§4.1): "🚀 Script: <name>\nStatus: <status>\nElapsed: <duration>".
func FormatRunSummary(name, status string, elapsed time.Duration) (string, error) {
	var buf bytes.Buffer
	if err := runSummaryTemplate.Execute(&buf, runSummaryData{Name: name, Status: status, Elapsed: elapsed}); err != nil {
		return "", fmt.Errorf("render run summary: %w", err)
	}
	return buf.String(), nil
}

var healthAlertTemplate = template.Must(template.New("health-alert").Parse(
	"🏥 Health-check alert\n\n{{range .Lines}}{{.}}\n{{end}}",
))

// FormatHealthAlert renders the batched health-check notification (§4.4).
func FormatHealthAlert(lines []string) (string, error) {
	var buf bytes.Buffer
	if err := healthAlertTemplate.Execute(&buf, struct{ Lines []string }{Lines: lines}); err != nil {
		return "", fmt.Errorf("render health alert: %w", err)
	}
	return buf.String(), nil
}

package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/olajoao/signal-desk/internal/model"
	"github.com/olajoao/signal-desk/internal/sender"
)

const cellLabel = "padding:8px;border-bottom:1px solid #eee;color:#666"
const cellValue = "padding:8px;border-bottom:1px solid #eee"

var alertTemplate = template.Must(template.New("alert").Parse(`
<div style="font-family:sans-serif;max-width:560px;margin:0 auto;padding:24px">
  <h2 style="margin:0 0 16px;color:#ef4444">Alert: {{.RuleName}}</h2>
  <table style="width:100%;border-collapse:collapse;margin-bottom:16px">
    <tr><td style="` + cellLabel + `">Event Type</td><td style="` + cellValue + `"><code>{{.EventType}}</code></td></tr>
    <tr><td style="` + cellLabel + `">Count</td><td style="` + cellValue + `">{{.Count}} / {{.Threshold}}</td></tr>
    <tr><td style="` + cellLabel + `">Window</td><td style="` + cellValue + `">{{.WindowSeconds}}s</td></tr>
  </table>
  <details style="margin-bottom:16px">
    <summary style="cursor:pointer;color:#666;font-size:14px">Event Metadata</summary>
    <pre style="background:#f5f5f5;padding:12px;border-radius:4px;font-size:12px;overflow-x:auto">{{.Metadata}}</pre>
  </details>
  <p style="color:#999;font-size:12px">Sent by SignalDesk</p>
</div>
`))

type alertView struct {
	RuleName      string
	EventType     string
	Count         int64
	Threshold     int64
	WindowSeconds int64
	Metadata      string
}

func newAlertView(p *model.Payload) alertView {
	return alertView{
		RuleName:      p.RuleName,
		EventType:     p.EventType,
		Count:         p.Count,
		Threshold:     p.Threshold,
		WindowSeconds: p.WindowSeconds,
		Metadata:      sender.PrettyMetadata(p.EventMetadata),
	}
}

// Subject returns the alert email subject line.
func Subject(p *model.Payload) string {
	return "[SignalDesk] Alert: " + p.RuleName
}

// RenderHTML renders the alert email body. Rule names and metadata are
// escaped.
func RenderHTML(p *model.Payload) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, newAlertView(p)); err != nil {
		return "", fmt.Errorf("failed to render alert email: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders the plain text alternative.
func RenderText(p *model.Payload) string {
	v := newAlertView(p)
	return fmt.Sprintf("Alert: %s\n\nEvent Type: %s\nCount: %d / %d\nWindow: %ds\n\nEvent Metadata:\n%s\n\nSent by SignalDesk\n",
		v.RuleName, v.EventType, v.Count, v.Threshold, v.WindowSeconds, v.Metadata)
}

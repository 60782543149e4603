package swaps

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

type emailKind int

const (
	emailNewRequest emailKind = iota
	emailAccepted
	emailRejected
)

type emailData struct {
	RecipientName string
	OtherName     string
	OfferedTitle  string
	OfferedWhen   string
	WantedTitle   string
	WantedWhen    string
	Link          string
}

var emailTemplates = template.Must(template.New("swaps").Parse(`
{{define "layout_start"}}<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">{{end}}
{{define "layout_end"}}<p style="color:#888;font-size:12px">SlotSwapper</p></div>{{end}}

{{define "new_request"}}{{template "layout_start"}}
<h2>New swap request</h2>
<p>Hi {{.RecipientName}},</p>
<p><strong>{{.OtherName}}</strong> wants to swap their slot <strong>{{.OfferedTitle}}</strong> ({{.OfferedWhen}})
for your slot <strong>{{.WantedTitle}}</strong> ({{.WantedWhen}}).</p>
<p><a href="{{.Link}}">Review the request</a></p>
{{template "layout_end"}}{{end}}

{{define "accepted"}}{{template "layout_start"}}
<h2>Swap accepted</h2>
<p>Hi {{.RecipientName}},</p>
<p><strong>{{.OtherName}}</strong> accepted your request. <strong>{{.WantedTitle}}</strong> ({{.WantedWhen}}) is now in your calendar,
and <strong>{{.OfferedTitle}}</strong> ({{.OfferedWhen}}) moved to theirs.</p>
<p><a href="{{.Link}}">Open your calendar</a></p>
{{template "layout_end"}}{{end}}

{{define "rejected"}}{{template "layout_start"}}
<h2>Swap rejected</h2>
<p>Hi {{.RecipientName}},</p>
<p><strong>{{.OtherName}}</strong> declined your request to swap <strong>{{.OfferedTitle}}</strong> for <strong>{{.WantedTitle}}</strong>.</p>
<p><a href="{{.Link}}">Browse the marketplace</a></p>
{{template "layout_end"}}{{end}}
`))

func renderEmail(kind emailKind, d emailData) (subject, html string, err error) {
	var name string
	switch kind {
	case emailNewRequest:
		name, subject = "new_request", "New swap request from "+d.OtherName
	case emailAccepted:
		name, subject = "accepted", "Your swap request was accepted"
	case emailRejected:
		name, subject = "rejected", "Your swap request was rejected"
	default:
		return "", "", fmt.Errorf("unknown email kind %d", kind)
	}

	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, d); err != nil {
		return "", "", err
	}
	return subject, strings.TrimSpace(buf.String()), nil
}

package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template names.
const (
	tplReceipt      = "receipt"
	tplConfirm      = "confirm"
	tplReminder     = "reminder"
	tplCancelled    = "cancelled"
	tplSlotCanceled = "slot-canceled"
	tplAdminConfirm = "admin-confirm"
	tplAdminDigest  = "admin-digest"
)

// Each entry is subject + body.  Bodies are plain text.
var templateSource = map[string][2]string{
	tplReceipt: {
		`[Received] Your slot request`,
		`Dear {{.Name}},

We have received your request for the following slots. You will get a
separate message once a slot is confirmed.

{{range .Lines}}- {{.}}
{{end}}
-- {{.FromName}}
`},
	tplConfirm: {
		`[Confirmed] {{.When}}`,
		`Dear {{.Name}},

Your participation is confirmed.

When:  {{.When}} ({{.Timezone}})
Where: {{.Location}}

To cancel or change, please reply to this message.

-- {{.FromName}}
`},
	tplReminder: {
		`[Reminder] Tomorrow {{.When}}`,
		`Dear {{.Name}},

This is a reminder of your booking tomorrow.

When:  {{.When}} ({{.Timezone}})
Where: {{.Location}}

-- {{.FromName}}
`},
	tplCancelled: {
		`[Received] Your cancellation`,
		`Dear {{.Name}},

The following bookings have been cancelled.

{{range .Lines}}- {{.}}
{{end}}
-- {{.FromName}}
`},
	tplSlotCanceled: {
		`[Important] {{.When}} has been called off`,
		`Dear {{.Name}},

Unfortunately the session below will not take place.

When:  {{.When}} ({{.Timezone}})
Where: {{.Location}}

-- {{.FromName}}
`},
	tplAdminConfirm: {
		`[Admin] {{.When}} confirmed / {{len .Members}} people`,
		`The slot {{.When}} ({{.Timezone}}) is confirmed.
Where: {{.Location}}

Participants:
{{range .Members}}- {{.Name}} <{{.Email}}>
{{end}}
(automatic message)
`},
	tplAdminDigest: {
		`[Digest] Confirmed slots from {{.Digest.Today}}`,
		`Slots confirmed from today ({{.Digest.Today}}) on.
{{range .Digest.Days}}
=== {{$.DateLabel .Date}} ===
{{range .Slots}}
* {{.Slot.Start}} - {{.Slot.End}} ({{len .Confirmed}}/{{.Slot.Capacity}} confirmed){{if lt (len .Confirmed) .Slot.Capacity}} {{sub .Slot.Capacity (len .Confirmed)}} seats left{{else}} FULL{{end}}
{{range .Confirmed}}  - {{.Name}} <{{.Email}}>
{{end}}{{if or .Pending .Waitlist}}  (pending {{.Pending}}{{if .Waitlist}}, waitlist {{.Waitlist}}{{end}}{{if .Needed}}, {{.Needed}} more to confirm{{end}})
{{end}}{{end}}{{end}}{{if .Digest.Unconfirmed}}
=== Open, not yet confirmed ===
{{range .Digest.Unconfirmed}}- {{$.DateLabel .Slot.Date}} {{.Slot.Start}} - {{.Slot.End}}: {{.Pending}} requests{{if .Needed}} ({{.Needed}} more to confirm){{else}} (awaiting batch){{end}}{{if .Waitlist}} waitlist {{.Waitlist}}{{end}}
{{end}}{{end}}`},
}

var funcs = template.FuncMap{
	"sub": func(a, b int) int { return a - b },
}

// templates is the parsed set, keyed by name.
type templates map[string][2]*template.Template

func parseTemplates() (templates, error) {
	out := make(templates, len(templateSource))
	for name, src := range templateSource {
		subj, err := template.New(name + ".subject").Funcs(funcs).Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Funcs(funcs).Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		out[name] = [2]*template.Template{subj, body}
	}
	return out, nil
}

func (t templates) render(name string, data any) (subject, body string, err error) {
	pair, ok := t[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	var s, b bytes.Buffer
	if err := pair[0].Execute(&s, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := pair[1].Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return s.String(), b.String(), nil
}

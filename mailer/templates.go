package mailer

import (
	"html/template"
	"strings"
	"time"

	"github.com/casewell/intake/form"
)

// Both emails are rendered with html/template, so every user-supplied value
// is HTML-escaped on interpolation. Raw string concatenation into markup is
// off the table here.

var notificationTmpl = template.Must(template.New("notification").Parse(`<h2>Personal Injury Questionnaire Response</h2>
{{range .Sections}}
<h3>{{.Title}}</h3>
<ul>
{{- range .Items}}
  <li><strong>{{.Label}}:</strong> {{.Value}}</li>
{{- end}}
</ul>
{{end}}
{{- if .PhotoURLs}}
<h3>Photos</h3>
<ul>
{{- range .PhotoURLs}}
  <li><a href="{{.}}">{{.}}</a></li>
{{- end}}
</ul>
{{end}}
<p><em>Submitted on: {{.SubmittedAt}}</em></p>
`))

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<h2>We received your questionnaire</h2>
<p>Dear {{.Name}},</p>
<p>Thank you for completing the personal injury questionnaire. Your responses
have been recorded and our intake team will review them shortly.</p>
<p>You do not need to do anything else at this point. If we need more detail,
we will contact you at this address.</p>
`))

type notificationData struct {
	Sections    []sectionData
	PhotoURLs   []string
	SubmittedAt string
}

type sectionData struct {
	Title string
	Items []itemData
}

type itemData struct {
	Label string
	Value string
}

// Notification renders the full field dump for the intake team. Hidden and
// blank answers show as N/A, mirroring what the reviewer expects to scan.
func Notification(schema *form.Schema, answers map[string]string, photoURLs []string, submittedAt time.Time) (subject, html string, err error) {
	data := notificationData{
		PhotoURLs:   photoURLs,
		SubmittedAt: submittedAt.Format("Jan 2, 2006 15:04:05 MST"),
	}
	for step := range schema.Steps {
		section := sectionData{Title: schema.Steps[step].Title}
		for _, f := range schema.StepFields(step) {
			value := strings.TrimSpace(answers[f.Key])
			if value == "" {
				value = "N/A"
			}
			section.Items = append(section.Items, itemData{Label: f.Label, Value: value})
		}
		data.Sections = append(data.Sections, section)
	}

	var buf strings.Builder
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	name := strings.TrimSpace(answers["fullName"])
	if name == "" {
		name = "Anonymous"
	}
	return "Personal Injury Questionnaire - " + name, buf.String(), nil
}

// Confirmation renders the fixed acknowledgement sent to the submitter.
func Confirmation(answers map[string]string) (subject, html string, err error) {
	name := strings.TrimSpace(answers["fullName"])
	if name == "" {
		name = "Anonymous"
	}

	var buf strings.Builder
	if err := confirmationTmpl.Execute(&buf, struct{ Name string }{Name: name}); err != nil {
		return "", "", err
	}
	return "Your questionnaire has been received", buf.String(), nil
}

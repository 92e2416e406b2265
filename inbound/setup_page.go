package inbound

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/goliatone/go-roundup/core"
)

const setupPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>Select your account and pot</title>
</head>
<body>
<form action="setup" method="post">
	<input type="hidden" name="accessToken" value="{{.AccessToken}}">
	<input type="hidden" name="userId" value="{{.UserID}}">
	<h1>Confirm your details</h1>
{{- if eq (len .Accounts) 1}}
	<input type="hidden" name="accountId" value="{{(index .Accounts 0).ID}}">
{{- else}}
	<div>
		<label>Account
			<select name="accountId" required>
{{- range .Accounts}}
				<option value="{{.ID}}">{{.Description}}</option>
{{- end}}
			</select>
		</label>
	</div>
{{- end}}
	<div>
		<label>Pot
			<select name="potId" required>
{{- range .Containers}}
				<option value="{{.ID}}">{{.Name}}</option>
{{- end}}
			</select>
		</label>
	</div>
	<button type="submit">Submit</button>
</form>
</body>
</html>
`

type SetupPageRenderer struct {
	tmpl *template.Template
}

func NewSetupPageRenderer() *SetupPageRenderer {
	return &SetupPageRenderer{
		tmpl: template.Must(template.New("setup").Parse(setupPageTemplate)),
	}
}

// Render writes the account and pot selection form. A single account is
// submitted as a hidden field instead of a select.
func (r *SetupPageRenderer) Render(page core.SetupPage) ([]byte, error) {
	if r == nil || r.tmpl == nil {
		return nil, fmt.Errorf("inbound: setup page renderer is not configured")
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("inbound: render setup page: %w", err)
	}
	return buf.Bytes(), nil
}

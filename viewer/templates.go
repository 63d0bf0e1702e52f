package main

import "html/template"

var homeTmpl = template.Must(template.New("home").Parse(
	`<h2>Go to <a href="/runs">/runs</a> to view pipeline runs</h2>`))

var runsTmpl = template.Must(template.New("runs").Parse(`<html><head><title>Pipeline runs</title></head><body>
<h2>Pipeline runs</h2>
<table border="1">
<tr><th>Run ID</th><th>Time</th><th>Accuracy</th><th>Compliance</th><th>Link</th></tr>
{{- range .}}
<tr><td>{{.RunID}}</td><td>{{.TimestampUTC.Format "2006-01-02 15:04:05 UTC"}}</td><td>{{.AccuracyText}}</td><td>{{.VerdictText}}</td><td><a href="/runs/{{.RunID}}">View</a></td></tr>
{{- end}}
</table>
</body></html>
`))

var runTmpl = template.Must(template.New("run").Parse(`<html><head><title>Run {{.RunID}}</title></head><body>
<h2>Run {{.RunID}}</h2>
<p><b>Timestamp:</b> {{.TimestampUTC.Format "2006-01-02 15:04:05 UTC"}}</p>
<p><b>Accuracy:</b> {{.AccuracyText}}</p>
<p><b>Compliance:</b> {{.VerdictText}}</p>
{{- if .Findings}}
<h3>Findings</h3>
<ul>
{{- range .Findings}}
<li>{{if .Passed}}PASS{{else}}FAIL{{end}} {{.ID}} ({{.Severity}}) {{.Title}}: {{.Details}}</li>
{{- end}}
</ul>
{{- end}}
<h3>Artefacts:</h3>
<ul>
{{- $run := .RunID}}
{{- range .Files}}
<li><a href="/runs/{{$run}}/files/{{.}}">{{.}}</a></li>
{{- end}}
</ul>
</body></html>
`))

var notFoundTmpl = template.Must(template.New("not_found").Parse(`<p>No run {{.}} found.</p>`))

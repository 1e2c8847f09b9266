package report

import (
	"html/template"
	"io"
	"strings"

	"rollcall/internal/session"
)

// ContentType is the spreadsheet MIME type the HTML artifact is served as.
const ContentType = "application/vnd.ms-excel"

// Document is everything a renderer needs.
type Document struct {
	Title      string
	ScopeLabel string
	RangeLabel string
	Preparer   string
	Matrix     Matrix
}

// Renderer turns a document into an artifact body.
type Renderer interface {
	Render(w io.Writer, doc Document) error
}

// HTMLRenderer writes a styled HTML table that spreadsheet tools open directly.
type HTMLRenderer struct{}

var sheet = template.Must(template.New("sheet").Funcs(template.FuncMap{
	"sessionDate": func(id session.ID) string {
		d, _, _ := strings.Cut(string(id), "_")
		return d
	},
	"sessionPeriod": func(id session.ID) string {
		_, p, _ := strings.Cut(string(id), "_")
		return p
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:x="urn:schemas-microsoft-com:office:excel" xmlns="http://www.w3.org/TR/REC-html40">
<head>
<meta http-equiv="content-type" content="text/plain; charset=UTF-8"/>
<style>
body { font-family: 'Times New Roman', serif; }
table { border-collapse: collapse; }
td, th { border: 1px solid #000; padding: 5px; }
td.present { background-color: #d1fae5; color: #047857; font-weight: bold; text-align: center; }
td.absent { background-color: #fee2e2; color: #b91c1c; font-weight: bold; text-align: center; }
</style>
</head>
<body>
<div style="text-align:center">
<h3>{{.ScopeLabel}}</h3>
<h1>{{.Title}}</h1>
<p>Period: {{.RangeLabel}}</p>
<p>Prepared by: {{orDash .Preparer}}</p>
</div>
<table id="summary">
<tr><th colspan="2">Summary</th></tr>
<tr><td>Roster size</td><td>{{.Matrix.Summary.RosterSize}}</td></tr>
<tr><td>Members with absences</td><td>{{.Matrix.Summary.WithAbsence}}</td></tr>
<tr><td>Sessions</td><td>{{.Matrix.Summary.Sessions}}</td></tr>
</table>
<br/>
<table id="matrix" border="1">
<thead>
<tr>
<th>No.</th><th>Name</th><th>ID</th><th>Unit</th>
{{- range .Matrix.Sessions}}
<th class="session" title="{{.}}">{{sessionDate .}}<br>{{sessionPeriod .}}</th>
{{- end}}
<th>Present</th><th>Absent</th><th>Rate</th>
</tr>
</thead>
<tbody>
{{- range .Matrix.Rows}}
<tr>
<td>{{.Seq}}</td><td>{{.Member.Name}}</td><td>{{.Member.ShortID}}</td><td>{{orDash .Member.Unit}}</td>
{{- range .Cells}}
{{if .}}<td class="present">P</td>{{else}}<td class="absent">A</td>{{end}}
{{- end}}
<td>{{.Present}}/{{.Total}}</td><td>{{.Absent}}</td><td>{{.Percent}}%</td>
</tr>
{{- end}}
</tbody>
</table>
<br/>
<p><strong>Prepared by</strong></p>
<p>{{orDash .Preparer}}</p>
</body>
</html>
`))

// Render implements Renderer.
func (HTMLRenderer) Render(w io.Writer, doc Document) error {
	return sheet.Execute(w, doc)
}

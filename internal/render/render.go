// Package render turns translated documents into the HTML stored as an
// artifact and sent by email.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"blog_trans_bot/internal/domain"
)

const ContentType = "text/html; charset=utf-8"

const documentHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
table {
  font-family: arial, sans-serif;
  border-collapse: collapse;
  width: 100%;
}
td, th {
  border: 1px solid #dddddd;
  text-align: left;
  padding: 8px;
}
tr:nth-child(even) {
  background-color: #dddddd;
}
</style>
</head>
<body>
<h2>{{.Title}}</h2>
<table>
  <tr><th>key</th><th>value</th></tr>
  <tr><td>doc_id</td><td>{{.DocID}}</td></tr>
  <tr><td>link</td><td><a href="{{.Link}}">{{.Link}}</a></td></tr>
  <tr><td>pub_date</td><td>{{.PubDate}}</td></tr>
  <tr><td>section</td><td>{{.Section}}</td></tr>
  <tr><td>title_{{.Lang}}</td><td>{{.TitleTrans}}</td></tr>
  <tr><td>body_{{.Lang}}</td><td>{{range $i, $s := .BodyTrans}}{{if $i}}<br/>{{end}}{{$s}}{{end}}</td></tr>
  <tr><td>tags</td><td>{{.Tags}}</td></tr>
</table>
</body>
</html>
`

var documentTmpl = template.Must(template.New("document").Parse(documentHTML))

type view struct {
	DocID      string
	Link       string
	Lang       string
	PubDate    string
	Section    string
	Title      string
	TitleTrans string
	BodyTrans  []string
	Tags       string
}

// Document renders doc as a standalone HTML page.
func Document(doc *domain.TranslatedDocument) ([]byte, error) {
	v := view{
		DocID:      doc.DocID,
		Link:       doc.Link,
		Lang:       doc.Lang,
		Section:    doc.Section,
		Title:      doc.Title,
		TitleTrans: doc.TitleTrans,
		BodyTrans:  doc.BodyTrans,
		Tags:       strings.Join(doc.Tags, ", "),
	}
	if !doc.PubDate.IsZero() {
		v.PubDate = doc.PubDate.Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// Subject is the notification subject line for doc.
func Subject(doc *domain.TranslatedDocument) string {
	return "[translated] " + doc.Title
}

package viewer

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Bookmark archive</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; background-color: #000; color: #fff; }
a { color: #1d9bf0; text-decoration: none; }
h1 { font-size: 24px; }
.count { color: #71767b; }
ul.bookmarks { list-style: none; padding: 0; }
.entry { border-bottom: 1px solid #2f3336; padding: 12px 0; }
.who { font-weight: bold; }
.handle, .meta { color: #71767b; font-size: 13px; }
.snippet { margin: 4px 0; }
</style>
</head>
<body>
<h1>Bookmark archive</h1>
<p class="count">{{.Count}} archived bookmarks</p>
<ul class="bookmarks">
{{- range .Items}}
<li class="entry" data-id="{{.ID}}">
<a href="/bookmark/{{.ID}}">
{{- if .Username}}
<span class="who">{{.Author}}</span> <span class="handle">@{{.Username}}</span>
{{- else}}
<span class="who">Bookmark {{.ID}}</span>
{{- end}}
</a>
{{- if .Snippet}}
<div class="snippet">{{.Snippet}}</div>
{{- end}}
<div class="meta">archived {{.ArchivedAt.Format "2006-01-02 15:04"}}{{if .MediaCount}} · {{.MediaCount}} media{{end}}</div>
</li>
{{- end}}
</ul>
</body>
</html>
`

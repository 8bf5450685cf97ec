package render

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Bookmark - @{{.Username}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #000; color: #fff; }
a { color: #1d9bf0; }
.bookmark { border: 1px solid #2f3336; border-radius: 16px; padding: 20px; margin-bottom: 20px; background-color: #16181c; }
.bookmark-header { display: flex; align-items: center; margin-bottom: 12px; }
.avatar { width: 48px; height: 48px; border-radius: 50%; margin-right: 12px; }
.user-info { flex: 1; }
.name { font-weight: bold; }
.handle, .timestamp, .stats, .backup-info, .missing { color: #71767b; }
.timestamp, .stats { font-size: 14px; }
.content { font-size: 20px; line-height: 1.4; margin-bottom: 12px; white-space: pre-wrap; }
.media { margin: 12px 0; }
.media img, .media video { max-width: 100%; border-radius: 12px; }
.stats { display: flex; gap: 20px; margin-top: 12px; }
.missing { font-size: 13px; }
.backup-info { font-size: 12px; text-align: center; margin-top: 20px; padding-top: 20px; border-top: 1px solid #2f3336; }
</style>
</head>
<body>
<div class="bookmark" data-id="{{.ID}}">
<div class="bookmark-header">
{{- if .Avatar}}
<img src="{{.Avatar}}" alt="" class="avatar">
{{- end}}
<div class="user-info">
{{- if .Username}}
<span class="name">{{.Name}}</span> <span class="handle">@{{.Username}}</span>
{{- else}}
<span class="name">Unknown user</span>
{{- end}}
{{- if not .CreatedAt.IsZero}}
<div class="timestamp">{{.CreatedAt.Format "2006-01-02 15:04:05 MST"}}</div>
{{- end}}
</div>
</div>
<div class="content">{{.Content}}</div>
{{- if .Media}}
<div class="media">
{{- range .Media}}
{{- if .Video}}
<video controls preload="metadata"><source src="{{.Path}}" type="{{.ContentType}}"></video>
{{- else}}
<img src="{{.Path}}" alt="Attached image" loading="lazy">
{{- end}}
{{- end}}
</div>
{{- end}}
{{- if .Missing}}
<ul class="missing">
{{- range .Missing}}
<li>Media unavailable: {{.Reason}}</li>
{{- end}}
</ul>
{{- end}}
<div class="stats">
<span class="likes">{{.Metrics.Likes}} likes</span>
<span class="reposts">{{.Metrics.Reposts}} reposts</span>
<span class="replies">{{.Metrics.Replies}} replies</span>
<span class="quotes">{{.Metrics.Quotes}} quotes</span>
</div>
</div>
<div class="backup-info">
Bookmark backed up on {{.ArchivedAt.Format "2006-01-02 15:04:05"}} |
Original: <a href="{{.Permalink}}" target="_blank" rel="noopener">View on X</a>
</div>
</body>
</html>
`

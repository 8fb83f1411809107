package web

import (
	"bytes"
	"html/template"
	"net/http"

	"vhsite/internal/calendar"
	appLog "vhsite/internal/log"
)

// displayTemplate is the lobby screen. The body carries data-ready so the
// snapshot capture knows when rendering has finished.
var displayTemplate = template.Must(template.New("display").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} | Victory House</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;background:#fff;color:#111}
main{display:grid;grid-template-columns:3fr 2fr;gap:32px;padding:40px}
h1{font-size:40px;margin:0 0 16px}
h2{font-size:28px;margin:0 0 12px}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #ccc;height:64px;vertical-align:top;padding:4px;font-size:18px}
td.out{color:#aaa}
td.today{background:#111;color:#fff}
td.has::after{content:"•";display:block}
ul{list-style:none;padding:0;margin:0}
li{padding:10px 0;border-bottom:1px solid #eee;font-size:20px}
.when{color:#555;font-size:16px}
.series img{max-width:100%}
</style>
</head>
<body data-ready="true">
<main>
<section class="month">
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Weekdays}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Weeks}}<tr>{{range .}}<td class="{{if not .InMonth}}out{{end}} {{if .IsToday}}today{{end}} {{if .HasEvent}}has{{end}}">{{.Day}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</section>
<section>
<h2>Upcoming Events</h2>
<ul>
{{range .Events}}<li>{{.Title}}<div class="when">{{.Date}} · {{.Time}}{{if .Location}} · {{.Location}}{{end}}</div></li>
{{else}}<li>No upcoming events</li>
{{end}}</ul>
{{with .Series}}<div class="series">
<h2>Current Series</h2>
<p>{{.Title}}{{if .Subtitle}}: {{.Subtitle}}{{end}}</p>
{{if .CoverURL}}<img src="{{.CoverURL}}" alt="">{{end}}
</div>{{end}}
</section>
</main>
</body>
</html>
`))

type displayCell struct {
	Day      int
	InMonth  bool
	IsToday  bool
	HasEvent bool
}

type displayData struct {
	Title    string
	Weekdays []string
	Weeks    [][]displayCell
	Events   []eventDTO
	Series   *seriesDTO
}

// handleDisplay renders the lobby screen for the current month.
func (s *Server) handleDisplay(w http.ResponseWriter, _ *http.Request) {
	cal := s.newCalendar()
	snap := s.snapshot()

	data := displayData{
		Title:    cal.Anchor().Title(),
		Weekdays: calendar.WeekdayLabels(cal.WeekStart()),
		Events:   s.toDTOs(cal.Upcoming(s.now())),
	}

	var week []displayCell
	for _, c := range cal.Grid() {
		week = append(week, displayCell{
			Day:      c.Date.Day,
			InMonth:  c.InMonth,
			IsToday:  c.Today,
			HasEvent: c.HasEvent,
		})
		if len(week) == 7 {
			data.Weeks = append(data.Weeks, week)
			week = nil
		}
	}

	if snap.Series != nil {
		data.Series = &seriesDTO{
			ID:       snap.Series.ID,
			Title:    snap.Series.Title,
			Subtitle: snap.Series.Subtitle,
			CoverURL: snap.Series.CoverURL,
		}
	}

	var buf bytes.Buffer
	if err := displayTemplate.Execute(&buf, data); err != nil {
		appLog.Error("failed to render display page", err)
		http.Error(w, "display unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleDisplaySnapshot serves the last captured lobby PNG from disk.
func (s *Server) handleDisplaySnapshot(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Display.OutputPath
	if path == "" {
		writeError(w, http.StatusNotFound, errNotFound, "display snapshot not configured")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

package web

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/recommend"

	"github.com/rs/zerolog/log"
)

type pageData struct {
	States          []string
	Districts       []string
	State           string
	District        string
	Result          *recommend.Recommendation
	ImageURL        string
	NotFound        string
	Error           string
	MsgImageMissing string
	ModelCount      int
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Crop Recommendation</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 760px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #43a047 0%, #1b5e20 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2em; text-align: center; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        label { display: block; font-weight: 600; color: #555; margin: 10px 0 4px; }
        select { width: 100%; padding: 8px; border-radius: 6px; border: 1px solid #ccc; }
        button { margin-top: 16px; padding: 10px 24px; border: none; border-radius: 6px; background: #2e7d32; color: white; font-size: 1em; cursor: pointer; }
        .crop { font-size: 1.6em; font-weight: bold; color: #1b5e20; }
        .warning { color: #8a6d3b; background: #fcf8e3; padding: 10px; border-radius: 6px; }
        .error { color: #a94442; background: #f2dede; padding: 10px; border-radius: 6px; }
        img.crop-image { max-width: 100%; border-radius: 8px; margin-top: 12px; }
        table { width: 100%; border-collapse: collapse; margin-top: 10px; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        th { background-color: #f8f9fa; font-weight: 600; }
        summary { cursor: pointer; font-weight: 600; margin-top: 16px; }
        #feed { font-size: 0.9em; color: #666; }
    </style>
</head>
<body>
<div class="container">
    <div class="header"><h1>Crop Recommendation</h1></div>

    <div class="card">
        <form method="GET" action="/" id="region-form">
            <label for="state">State</label>
            <select name="state" id="state" onchange="document.getElementById('district').selectedIndex = -1; this.form.submit()">
                {{range .States}}<option value="{{.}}"{{if eq . $.State}} selected{{end}}>{{.}}</option>
                {{end}}
            </select>
            <label for="district">District</label>
            <select name="district" id="district">
                {{range .Districts}}<option value="{{.}}"{{if eq . $.District}} selected{{end}}>{{.}}</option>
                {{end}}
            </select>
            <button type="submit" formmethod="POST">Predict</button>
        </form>
    </div>

    {{if .Error}}<div class="card"><div class="error">{{.Error}}</div></div>{{end}}
    {{if .NotFound}}<div class="card"><div class="error">{{.NotFound}}</div></div>{{end}}

    {{with .Result}}
    <div class="card">
        <div>Recommended crop for {{.District}}, {{.State}}:</div>
        <div class="crop" id="crop">{{.Crop}}</div>
        {{if $.ImageURL}}<img class="crop-image" src="{{$.ImageURL}}" alt="{{.Crop}}">
        {{else}}<p class="warning">{{$.MsgImageMissing}}</p>{{end}}
        <details>
            <summary>Model-wise Predictions</summary>
            <table>
                <tr><th>Model</th><th>Crop</th><th>Label</th></tr>
                {{range .Predictions}}<tr><td>{{.Model}}</td><td>{{.Crop}}</td><td>{{.Label}}</td></tr>
                {{end}}
            </table>
        </details>
    </div>
    {{end}}

    <div class="card">
        <div>{{.ModelCount}} models in ensemble. Recent recommendations:</div>
        <ul id="feed"></ul>
    </div>
</div>
<script>
    (function () {
        if (!window.WebSocket) { return; }
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');
        ws.onmessage = function (event) {
            const rec = JSON.parse(event.data);
            const li = document.createElement('li');
            li.textContent = rec.district + ', ' + rec.state + ': ' + rec.crop;
            const feed = document.getElementById('feed');
            feed.insertBefore(li, feed.firstChild);
            while (feed.children.length > 10) { feed.removeChild(feed.lastChild); }
        };
    })();
</script>
</body>
</html>
`))

// newPageData fills the selectors. An unknown or empty state falls back to the first state, and
// an unknown or empty district to the first district of the selected state.
func (s *Server) newPageData(state, district string) pageData {
	data := pageData{
		States:          s.svc.States(),
		MsgImageMissing: common.MsgImageMissing,
		ModelCount:      len(s.svc.ModelNames()),
	}
	if len(data.States) == 0 {
		return data
	}

	data.State = data.States[0]
	for _, st := range data.States {
		if strings.EqualFold(st, state) {
			data.State = st
			break
		}
	}

	data.Districts = s.svc.Districts(data.State)
	if len(data.Districts) > 0 {
		data.District = data.Districts[0]
		for _, d := range data.Districts {
			if strings.EqualFold(d, district) {
				data.District = d
				break
			}
		}
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.renderPage(w, http.StatusOK, s.newPageData(q.Get("state"), q.Get("district")))
}

func (s *Server) handleIndexPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	state, district := r.PostForm.Get("state"), r.PostForm.Get("district")
	data := s.newPageData(state, district)

	rec, err := s.recommend(r, state, district)
	status := http.StatusOK
	switch {
	case err == nil:
		data.Result = &rec
		if !rec.ImageMissing {
			data.ImageURL = "/images/" + url.PathEscape(rec.Crop)
		}
	case errors.Is(err, features.ErrRegionNotFound):
		data.NotFound = common.MsgRegionNotFound
	default:
		status = http.StatusInternalServerError
		data.Error = "Prediction failed: " + err.Error()
	}
	s.renderPage(w, status, data)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

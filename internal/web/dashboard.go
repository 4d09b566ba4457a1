// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"html/template"
	"log/slog"
	"net/http"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="3">
<title>Energy Meter</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #111; color: #eee; }
table { border-collapse: collapse; }
td { padding: 0.3em 1em; border-bottom: 1px solid #333; }
td.v { text-align: right; font-variant-numeric: tabular-nums; }
.nodata { color: #f55; font-weight: bold; }
.small { color: #888; font-size: 0.8em; margin-top: 1em; }
</style>
</head>
<body>
<h1>Energy Meter</h1>
{{if .Valid}}
<table>
<tr><td>Voltage</td><td class="v">{{printf "%.1f" .Voltage}} V</td></tr>
<tr><td>Current</td><td class="v">{{printf "%.2f" .Current}} A</td></tr>
<tr><td>Power</td><td class="v">{{printf "%.0f" .Power}} W</td></tr>
<tr><td>Forward energy</td><td class="v">{{printf "%.3f" .FwdEnergy}} kWh</td></tr>
<tr><td>Reverse energy</td><td class="v">{{printf "%.3f" .RevEnergy}} kWh</td></tr>
<tr><td>Power factor</td><td class="v">{{printf "%.3f" .PowerFactor}}</td></tr>
<tr><td>Frequency</td><td class="v">{{printf "%.2f" .Frequency}} Hz</td></tr>
<tr><td>Direction</td><td class="v">{{.Direction}}</td></tr>
</table>
{{else}}
<p class="nodata">NO DATA &mdash; meter not responding</p>
{{end}}
<p class="small">reads {{.Reads}} &middot; errors {{.Errors}}</p>
</body>
</html>
`))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, s.buildPayload()); err != nil {
		s.logger.Error("render dashboard", slog.String("error", err.Error()))
	}
}

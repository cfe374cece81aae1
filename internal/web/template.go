package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/roof-driver/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"grade": func(g fmt.Stringer) string {
		return strings.ToLower(g.String())
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Roof Driver</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.idle { color: #888; }
.ok { color: green; font-weight: bold; }
.busy { color: orange; font-weight: bold; }
.alert { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Roof Driver<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Roof</h2>
<table>
<tr><th>State</th><td id="state">{{.State}}</td></tr>
<tr><th>Opened</th><td id="l-opened" class="{{grade .Lights.Opened}}">{{.Lights.Opened}}</td></tr>
<tr><th>Closed</th><td id="l-closed" class="{{grade .Lights.Closed}}">{{.Lights.Closed}}</td></tr>
<tr><th>Moving</th><td id="l-moving" class="{{grade .Lights.Moving}}">{{.Lights.Moving}}</td></tr>
<tr><th>Locked</th><td id="l-locked" class="{{grade .Lights.Locked}}">{{.Lights.Locked}}</td></tr>
<tr><th>Auxiliary</th><td id="l-aux" class="{{grade .Lights.Aux}}">{{.Lights.Aux}}</td></tr>
<tr><th>Overall</th><td id="l-agg" class="{{grade .Lights.Aggregate}}">{{.Lights.Aggregate}}</td></tr>
{{if .Lights.Inconsistent}}<tr><th>Switches</th><td class="alert">INCONSISTENT</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Counters</h2>
<table>
<tr><th>Moves</th><td>{{.Counters.Moves}}</td></tr>
<tr><th>Opened</th><td>{{.Counters.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Counters.Closed}}</td></tr>
<tr><th>Timeouts</th><td>{{.Counters.Timeouts}}</td></tr>
<tr><th>Aborts</th><td>{{.Counters.Aborts}}</td></tr>
<tr><th>Read faults</th><td>{{.Counters.Faults}}</td></tr>
<tr><th>Session resets</th><td>{{.Counters.Resets}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Idle poll</th><td>{{.Config.IdlePollMs}}ms</td></tr>
<tr><th>Active poll</th><td>{{.Config.ActivePollMs}}ms</td></tr>
<tr><th>Motion timeout</th><td>{{.Config.TimeoutS}}s</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
<tr><th>Simulated</th><td>{{yesno .Config.Simulated}}</td></tr>
</table>

<p><a href="/status.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var grades = { opened: "l-opened", closed: "l-closed", moving: "l-moving",
                 locked: "l-locked", aux: "l-aux", aggregate: "l-agg" };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function apply(msg) {
    var st = msg.status;
    if (!st) return;
    document.getElementById("state").textContent = st.state;
    for (var k in grades) {
      var el = document.getElementById(grades[k]);
      el.textContent = st.lights[k];
      el.className = st.lights[k].toLowerCase();
    }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "disconnected");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try { apply(JSON.parse(ev.data)); } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

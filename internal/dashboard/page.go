package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DAO Ledger</title>
<style>
  :root {
    --bg: #0d1117;
    --surface: #161b22;
    --border: #30363d;
    --text: #e6edf3;
    --text-dim: #8b949e;
    --accent: #58a6ff;
    --green: #3fb950;
    --yellow: #d29922;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;
    background: var(--bg);
    color: var(--text);
    font-size: 14px;
    line-height: 1.5;
    padding: 16px;
  }
  header { display: flex; justify-content: space-between; align-items: baseline; margin-bottom: 16px; }
  h1 { font-size: 18px; }
  h2 { font-size: 14px; color: var(--text-dim); margin-bottom: 8px; text-transform: uppercase; }
  .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; }
  .panel { background: var(--surface); border: 1px solid var(--border); border-radius: 6px; padding: 12px; }
  table { width: 100%; border-collapse: collapse; }
  td, th { padding: 4px 8px; border-bottom: 1px solid var(--border); text-align: left; }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  tr.leader td { color: var(--green); }
  .bar { height: 6px; background: var(--accent); border-radius: 3px; }
  .dim { color: var(--text-dim); }
  .live { color: var(--green); }
  .offline { color: var(--yellow); }
  #events li { list-style: none; padding: 2px 0; border-bottom: 1px solid var(--border); font-family: monospace; font-size: 12px; }
</style>
</head>
<body>
<header>
  <h1>DAO Ledger</h1>
  <span id="status" class="offline">connecting</span>
</header>
<div class="grid">
  <div class="panel">
    <h2>Proposals</h2>
    <table>
      <thead><tr><th>ID</th><th>Description</th><th class="num">Votes</th><th></th></tr></thead>
      <tbody id="proposals"></tbody>
    </table>
    <p id="summary" class="dim" style="margin-top:8px"></p>
  </div>
  <div class="panel">
    <h2>Events</h2>
    <ul id="events"></ul>
  </div>
</div>
<script>
function esc(s) {
  return String(s).replace(/[&<>"']/g, function(c) {
    return {'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c];
  });
}

function render(data) {
  var counts = {};
  data.ledger.vote_counts.forEach(function(t) { counts[t.proposal_id] = t.votes; });
  var max = 0;
  Object.keys(counts).forEach(function(k) { if (counts[k] > max) max = counts[k]; });
  var leader = data.summary.leader ? data.summary.leader.proposal_id : null;
  var rows = data.ledger.proposals.map(function(e) {
    var votes = counts[e.id] || 0;
    var width = max ? Math.round(100 * votes / max) : 0;
    return '<tr class="' + (e.id === leader ? 'leader' : '') + '">' +
      '<td>' + e.id + '</td><td>' + esc(e.proposal.description) + '</td>' +
      '<td class="num">' + votes + '</td>' +
      '<td style="width:30%"><div class="bar" style="width:' + width + '%"></div></td></tr>';
  });
  document.getElementById('proposals').innerHTML = rows.join('') ||
    '<tr><td colspan="4" class="dim">No proposals registered</td></tr>';
  var s = data.summary;
  document.getElementById('summary').textContent =
    s.total_votes + ' vote(s) from ' + s.voters + ' voter(s), revision ' + s.revision;
}

function refresh() {
  fetch('/api/state').then(function(r) { return r.json(); }).then(render);
}

function logEvent(ev) {
  var li = document.createElement('li');
  var text = ev.type;
  if (ev.proposal_id || ev.type === 'vote_cast' || ev.type === 'proposal_registered') text += ' #' + ev.proposal_id;
  if (ev.voter) text += ' ' + ev.voter.slice(0, 10) + '...';
  li.textContent = new Date(ev.at).toLocaleTimeString() + ' ' + text;
  var list = document.getElementById('events');
  list.insertBefore(li, list.firstChild);
  while (list.children.length > 50) list.removeChild(list.lastChild);
}

function connect() {
  var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var ws = new WebSocket(proto + location.host + '/ws');
  var status = document.getElementById('status');
  ws.onopen = function() { status.textContent = 'live'; status.className = 'live'; };
  ws.onmessage = function(m) {
    var msg = JSON.parse(m.data);
    if (msg.type === 'event') logEvent(msg.event);
    refresh();
  };
  ws.onclose = function() {
    status.textContent = 'offline'; status.className = 'offline';
    setTimeout(connect, 3000);
  };
}

refresh();
connect();
</script>
</body>
</html>
`

package webap

import "fmt"

// Markup is intentionally minimal: spec.md §1 specifies the HTML/CSS/JS
// pages' semantics, not their exact markup. These strings implement the
// documented behavior (dashboard reads the JSON endpoints; /display polls
// survey_state.json and jumps to /survey when it flips on; /survey posts
// exactly ten 0/1 answers) without attempting pixel-perfect styling.

const dashboardHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>TheraLink dashboard</title></head>
<body>
<h1>TheraLink</h1>
<div id="stats"></div>
<script>
async function refresh(){
  const r = await fetch('/stats.json%s', {cache:'no-store'});
  const s = await r.json();
  document.getElementById('stats').textContent = JSON.stringify(s, null, 2);
}
refresh();
setInterval(refresh, 2000);
</script>
</body></html>`

// renderDashboardHTML fills the validated ?color= group filter (e.g.
// "verde") into the dashboard's own /stats.json fetch, so /?color=verde
// deep-links to the same filtered view /stats.json?color=verde does.
// An empty color omits the query string entirely.
func renderDashboardHTML(color string) string {
	qs := ""
	if color != "" {
		qs = "?color=" + color
	}
	return fmt.Sprintf(dashboardHTML, qs)
}

const displayHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>TheraLink</title></head>
<body>
<pre id="oled"></pre>
<script>
let jumped = false;
async function tick(){
  const st = await fetch('/survey_state.json', {cache:'no-store'}).then(r=>r.json()).catch(()=>({mode:0}));
  if (!jumped && st.mode) { jumped = true; location.replace('/survey'); return; }
  const o = await fetch('/oled.json', {cache:'no-store'}).then(r=>r.json()).catch(()=>null);
  if (o) document.getElementById('oled').textContent = [o.l1,o.l2,o.l3,o.l4].join('\n');
  setTimeout(tick, 500);
}
tick();
</script>
</body></html>`

const surveyHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>TheraLink survey</title></head>
<body>
<form id="f">
<div id="questions"></div>
<button type="button" id="send">Send</button>
</form>
<script>
const QUESTIONS = 10;
const sel = new Array(QUESTIONS).fill(-1);
const q = document.getElementById('questions');
for (let i = 0; i < QUESTIONS; i++) {
  const row = document.createElement('div');
  row.innerHTML = 'Question ' + (i+1) + ': ' +
    '<button type="button" data-i="' + i + '" data-v="1">Yes</button>' +
    '<button type="button" data-i="' + i + '" data-v="0">No</button>';
  q.appendChild(row);
}
q.addEventListener('click', (e) => {
  const i = e.target.getAttribute('data-i');
  const v = e.target.getAttribute('data-v');
  if (i !== null) sel[+i] = +v;
});
document.getElementById('send').addEventListener('click', () => {
  if (sel.some(v => v < 0)) { alert('Answer all questions.'); return; }
  const bits = sel.map(v => v ? 1 : 0).join('');
  location.replace('/survey_submit?ans=' + bits);
});
</script>
</body></html>`

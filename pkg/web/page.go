package web

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Rover</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 1em; }
#grid { display: flex; gap: 1em; }
img { width: 640px; background: #222; }
pre { margin: 0; }
.mode { font-size: 1.4em; color: #6c6; }
</style>
</head>
<body>
<div id="grid">
  <div><img id="camera" alt="camera"></div>
  <div>
    <div class="mode" id="mode">-</div>
    <pre id="status">connecting...</pre>
  </div>
</div>
<script>
const proto = location.protocol === "https:" ? "wss://" : "ws://";
function connect(path, onmessage) {
  const ws = new WebSocket(proto + location.host + path);
  ws.binaryType = "blob";
  ws.onmessage = onmessage;
  ws.onclose = () => setTimeout(() => connect(path, onmessage), 1000);
}
connect("/ws/status", (ev) => {
  const st = JSON.parse(ev.data);
  document.getElementById("mode").textContent = (st.mode || "-") + (st.gamepad_connected ? "" : " (no gamepad)");
  document.getElementById("status").textContent = JSON.stringify(st, null, 2);
});
let last;
connect("/ws/camera", (ev) => {
  if (last) URL.revokeObjectURL(last);
  last = URL.createObjectURL(ev.data);
  document.getElementById("camera").src = last;
});
</script>
</body>
</html>
`

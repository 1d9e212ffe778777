package api

import "net/http"

// handleIndex serves the built-in viewer page: the live stream, the
// start/stop controls and the hold-to-compare button.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>EnhanceCam</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            background: #000;
            display: flex;
            flex-direction: column;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            font-family: system-ui, -apple-system, sans-serif;
        }
        img {
            max-width: 100vw;
            max-height: 80vh;
            object-fit: contain;
            display: block;
            background: #111;
        }
        .controls {
            display: flex;
            gap: 12px;
            margin-top: 16px;
            align-items: center;
        }
        button {
            padding: 10px 20px;
            border: none;
            border-radius: 6px;
            background: rgba(70, 130, 180, 0.9);
            color: white;
            font-size: 14px;
            cursor: pointer;
            user-select: none;
        }
        button:hover {
            background: rgba(100, 149, 237, 0.95);
        }
        button:active, button.held {
            transform: scale(0.97);
            background: rgba(220, 150, 60, 0.95);
        }
        .status {
            color: #ccc;
            font-size: 13px;
        }
        .status .connected { color: #4caf50; }
        .status .connecting { color: #ffb300; }
        .status .disconnected { color: #ef5350; }
        .banner {
            color: #ef9a9a;
            font-size: 13px;
            min-height: 18px;
            margin-top: 8px;
        }
    </style>
</head>
<body>
    <img src="/stream" alt="EnhanceCam Live Stream">
    <div class="controls">
        <button onclick="start()">Start</button>
        <button onclick="stop()">Stop</button>
        <button id="compareBtn">Hold to Compare</button>
        <span class="status" id="status">...</span>
    </div>
    <div class="banner" id="banner"></div>
    <script>
        function start() { fetch('/api/stream/start', { method: 'POST' }).catch(console.error); }
        function stop() { fetch('/api/stream/stop', { method: 'POST' }).catch(console.error); }

        function setCompare(pressed) {
            const btn = document.getElementById('compareBtn');
            btn.classList.toggle('held', pressed);
            fetch('/api/compare', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ pressed: pressed })
            }).catch(console.error);
        }

        const compareBtn = document.getElementById('compareBtn');
        compareBtn.addEventListener('mousedown', () => setCompare(true));
        compareBtn.addEventListener('mouseup', () => setCompare(false));
        compareBtn.addEventListener('mouseleave', () => setCompare(false));
        compareBtn.addEventListener('touchstart', e => { e.preventDefault(); setCompare(true); });
        compareBtn.addEventListener('touchend', () => setCompare(false));

        function poll() {
            fetch('/api/status')
                .then(r => r.json())
                .then(st => {
                    const el = document.getElementById('status');
                    el.innerHTML = '<span class="' + st.connection + '">' + st.connection + '</span>' +
                        (st.streaming ? ' | streaming' : '') +
                        (st.compare ? ' | compare' : '');
                    document.getElementById('banner').textContent = st.error || '';
                })
                .catch(console.error);
        }
        setInterval(poll, 1000);
        poll();
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

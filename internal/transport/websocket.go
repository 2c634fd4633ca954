// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "spectro/internal/log"
	"spectro/internal/render"

	"github.com/gorilla/websocket"
)

var logWS = applog.With("WebSocketDisplay")

const (
	broadcastQueue = 256
	writeTimeout   = time.Second
)

// WebSocketDisplay streams each new column to websocket clients on /ws and
// serves the latest raster as PNG on /spectrogram.png.
type WebSocketDisplay struct {
	addr             string
	snapshotInterval time.Duration

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	nclients  atomic.Int32
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup

	server   *http.Server
	listener net.Listener

	// Consumer-side snapshot state.
	lastSnapshot time.Time
	pngBuf       bytes.Buffer

	snapMu   sync.RWMutex
	snapshot []byte

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewWebSocketDisplay creates a display that will listen on addr once
// Start is called. PNG snapshots are re-encoded at most every
// snapshotInterval.
func NewWebSocketDisplay(addr string, snapshotInterval time.Duration) *WebSocketDisplay {
	d := &WebSocketDisplay{
		addr:             addr,
		snapshotInterval: snapshotInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local viewer, any origin.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastQueue),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.handleBroadcasts()
	return d
}

// Handler returns the HTTP routes of the display.
func (d *WebSocketDisplay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handleWebSocket)
	mux.HandleFunc("/spectrogram.png", d.handleSnapshot)
	mux.HandleFunc("/", d.handleIndex)
	return mux
}

// Start listens on the configured address and serves in the background.
func (d *WebSocketDisplay) Start() error {
	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return err
	}
	d.listener = ln
	d.server = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logWS.Infof("Starting server on %s", ln.Addr())
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logWS.Errorf("Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (d *WebSocketDisplay) Addr() string {
	if d.listener != nil {
		return d.listener.Addr().String()
	}
	return d.addr
}

// Redisplay queues the new column for every client and refreshes the PNG
// snapshot when it is due. A full queue drops the column.
func (d *WebSocketDisplay) Redisplay(frame *render.Frame) {
	if d.closed.Load() {
		return
	}

	if d.snapshotInterval >= 0 && frame.Time.Sub(d.lastSnapshot) >= d.snapshotInterval {
		d.lastSnapshot = frame.Time
		d.pngBuf.Reset()
		if err := frame.Raster.WritePNG(&d.pngBuf); err != nil {
			logWS.Errorf("Snapshot failed: %v", err)
		} else {
			snap := bytes.Clone(d.pngBuf.Bytes())
			d.snapMu.Lock()
			d.snapshot = snap
			d.snapMu.Unlock()
		}
	}

	if d.nclients.Load() == 0 {
		return
	}
	msg := AppendColumn(make([]byte, 0, ColumnHeaderSize+3*len(frame.Column)), uint32(frame.Seq), frame.Column)
	select {
	case d.broadcast <- msg:
	default:
		d.dropped.Add(1)
	}
}

func (d *WebSocketDisplay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logWS.Warnf("Upgrade error: %v", err)
		return
	}

	d.clientsMu.Lock()
	d.clients[conn] = true
	n := d.nclients.Add(1)
	d.clientsMu.Unlock()
	logWS.Infof("Client connected, total: %d", n)

	// Clients only listen; the first read error means they left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				d.removeClient(conn)
				return
			}
		}
	}()
}

func (d *WebSocketDisplay) removeClient(conn *websocket.Conn) {
	d.clientsMu.Lock()
	if d.clients[conn] {
		delete(d.clients, conn)
		n := d.nclients.Add(-1)
		logWS.Infof("Client disconnected, total: %d", n)
	}
	d.clientsMu.Unlock()
	conn.Close()
}

func (d *WebSocketDisplay) handleBroadcasts() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.broadcast:
			d.clientsMu.Lock()
			for client := range d.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.BinaryMessage, msg); err != nil {
					logWS.Warnf("Error sending to client: %v", err)
					client.Close()
					delete(d.clients, client)
					d.nclients.Add(-1)
				}
			}
			d.clientsMu.Unlock()
			d.sent.Add(1)
		case <-d.done:
			return
		}
	}
}

func (d *WebSocketDisplay) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	d.snapMu.RLock()
	snap := d.snapshot
	d.snapMu.RUnlock()

	if snap == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(snap)
}

func (d *WebSocketDisplay) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

// Clients returns the number of connected websocket clients.
func (d *WebSocketDisplay) Clients() int {
	return int(d.nclients.Load())
}

// Sent returns the number of columns broadcast.
func (d *WebSocketDisplay) Sent() uint64 {
	return d.sent.Load()
}

// Dropped returns the number of columns dropped on a full queue.
func (d *WebSocketDisplay) Dropped() uint64 {
	return d.dropped.Load()
}

// Close disconnects every client and shuts the server down.
func (d *WebSocketDisplay) Close() error {
	var err error
	d.closeOnce.Do(func() {
		logWS.Infof("Closing server")
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()

		d.clientsMu.Lock()
		for client := range d.clients {
			client.Close()
		}
		d.clients = make(map[*websocket.Conn]bool)
		d.nclients.Store(0)
		d.clientsMu.Unlock()

		if d.server != nil {
			err = d.server.Close()
		}
	})
	return err
}

var _ Display = (*WebSocketDisplay)(nil)

// indexPage draws incoming columns on a scrolling canvas.
const indexPage = `<!doctype html>
<html>
<head><title>spectro</title>
<style>body{margin:0;background:#000}canvas{width:100vw;height:100vh;image-rendering:pixelated}</style>
</head>
<body>
<canvas id="c" width="512" height="512"></canvas>
<script>
const c = document.getElementById("c"), g = c.getContext("2d");
const img = new Image();
img.onload = () => g.drawImage(img, 0, 0, c.width, c.height);
img.src = "/spectrogram.png";
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.binaryType = "arraybuffer";
ws.onmessage = (e) => {
  const v = new DataView(e.data), h = v.getUint16(4);
  if (c.height !== h) c.height = h;
  g.drawImage(c, -1, 0);
  const col = g.createImageData(1, h);
  for (let y = 0; y < h; y++) {
    col.data.set([v.getUint8(6 + 3*y), v.getUint8(7 + 3*y), v.getUint8(8 + 3*y), 255], 4*y);
  }
  g.putImageData(col, c.width - 1, 0);
};
</script>
</body>
</html>
`

// Command viewer is a terminal BallPit client for development: it renders an
// arena with tcell and maps the mouse to drag-and-throw input.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"github.com/ballpit/backend/internal/protocol"
	"github.com/ballpit/backend/internal/sim"
)

const (
	statusRows = 1 // header line
	helpRows   = 1 // key legend line

	flashMillis       = 150 // collision highlight duration
	doubleClickMillis = 400
	statusMillis      = 3000

	// Reported viewport pixels per terminal cell, so a resize keeps the
	// arena roughly the shape of the terminal.
	cellPixelsX = 10
	cellPixelsY = 20
)

const helpLine = "a random  l/m/h spawn  r remove  c clear  drag with mouse  q quit"

type Viewer struct {
	screen tcell.Screen
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	server      string
	token       string
	targetArena string // "" = quick-join

	width, height int

	mu        sync.Mutex
	guestID   int
	arenaID   string
	arenaName string
	bounds    sim.Bounds
	balls     []sim.Ball
	lastHit   map[string]time.Time
	status    string
	statusAt  time.Time

	// Mouse state
	prevButtons   tcell.ButtonMask
	heldBall      string
	lastClickBall string
	lastClickAt   time.Time
	pendingDouble bool
}

func main() {
	var (
		server = flag.String("server", "http://localhost:8080", "BallPit API base URL")
		origin = flag.String("origin", "", "Origin header for the WebSocket upgrade (defaults to -server)")
		name   = flag.String("name", "viewer", "guest display name")
		arena  = flag.String("arena", "", "arena id to join (empty = quick-join)")
	)
	flag.Parse()

	base := strings.TrimRight(*server, "/")
	if *origin == "" {
		*origin = base
	}

	token, guestID, err := guestLogin(base, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Guest auth failed: %v\n", err)
		os.Exit(1)
	}

	header := http.Header{"Origin": []string{*origin}}
	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint(base), header)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WebSocket dial failed: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()

	v := &Viewer{
		screen:      screen,
		conn:        conn,
		send:        make(chan []byte, 64),
		done:        make(chan struct{}),
		server:      base,
		token:       token,
		targetArena: *arena,
		guestID:     guestID,
		lastHit:     make(map[string]time.Time),
	}
	v.width, v.height = screen.Size()

	defer v.cleanup()
	v.run()
}

func (v *Viewer) run() {
	go v.writePump()
	go v.readPump()

	v.sendMessage(protocol.TypeHello, protocol.HelloData{
		Token:           v.token,
		ProtocolVersion: protocol.Version,
	})

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case <-v.done:
			return

		case ev := <-eventChan:
			if !v.handleInput(ev) {
				return
			}

		case <-ticker.C:
			v.draw()
		}
	}
}

func (v *Viewer) cleanup() {
	v.screen.Fini()
	v.conn.Close()
}

// writePump is the only goroutine writing to the socket.
func (v *Viewer) writePump() {
	for msg := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (v *Viewer) sendMessage(msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return
	}
	select {
	case v.send <- data:
	default:
	}
}

// readPump applies server messages to the shared view state.
func (v *Viewer) readPump() {
	defer close(v.done)

	for {
		_, raw, err := v.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(raw)
		if err != nil {
			continue
		}

		switch msg.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeData
			if err := json.Unmarshal(msg.Data, &w); err != nil {
				continue
			}
			v.mu.Lock()
			v.guestID = w.GuestID
			v.mu.Unlock()
			v.setStatus(fmt.Sprintf("connected as guest %d", w.GuestID))

			if v.targetArena != "" {
				v.sendMessage(protocol.TypeJoinArena, protocol.JoinArenaData{ArenaID: v.targetArena})
			} else {
				go v.requestQuickJoin()
			}

		case protocol.TypeArenaJoined:
			var j protocol.ArenaJoinedData
			if err := json.Unmarshal(msg.Data, &j); err != nil {
				continue
			}
			v.mu.Lock()
			v.arenaID = j.Arena.ID
			v.arenaName = j.Arena.Name
			v.bounds = j.Arena.Bounds
			v.balls = j.Balls
			v.mu.Unlock()
			v.setStatus(fmt.Sprintf("joined %s", j.Arena.ID))

		case protocol.TypeFrame:
			var f protocol.FrameData
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				continue
			}
			v.mu.Lock()
			if f.ArenaID == v.arenaID {
				v.balls = f.Balls
			}
			v.mu.Unlock()

		case protocol.TypeBallCollision:
			var c protocol.BallCollisionData
			if err := json.Unmarshal(msg.Data, &c); err != nil {
				continue
			}
			now := time.Now()
			v.mu.Lock()
			v.lastHit[c.BallID] = now
			v.lastHit[c.OtherID] = now
			v.mu.Unlock()

		case protocol.TypeArenaEvent:
			v.handleArenaEvent(msg.Data)

		case protocol.TypeError:
			var e protocol.ErrorData
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				continue
			}
			v.setStatus("server: " + e.Message)
		}
	}
}

func (v *Viewer) handleArenaEvent(data json.RawMessage) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	eventType, _ := payload["type"].(string)
	arenaID, _ := payload["arena_id"].(string)

	switch eventType {
	case "arena_assigned":
		// Quick-join result: enter the assigned arena.
		v.mu.Lock()
		joined := v.arenaID != ""
		v.mu.Unlock()
		if !joined && arenaID != "" {
			v.sendMessage(protocol.TypeJoinArena, protocol.JoinArenaData{ArenaID: arenaID})
		}

	case "arena_resized":
		w, _ := payload["width"].(float64)
		h, _ := payload["height"].(float64)
		v.mu.Lock()
		if arenaID == v.arenaID && w > 0 && h > 0 {
			v.bounds = sim.Bounds{Width: w, Height: h}
		}
		v.mu.Unlock()

	case "arena_closed":
		v.mu.Lock()
		if arenaID == v.arenaID {
			v.arenaID = ""
			v.balls = nil
		}
		v.mu.Unlock()
		v.setStatus("arena closed")
	}
}

// requestQuickJoin enqueues this guest for placement; the assignment arrives
// as an arena_assigned event on the socket.
func (v *Viewer) requestQuickJoin() {
	req, err := http.NewRequest(http.MethodPost, v.server+"/api/v1/quickjoin", bytes.NewReader([]byte("{}")))
	if err != nil {
		v.setStatus("quick-join failed: " + err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		v.setStatus("quick-join failed: " + err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		v.setStatus("quick-join returned " + resp.Status)
		return
	}
	v.setStatus("waiting for arena placement...")
}

func (v *Viewer) setStatus(s string) {
	v.mu.Lock()
	v.status = s
	v.statusAt = time.Now()
	v.mu.Unlock()
}

func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 'a':
			v.sendMessage(protocol.TypeSpawnBall, protocol.SpawnBallData{Preset: sim.PresetRandom})
		case 'l':
			v.sendMessage(protocol.TypeSpawnBall, protocol.SpawnBallData{Preset: sim.PresetLight})
		case 'm':
			v.sendMessage(protocol.TypeSpawnBall, protocol.SpawnBallData{Preset: sim.PresetMedium})
		case 'h':
			v.sendMessage(protocol.TypeSpawnBall, protocol.SpawnBallData{Preset: sim.PresetHeavy})
		case 'r':
			v.sendMessage(protocol.TypeRemoveBall, nil)
		case 'c':
			v.sendMessage(protocol.TypeClearBalls, nil)
		}

	case *tcell.EventMouse:
		v.handleMouse(ev)

	case *tcell.EventResize:
		v.screen.Sync()
		v.width, v.height = v.screen.Size()
		v.mu.Lock()
		joined := v.arenaID != ""
		v.mu.Unlock()
		if joined {
			v.sendMessage(protocol.TypeResize, protocol.ResizeData{
				Width:  float64(v.width * cellPixelsX),
				Height: float64((v.height - statusRows - helpRows) * cellPixelsY),
			})
		}
	}

	return true
}

func (v *Viewer) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	buttons := ev.Buttons()
	pressed := buttons&tcell.Button1 != 0
	wasPressed := v.prevButtons&tcell.Button1 != 0
	v.prevButtons = buttons

	ax, ay, ok := v.toArena(x, y)
	if !ok {
		if wasPressed && !pressed && v.heldBall != "" {
			v.sendMessage(protocol.TypePointerUp, protocol.PointerData{X: ax, Y: ay})
			v.heldBall = ""
		}
		return
	}

	switch {
	case pressed && !wasPressed:
		ball, hit := v.ballAt(ax, ay)
		if !hit {
			return
		}
		now := time.Now()
		if ball == v.lastClickBall && now.Sub(v.lastClickAt) < doubleClickMillis*time.Millisecond {
			v.pendingDouble = true
		}
		v.lastClickBall = ball
		v.lastClickAt = now
		v.heldBall = ball
		v.sendMessage(protocol.TypePointerDown, protocol.PointerDownData{BallID: ball, X: ax, Y: ay})

	case pressed && wasPressed && v.heldBall != "":
		v.sendMessage(protocol.TypePointerMove, protocol.PointerData{X: ax, Y: ay})

	case !pressed && wasPressed && v.heldBall != "":
		v.sendMessage(protocol.TypePointerUp, protocol.PointerData{X: ax, Y: ay})
		if v.pendingDouble {
			// Browser event order: dblclick lands after the second mouseup.
			v.sendMessage(protocol.TypeDoubleClick, protocol.DoubleClickData{BallID: v.heldBall})
			v.pendingDouble = false
		}
		v.heldBall = ""
	}
}

// toArena maps a terminal cell to arena pixels.
func (v *Viewer) toArena(x, y int) (float64, float64, bool) {
	v.mu.Lock()
	bounds := v.bounds
	joined := v.arenaID != ""
	v.mu.Unlock()

	rows := v.height - statusRows - helpRows
	if !joined || v.width <= 0 || rows <= 0 || bounds.Width <= 0 || bounds.Height <= 0 {
		return 0, 0, false
	}

	ax := (float64(x) + 0.5) * bounds.Width / float64(v.width)
	ay := (float64(y-statusRows) + 0.5) * bounds.Height / float64(rows)
	if ay < 0 || ay > bounds.Height {
		return 0, 0, false
	}
	return ax, ay, true
}

// ballAt finds the topmost ball covering an arena point. Later roster
// entries render on top, so the scan runs backwards.
func (v *Viewer) ballAt(ax, ay float64) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := len(v.balls) - 1; i >= 0; i-- {
		if v.balls[i].Contains(sim.Vec2{X: ax, Y: ay}) {
			return v.balls[i].ID, true
		}
	}
	return "", false
}

func (v *Viewer) draw() {
	v.mu.Lock()
	arenaID := v.arenaID
	arenaName := v.arenaName
	bounds := v.bounds
	balls := make([]sim.Ball, len(v.balls))
	copy(balls, v.balls)
	status := v.status
	statusAt := v.statusAt
	now := time.Now()
	flashing := make(map[string]bool, len(v.lastHit))
	for id, at := range v.lastHit {
		if now.Sub(at) < flashMillis*time.Millisecond {
			flashing[id] = true
		} else {
			delete(v.lastHit, id)
		}
	}
	v.mu.Unlock()

	v.screen.Clear()

	rows := v.height - statusRows - helpRows
	if rows > 0 && arenaID != "" && bounds.Width > 0 && bounds.Height > 0 {
		sx := float64(v.width) / bounds.Width
		sy := float64(rows) / bounds.Height
		for _, b := range balls {
			v.drawBall(b, sx, sy, flashing[b.ID])
		}
	}

	header := fmt.Sprintf(" BallPit  %s", v.server)
	if arenaID != "" {
		header = fmt.Sprintf(" BallPit  %s (%s)  balls %d  %.0fx%.0f", arenaID, arenaName, len(balls), bounds.Width, bounds.Height)
	}
	if status != "" && now.Sub(statusAt) < statusMillis*time.Millisecond {
		header += "  | " + status
	}
	v.drawLine(0, header, tcell.StyleDefault.Reverse(true))
	v.drawLine(v.height-1, " "+helpLine, tcell.StyleDefault.Dim(true))

	v.screen.Show()
}

func (v *Viewer) drawBall(b sim.Ball, sx, sy float64, flash bool) {
	style := tcell.StyleDefault.Foreground(ballColor(b.Size))
	switch {
	case flash:
		style = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	case b.Dragging:
		style = style.Reverse(true)
	case !b.Animating:
		style = style.Dim(true)
	}

	cx := (b.Position.X + b.Size/2) * sx
	cy := float64(statusRows) + (b.Position.Y+b.Size/2)*sy
	rx := math.Max(b.Size/2*sx, 0.5)
	ry := math.Max(b.Size/2*sy, 0.5)

	top := int(math.Ceil(cy - ry))
	bottom := int(math.Floor(cy + ry))
	for y := top; y <= bottom; y++ {
		dy := (float64(y) - cy) / ry
		span := rx * math.Sqrt(math.Max(0, 1-dy*dy))
		left := int(math.Ceil(cx - span))
		right := int(math.Floor(cx + span))
		for x := left; x <= right; x++ {
			if x < 0 || x >= v.width || y < statusRows || y >= v.height-helpRows {
				continue
			}
			v.screen.SetContent(x, y, '█', nil, style)
		}
	}
}

func (v *Viewer) drawLine(y int, text string, style tcell.Style) {
	for x := 0; x < v.width; x++ {
		r := ' '
		if x < len(text) {
			r = rune(text[x])
		}
		v.screen.SetContent(x, y, r, nil, style)
	}
}

func ballColor(size float64) tcell.Color {
	switch {
	case size <= sim.SizeLight:
		return tcell.ColorGreen
	case size <= sim.SizeMedium:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

func guestLogin(server, name string) (string, int, error) {
	body, _ := json.Marshal(map[string]string{"display_name": name})
	resp, err := http.Post(server+"/api/v1/auth/guest", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("guest auth returned %s", resp.Status)
	}

	var out struct {
		Token string `json:"token"`
		Guest struct {
			ID int `json:"id"`
		} `json:"guest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	if out.Token == "" {
		return "", 0, fmt.Errorf("guest auth returned no token")
	}
	return out.Token, out.Guest.ID, nil
}

func wsEndpoint(server string) string {
	ws := server
	switch {
	case strings.HasPrefix(server, "https://"):
		ws = "wss://" + strings.TrimPrefix(server, "https://")
	case strings.HasPrefix(server, "http://"):
		ws = "ws://" + strings.TrimPrefix(server, "http://")
	}
	return ws + "/ws"
}

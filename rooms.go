package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "partyprompt_id"

// Client is one live websocket connection. The playerID cookie is the
// stable identity that survives refreshes and reconnects; isHostDisplay
// marks the dedicated shared-screen connection.
type Client struct {
	conn          *websocket.Conn
	send          chan any
	playerID      string
	isHostDisplay bool
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds the rooms keyed by game ID, so each /play/:gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	cfg         *Config
	bank        *promptBank
	idleTimeout time.Duration
}

func newGameManager(cfg *Config, bank *promptBank) *GameManager {
	gm := &GameManager{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		bank:        bank,
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

// getRoom lazily (re)creates room state: if a message arrives for a
// room that was reaped, a fresh one starts in the lobby.
func (gm *GameManager) getRoom(gameID string) *Room {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if room, ok := gm.rooms[gameID]; ok {
		return room
	}

	room := newRoom(gm.cfg, gm.bank, gameID)
	gm.rooms[gameID] = room
	go room.run()
	return room
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.rooms[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically shuts down rooms that have been idle longer
// than idleTimeout. Durable prompt history is keyed by room id, so a
// reaped room that comes back keeps its history.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, room := range gm.rooms {
			if room.idleSince().Before(cutoff) {
				delete(gm.rooms, id)
				logf(gm.cfg, "GAMES: Reaped idle game %s", id)
				room.stop()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the room based on :gameid. The host
// display announces itself with ?host=true.
func serveRoomWS(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		room := gm.getRoom(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:          conn,
			send:          make(chan any, 16),
			playerID:      playerID,
			isHostDisplay: r.URL.Query().Get("host") == "true",
		}

		room.register <- client

		go client.writePump()
		client.readPump(room)
	}
}

func (c *Client) readPump(r *Room) {
	defer func() {
		select {
		case r.unreg <- c:
		case <-r.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case r.inbox <- envelope{client: c, msg: msg}:
		case <-r.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func servePlayerPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		gameID := ps.ByName("gameid")
		body := `<h1>partyprompt</h1><p>Game ` + gameID + `.</p>` +
			`<p>Connect a client to <code>` + r.URL.Path + `/ws</code> to play.</p>` +
			`<p><a href="` + r.URL.Path + `/qr">Share this game</a></p>`

		_, _ = w.Write([]byte(newPage("partyprompt", body)))
	}
}

func serveHostPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		gameID := ps.ByName("gameid")
		gamePath := strings.TrimSuffix(r.URL.Path, "/host")
		body := `<h1>partyprompt host</h1><p>Game ` + gameID + `.</p>` +
			`<p>Connect the shared screen to <code>` + gamePath + `/ws?host=true</code>.</p>` +
			`<p><a href="` + gamePath + `/qr">Share this game</a></p>`

		_, _ = w.Write([]byte(newPage("partyprompt host", body)))
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerPromptGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → player page
//   - $path/:gameid/host     → host display page
//   - $path/:gameid/ws       → WebSocket for that game (?host=true for the display)
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerPromptGame(cfg *Config, path string, mux *httprouter.Router, bank *promptBank) {
	gm := newGameManager(cfg, bank)

	// Root path → redirect to new random game
	mux.GET(path, redirectNewGame(cfg, path, gm))

	// Per-game views
	mux.GET(cfg.prefix+path+"/:gameid", servePlayerPage(cfg))
	mux.GET(cfg.prefix+path+"/:gameid/host", serveHostPage(cfg))

	// Per-game websocket
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveRoomWS(cfg, gm))

	// Per-game QR code
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}

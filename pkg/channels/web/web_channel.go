package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"salesagent/pkg/agent"
	"salesagent/pkg/api"
	"salesagent/pkg/utils"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed index.html
var indexHTML []byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

type WebConfig struct {
	Port int `json:"port"` // Default: 8080
	// RunTimeoutSec bounds one question end to end. Default: 300.
	RunTimeoutSec int `json:"run_timeout_sec"`
}

// IncomingMessage is a websocket question. Plain text frames are accepted too.
type IncomingMessage struct {
	Question string `json:"question"`
}

type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

type WebChannel struct {
	config WebConfig
	server *http.Server
}

func NewWebChannel(cfg WebConfig) *WebChannel {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RunTimeoutSec <= 0 {
		cfg.RunTimeoutSec = 300
	}
	return &WebChannel{config: cfg}
}

func (c *WebChannel) ID() string {
	return "web"
}

func (c *WebChannel) Start(ctx api.ChannelContext) error {
	addr := fmt.Sprintf(":%d", c.config.Port)
	c.server = &http.Server{
		Addr:              addr,
		Handler:           c.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web API listening", "port", c.config.Port)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	if c.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.server.Shutdown(shutdownCtx)
}

// Handler returns the HTTP routes of the channel.
func (c *WebChannel) Handler(ctx api.ChannelContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
		c.handleAsk(w, r, ctx)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})
	return mux
}

type askResponse struct {
	Response string             `json:"response"`
	Logs     []agent.TraceEntry `json:"logs"`
	State    agent.State        `json:"state"`
}

type askError struct {
	Error string             `json:"error"`
	Logs  []agent.TraceEntry `json:"logs"`
}

func (c *WebChannel) handleAsk(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, askError{Error: "method not allowed", Logs: []agent.TraceEntry{}})
		return
	}

	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" && r.Method == http.MethodPost {
		var body IncomingMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			question = strings.TrimSpace(body.Question)
		}
	}
	if question == "" {
		writeJSON(w, http.StatusBadRequest, askError{Error: "No question provided", Logs: []agent.TraceEntry{}})
		return
	}

	runCtx, cancel := context.WithTimeout(r.Context(), time.Duration(c.config.RunTimeoutSec)*time.Second)
	defer cancel()

	session := api.SessionContext{
		ChannelID: c.ID(),
		UserID:    r.RemoteAddr,
		ChatID:    utils.GenerateID(),
		Username:  "WebUser",
	}

	res, err := ctx.Ask(runCtx, session, question)
	if err != nil {
		logs := []agent.TraceEntry{{Tag: agent.TagError, Message: fmt.Sprintf("Exception: %v", err)}}
		if res != nil && len(res.Trace) > 0 {
			logs = res.Trace
		}
		writeJSON(w, http.StatusInternalServerError, askError{Error: err.Error(), Logs: logs})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Response: res.FinalText,
		Logs:     res.Trace,
		State:    res.State,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// handleWebSocket answers each incoming question, streaming trace entries
// as they happen, then the answer and a done marker.
func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	defer conn.Close()

	session := api.SessionContext{
		ChannelID: c.ID(),
		UserID:    r.RemoteAddr,
		ChatID:    utils.GenerateID(),
		Username:  "WebUser",
	}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				slog.Debug("WS read ended", "error", err)
			}
			return
		}

		question := string(msgBytes)
		var incoming IncomingMessage
		if err := json.Unmarshal(msgBytes, &incoming); err == nil && incoming.Question != "" {
			question = incoming.Question
		}
		question = strings.TrimSpace(question)
		if question == "" {
			conn.WriteJSON(map[string]any{"type": "error", "text": "No question provided"})
			continue
		}

		observed := agent.WithTraceObserver(r.Context(), func(e agent.TraceEntry) {
			conn.WriteJSON(map[string]any{"type": "trace", "tag": e.Tag, "message": e.Message})
		})
		runCtx, cancel := context.WithTimeout(observed, time.Duration(c.config.RunTimeoutSec)*time.Second)
		res, err := ctx.Ask(runCtx, session, question)
		cancel()

		if err != nil {
			conn.WriteJSON(map[string]any{"type": "error", "text": err.Error()})
		} else {
			conn.WriteJSON(map[string]any{"type": "answer", "text": res.FinalText, "state": res.State})
		}
		if err := conn.WriteJSON(map[string]any{"type": "done"}); err != nil {
			return
		}
	}
}

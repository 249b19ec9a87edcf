package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stockbot/internal/domain"
)

const apiMaxBodySize = 64 << 10

// LookupFunc answers one message synchronously.
type LookupFunc func(ctx context.Context, text string) (replies []domain.Reply, prefixText string)

// APIServer is the HTTP surface: health, metrics exposition and an optional
// JSON lookup endpoint that runs text through the same pipeline as chat.
type APIServer struct {
	listen   string
	apiKey   string
	lookup   LookupFunc
	metrics  http.Handler
	endpoint string
	logger   *slog.Logger
	server   *http.Server
}

type APIServerConfig struct {
	Listen          string       // e.g. ":9090"
	APIKey          string       // bearer token for /v1/lookup; empty = open
	Lookup          LookupFunc   // nil disables /v1/lookup
	Metrics         http.Handler // nil disables metrics
	MetricsEndpoint string       // default "/metrics"
	Logger          *slog.Logger
}

func NewAPIServer(cfg APIServerConfig) *APIServer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = "/metrics"
	}
	return &APIServer{
		listen:   cfg.Listen,
		apiKey:   cfg.APIKey,
		lookup:   cfg.Lookup,
		metrics:  cfg.Metrics,
		endpoint: cfg.MetricsEndpoint,
		logger:   cfg.Logger,
	}
}

// Handler returns the server's routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET "+s.endpoint, s.metrics)
	}
	if s.lookup != nil {
		mux.HandleFunc("POST /v1/lookup", s.handleLookup)
	}
	return mux
}

// Start serves until ctx is cancelled.
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second, // a lookup can fetch several charts
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("api server started", "addr", s.listen, "metrics", s.metrics != nil, "lookup", s.lookup != nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type lookupRequest struct {
	Text string `json:"text"`
}

type lookupResponse struct {
	Text    string      `json:"text,omitempty"`
	Replies []replyJSON `json:"replies"`
}

type fieldJSON struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type controlJSON struct {
	Kind         string `json:"kind"`
	Symbol       string `json:"symbol"`
	PeriodMonths int    `json:"period_months"`
}

type replyJSON struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       string       `json:"color"`
	Fields      []fieldJSON  `json:"fields,omitempty"`
	ChartPNG    []byte       `json:"chart_png,omitempty"` // base64 in JSON
	Control     *controlJSON `json:"control,omitempty"`
}

func toReplyJSON(r domain.Reply) replyJSON {
	out := replyJSON{
		Title:       r.Embed.Title,
		Description: r.Embed.Description,
		Color:       colorHex(r.Embed.Color),
	}
	for _, f := range r.Embed.Fields {
		out.Fields = append(out.Fields, fieldJSON(f))
	}
	if r.Image != nil {
		out.ChartPNG = r.Image.Data
	}
	if r.Control != nil {
		out.Control = &controlJSON{Kind: string(r.Control.Kind), Symbol: r.Control.Symbol, PeriodMonths: r.Control.PeriodMonths}
	}
	return out
}

func colorHex(c domain.Color) string {
	const digits = "0123456789abcdef"
	b := []byte("#000000")
	for i := 6; i >= 1; i-- {
		b[i] = digits[c&0xf]
		c >>= 4
	}
	return string(b)
}

func (s *APIServer) handleLookup(rw http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.apiKey {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			return
		}
	}

	var req lookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, apiMaxBodySize)).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	replies, text := s.lookup(r.Context(), req.Text)
	resp := lookupResponse{Text: text, Replies: make([]replyJSON, 0, len(replies))}
	for _, rep := range replies {
		resp.Replies = append(resp.Replies, toReplyJSON(rep))
	}
	s.logger.Debug("api lookup", "text_len", len(req.Text), "replies", len(replies))
	writeJSON(rw, http.StatusOK, resp)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// Package webap is the captive web surface (C5): AP-side HTTP routing,
// the display mirror projection, and the token-based survey↔session
// binding protocol that attributes each submission to the correct
// wristband color.
//
// The route table and JSON/CSV shapes are grounded on spec.md §4.4 and
// §6; the request-logging decorator is adapted from periph-web's
// loghttp.go response-writer wrapper.
package webap

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/theralink/kiosk/internal/colorclass"
	"github.com/theralink/kiosk/internal/display"
	"github.com/theralink/kiosk/internal/store"
)

const (
	colorVerde    = "verde"
	colorAmarelo  = "amarelo"
	colorVermelho = "vermelho"
)

func classToQueryColor(c colorclass.Class) (string, bool) {
	switch c {
	case colorclass.Green:
		return colorVerde, true
	case colorclass.Yellow:
		return colorAmarelo, true
	case colorclass.Red:
		return colorVermelho, true
	default:
		return "", false
	}
}

func queryColorToClass(q string) (colorclass.Class, bool) {
	switch q {
	case colorVerde:
		return colorclass.Green, true
	case colorAmarelo:
		return colorclass.Yellow, true
	case colorVermelho:
		return colorclass.Red, true
	default:
		return colorclass.Unknown, false
	}
}

// Server is the captive portal's HTTP surface, plus the survey
// state the orchestrator drives through SetMode/ResetPending/Peek/Take/
// Assign.
type Server struct {
	mu     sync.Mutex
	survey *surveyState

	mirror *display.Mirror
	store  *store.Store

	httpServer *http.Server
}

// New returns a Server wired to the given display mirror and aggregation
// store; call ListenAndServe to bring up the HTTP listener.
func New(mirror *display.Mirror, st *store.Store) *Server {
	return &Server{
		survey: newSurveyState(),
		mirror: mirror,
		store:  st,
	}
}

// ListenAndServe brings up the HTTP listener at addr (normally
// 192.168.4.1:80) and serves until the process exits or Close is called.
// Wi-Fi/AP bring-up failures are fatal only to the web surface: the
// kiosk continues with its local UI, per spec.md §7.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	return s.httpServer.ListenAndServe()
}

// Handler returns the full routed, logging-wrapped HTTP handler, per the
// route table in spec.md §4.4. Exposed so cmd/kiosk can serve it behind a
// custom listener and so tests can drive the routes with httptest without
// binding a real port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/display", s.handleDisplay)
	mux.HandleFunc("/oled.json", s.handleOledJSON)
	mux.HandleFunc("/survey", s.handleSurvey)
	mux.HandleFunc("/survey_submit", s.handleSurveySubmit)
	mux.HandleFunc("/survey_state.json", s.handleSurveyStateJSON)
	mux.HandleFunc("/stats.json", s.handleStatsJSON)
	mux.HandleFunc("/download.csv", s.handleDownloadCSV)
	mux.HandleFunc("/favicon.ico", s.handleFavicon)
	return loggingHandler(mux)
}

// Close shuts the HTTP listener down.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

// --- Survey control protocol, driven by the orchestrator. ---

// SetMode turns the display redirect on/off; see surveyState.setMode.
func (s *Server) SetMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.survey.setMode(on)
}

// ResetPending clears the pending flag only.
func (s *Server) ResetPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.survey.resetPending()
}

// Peek is the non-destructive (bits, token, pending) read the
// orchestrator polls after opening survey mode.
func (s *Server) Peek() (bits uint16, token uint32, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.survey.peek()
}

// Take consumes the pending submission.
func (s *Server) Take() (bits uint16, token uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.survey.take()
}

// Assign routes the submission identified by token into color's survey
// aggregates, if token is the last-seen nonzero token.
func (s *Server) Assign(token uint32, color colorclass.Class) bool {
	qc, ok := classToQueryColor(color)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.survey.assign(token, qc)
}

// --- HTTP handlers. ---

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "close")
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	color := ""
	if c := r.URL.Query().Get("color"); c != "" {
		if _, ok := queryColorToClass(c); ok {
			color = c
		}
	}
	fmt.Fprint(w, renderDashboardHTML(color))
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	s.mu.Lock()
	mode := s.survey.mode
	s.mu.Unlock()
	if mode {
		http.Redirect(w, r, "/survey", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, displayHTML)
}

func (s *Server) handleOledJSON(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.mirror.ToJSON())
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	s.mu.Lock()
	mode := s.survey.mode
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !mode {
		return
	}
	fmt.Fprint(w, surveyHTML)
}

// handleSurveySubmit implements the MalformedSurvey error kind: input
// that isn't exactly 10 '0'/'1' characters is a redirect with no state
// change.
func (s *Server) handleSurveySubmit(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	ans := r.URL.Query().Get("ans")
	if bits, ok := parseAnswerBits(ans); ok {
		s.mu.Lock()
		s.survey.submit(bits)
		s.mu.Unlock()
	}
	http.Redirect(w, r, "/display", http.StatusFound)
}

// parseAnswerBits accepts exactly ten '0'/'1' characters and packs them
// bit i = question i, per spec.md §6's wire format.
func parseAnswerBits(ans string) (uint16, bool) {
	if len(ans) != 10 {
		return 0, false
	}
	var bits uint16
	for i := 0; i < 10; i++ {
		switch ans[i] {
		case '1':
			bits |= 1 << uint(i)
		case '0':
			// no bit set
		default:
			return 0, false
		}
	}
	return bits, true
}

func (s *Server) handleSurveyStateJSON(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	s.mu.Lock()
	mode := s.survey.mode
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	m := 0
	if mode {
		m = 1
	}
	fmt.Fprintf(w, `{"mode":%d}`, m)
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=stats.csv")
	w.Write(s.store.DumpCSV())
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatsJSON(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")

	colorParam := r.URL.Query().Get("color")
	class, filtered := queryColorToClass(colorParam)

	snap := s.store.Snapshot(class, filtered)

	s.mu.Lock()
	var sb surveyBucket
	if filtered {
		sb = *s.survey.byColor[colorParam]
	} else {
		sb = s.survey.overall
	}
	s.mu.Unlock()

	json.NewEncoder(w).Encode(buildStatsJSON(snap, sb))
}

func loggingHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusWriter{ResponseWriter: w}
		defer func() {
			log.Printf("%s - %3d %6db %-4s %s", r.RemoteAddr, rw.status, rw.length, r.Method, r.RequestURI)
		}()
		h.ServeHTTP(rw, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status and byte
// count for the access log, adapted from periph-web's responseWriter.
type statusWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.length += n
	return n, err
}

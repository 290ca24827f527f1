package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"bundy/internal/bundy/identity"
	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/service"
	"bundy/internal/bundy/store"
	"bundy/internal/bundy/types"
)

type Dependencies struct {
	Logger          *logrus.Logger
	Addr            string
	Attendance      *service.AttendanceService
	Policy          *policy.Cache
	Templates       *identity.Resolver
	AttendanceStore store.AttendanceStore
}

type Server struct {
	httpServer      *http.Server
	logger          *logrus.Logger
	mux             *http.ServeMux
	attendance      *service.AttendanceService
	policy          *policy.Cache
	templates       *identity.Resolver
	attendanceStore store.AttendanceStore
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:          d.Logger,
		mux:             mux,
		attendance:      d.Attendance,
		policy:          d.Policy,
		templates:       d.Templates,
		attendanceStore: d.AttendanceStore,
	}

	mux.HandleFunc("POST /v1/capture", s.handleCapture)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	mux.HandleFunc("POST /v1/templates/reload", s.handleTemplateReload)
	mux.HandleFunc("GET /v1/attendance/{employeeID}/today", s.handleAttendanceToday)
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req types.CaptureRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.attendance.Process(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFeatureSet) {
			writeError(w, http.StatusBadRequest, "invalid_feature_set", err.Error())
			return
		}
		s.logger.WithError(err).Error("capture error")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	// Every classified outcome, rejections and storage errors included, is
	// a 200 with the outcome in the body; the terminal renders it.
	writeJSON(w, http.StatusOK, res)
}

// sessionView is the JSON shape of one session definition, mirroring the
// policy endpoint's field names.
type sessionView struct {
	SessionName  string  `json:"session_name"`
	TimeInStart  string  `json:"time_in_start"`
	TimeInEnd    string  `json:"time_in_end"`
	TimeOutStart *string `json:"time_out_start"`
	TimeOutEnd   *string `json:"time_out_end"`
	LateTime     *string `json:"late_time"`
}

type sessionsResponse struct {
	Allowed       bool          `json:"allowed"`
	ActiveSession string        `json:"active_session"`
	Sessions      []sessionView `json:"sessions"`
	ServerTime    string        `json:"server_time"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	tod := types.TimeOfDayOf(now)
	sched := s.policy.Schedule(r.Context())

	defs := sched.Definitions()
	views := make([]sessionView, 0, len(defs))
	for _, d := range defs {
		views = append(views, sessionView{
			SessionName:  d.Name,
			TimeInStart:  d.TimeInStart.String(),
			TimeInEnd:    d.TimeInEnd.String(),
			TimeOutStart: optionalString(d.TimeOutStart),
			TimeOutEnd:   optionalString(d.TimeOutEnd),
			LateTime:     optionalString(d.LateTime),
		})
	}

	writeJSON(w, http.StatusOK, sessionsResponse{
		Allowed:       sched.IsAttendanceAllowed(tod),
		ActiveSession: sched.DetermineSession(tod),
		Sessions:      views,
		ServerTime:    now.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleTemplateReload(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Reload(r.Context()); err != nil {
		s.logger.WithError(err).Error("template reload failed")
		writeError(w, http.StatusInternalServerError, "reload_failed", "template reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"templates": s.templates.TemplateCount(),
	})
}

type attendanceView struct {
	EmployeeID string  `json:"employee_id"`
	Day        string  `json:"day"`
	TimeIn     *string `json:"time_in"`
	TimeOut    *string `json:"time_out"`
	Status     string  `json:"status"`
	Session    string  `json:"session"`
	WorkedS    int64   `json:"worked_s"`
}

func (s *Server) handleAttendanceToday(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("employeeID")
	day := time.Now().Format("2006-01-02")

	rec, err := s.attendanceStore.GetForDay(r.Context(), employeeID, day)
	if err != nil {
		s.logger.WithError(err).Error("attendance read failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no_record", "no attendance record for today")
		return
	}

	writeJSON(w, http.StatusOK, attendanceView{
		EmployeeID: rec.EmployeeID,
		Day:        rec.Day,
		TimeIn:     optionalString(rec.TimeIn),
		TimeOut:    optionalString(rec.TimeOut),
		Status:     string(rec.Status),
		Session:    rec.Session,
		WorkedS:    int64(rec.Worked.Seconds()),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func optionalString(t *types.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"bytes"
	"embed"
	"html/template"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/framecmp/framecmp/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type pageData struct {
	Session  *SessionResponse
	Index    int
	MaxIndex int
	Result   *CompareResponse
	Error    *ErrorView
	Recent   []SessionResponse
	Accept   string
	MaxMB    int64
}

type ErrorView struct {
	Code    string
	Message string
	Warning bool
}

func errorView(err error) *ErrorView {
	e := classify(err)
	return &ErrorView{Code: e.Code, Message: e.Message, Warning: e.Warning}
}

func pageURL(sessionID string, index int) string {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("index", strconv.Itoa(index))
	return "/?" + q.Encode()
}

func acceptList() string {
	return strings.Join(slices.Sorted(maps.Keys(session.VideoExtensions)), ",")
}

// indexHandler renders the comparison page. With ?session=ID it also scores
// ?index=N (default 1) so the page is usable without script.
func indexHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data := pageData{}
		status := http.StatusOK

		if recent, err := cfg.Sessions.ListSessions(ctx, 10); err == nil {
			for _, s := range recent {
				data.Recent = append(data.Recent, SessionToResponse(s))
			}
		}

		id := r.URL.Query().Get("session")
		if id == "" {
			renderPage(w, cfg, data, status)
			return
		}

		sess, err := cfg.Sessions.GetSession(ctx, id)
		if err != nil {
			data.Error = errorView(err)
			renderPage(w, cfg, data, classify(err).Status)
			return
		}
		resp := SessionToResponse(sess)
		data.Session = &resp
		data.MaxIndex = sess.MaxIndex()

		if sess.Status != session.StatusReady {
			data.Error = sessionStatusError(sess)
			renderPage(w, cfg, data, status)
			return
		}

		data.Index = 1
		if raw := r.URL.Query().Get("index"); raw != "" {
			if data.Index, err = strconv.Atoi(raw); err != nil {
				data.Index = 1
				data.Error = &ErrorView{Code: "BAD_REQUEST", Message: "index must be an integer"}
				renderPage(w, cfg, data, http.StatusBadRequest)
				return
			}
		}

		res, err := cfg.Sessions.Compare(ctx, id, data.Index)
		if err != nil {
			data.Error = errorView(err)
			status = classify(err).Status
			data.Index = min(max(data.Index, 1), max(data.MaxIndex, 1))
		} else {
			cr := CompareToResponse(id, data.MaxIndex, res)
			data.Result = &cr
		}
		renderPage(w, cfg, data, status)
	}
}

func sessionStatusError(sess *session.Session) *ErrorView {
	switch sess.Status {
	case session.StatusEmpty:
		return &ErrorView{Code: "EMPTY_EXTRACTION", Message: sess.Error, Warning: true}
	case session.StatusFailed:
		return &ErrorView{Code: failureCode(sess.Reason), Message: sess.Error}
	default:
		return &ErrorView{Code: "NOT_READY", Message: "session is " + sess.Status, Warning: true}
	}
}

func renderPage(w http.ResponseWriter, cfg ServerConfig, data pageData, status int) {
	data.Accept = acceptList()
	data.MaxMB = cfg.MaxUploadBytes >> 20

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		cfg.Logger.Error("template render failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to render page", "INTERNAL_ERROR")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

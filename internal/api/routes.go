package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/framecmp/framecmp/internal/media"
	"github.com/framecmp/framecmp/internal/metrics"
	"github.com/framecmp/framecmp/internal/session"
)

// multipartMemory is how much of an upload is held in memory before the
// multipart reader spills to a temp file.
const multipartMemory = 32 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())

		r.Get("/", indexHandler(cfg))

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", listSessionsHandler(cfg))
			r.Post("/", createSessionHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getSessionHandler(cfg))
				r.Delete("/", deleteSessionHandler(cfg))
				r.Get("/compare", compareHandler(cfg))
				r.Get("/frames/{kind}/{index}", frameHandler(cfg))
				r.Get("/videos/{kind}", videoHandler(cfg))
				r.Head("/videos/{kind}", videoHandler(cfg))
			})
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:     "ok",
			Version:    cfg.Version,
			UptimeS:    uptime,
			InstanceID: cfg.InstanceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := cfg.Sessions.CountSessions(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count sessions", "INTERNAL_ERROR")
			return
		}

		resp := StatusResponse{State: "idle", SessionsCount: count}

		if cfg.Janitor != nil {
			resp.JanitorPaused = cfg.Janitor.IsPaused()
			resp.JanitorRunning = cfg.Janitor.IsRunning()
			if resp.JanitorPaused {
				resp.State = "paused"
			}
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Tools = &ToolsResponse{
					FFmpeg:     toolResponse(caps.FFmpeg.Available, caps.FFmpeg.Version, caps.FFmpeg.Error),
					FFprobe:    toolResponse(caps.FFprobe.Available, caps.FFprobe.Version, caps.FFprobe.Error),
					CanExtract: caps.CanExtract(),
				}
				if !caps.ProbedAt.IsZero() {
					resp.Tools.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
				if !caps.CanExtract() {
					resp.State = "degraded"
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func toolResponse(available bool, version, errMsg string) ToolResponse {
	return ToolResponse{Available: available, Version: version, Error: errMsg}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.Sessions.ListSessions(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := wantsHTML(r)
		fail := func(err error, sessionID string) {
			if html {
				renderPage(w, cfg, pageData{Error: errorView(err)}, classify(err).Status)
				return
			}
			writeSessionError(w, cfg.Logger, err, sessionID)
		}

		if cfg.MaxUploadBytes > 0 {
			if r.ContentLength > cfg.MaxUploadBytes {
				fail(fmt.Errorf("%w: exceeds %d bytes", errUploadTooLarge, cfg.MaxUploadBytes), "")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(fmt.Errorf("%w: exceeds %d bytes", errUploadTooLarge, tooLarge.Limit), "")
				return
			}
			fail(fmt.Errorf("%w: %v", session.ErrBadUpload, err), "")
			return
		}
		defer r.MultipartForm.RemoveAll()

		fake, closeFake, err := formUpload(r, "fake")
		if err != nil {
			fail(err, "")
			return
		}
		defer closeFake()

		real, closeReal, err := formUpload(r, "real")
		if err != nil {
			fail(err, "")
			return
		}
		defer closeReal()

		sess, err := cfg.Sessions.CreateSession(r.Context(), fake, real)
		if err != nil {
			sessionID := ""
			if sess != nil {
				sessionID = sess.ID
			}
			fail(err, sessionID)
			return
		}

		if html {
			http.Redirect(w, r, pageURL(sess.ID, 1), http.StatusSeeOther)
			return
		}
		WriteJSON(w, http.StatusCreated, SessionToResponse(sess))
	}
}

func formUpload(r *http.Request, field string) (session.Upload, func(), error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return session.Upload{}, nil, fmt.Errorf("%w: missing %s video", session.ErrBadUpload, field)
		}
		return session.Upload{}, nil, fmt.Errorf("%w: %s video: %v", session.ErrBadUpload, field, err)
	}
	return session.Upload{Filename: uploadName(hdr), Body: f}, func() { f.Close() }, nil
}

func uploadName(hdr *multipart.FileHeader) string {
	if hdr == nil {
		return ""
	}
	return hdr.Filename
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func compareHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Sessions.GetSession(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		res, err := cfg.Sessions.Compare(r.Context(), id, index)
		if err != nil {
			writeSessionError(w, cfg.Logger, err, id)
			return
		}
		WriteJSON(w, http.StatusOK, CompareToResponse(id, sess.MaxIndex(), res))
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := session.ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			WriteError(w, http.StatusBadRequest, "kind must be fake or real", "BAD_REQUEST")
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}

		img, err := cfg.Sessions.Frame(r.Context(), chi.URLParam(r, "id"), kind, index)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if err := media.WriteFrame(w, img); err != nil {
			cfg.Logger.Debug("frame write failed", "error", err)
		}
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := session.ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			WriteError(w, http.StatusBadRequest, "kind must be fake or real", "BAD_REQUEST")
			return
		}

		path, err := cfg.Sessions.VideoPath(r.Context(), chi.URLParam(r, "id"), kind)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		if err := cfg.Media.ServeVideo(w, r, path); err != nil {
			if errors.Is(err, media.ErrFileNotFound) {
				writeServiceError(w, cfg.Logger, err)
				return
			}
			cfg.Logger.Error("video serve error", "error", err, "kind", kind)
		}
	}
}

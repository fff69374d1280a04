// Package server exposes the published registry over local HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/boardzilla/boardzilla-modreg/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gookit/color"
	"github.com/tidwall/sjson"
)

type Server struct {
	loader *registry.Loader
	port   int
}

func NewServer(loader *registry.Loader, port int) (*Server, error) {
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	return &Server{
		loader: loader,
		port:   port,
	}, nil
}

func (s *Server) Serve() error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 200 * time.Millisecond,
		Addr:              fmt.Sprintf(":%d", s.port),
	}
	return srv.ListenAndServe()
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/pieces", s.withRegistry(func(w http.ResponseWriter, r *http.Request, reg *registry.ModuleRegistry) {
		info, err := json.Marshal(reg.PieceInfo())
		if err != nil {
			serverError(w, err)
			return
		}
		body, err := sjson.SetBytes([]byte(`{}`), "module", reg.Name())
		if err == nil {
			body, err = sjson.SetBytes(body, "version", reg.Version())
		}
		if err == nil {
			body, err = sjson.SetRawBytes(body, "pieces", info)
		}
		if err != nil {
			serverError(w, err)
			return
		}
		writeJSON(w, body)
	}))

	r.Get("/pieces/{gpid}/{face}", s.withRegistry(s.pieceImage))
	r.Get("/pieces/{gpid}/{face}/{index}", s.withRegistry(s.pieceImage))

	r.Get("/extensions", s.withRegistry(func(w http.ResponseWriter, r *http.Request, reg *registry.ModuleRegistry) {
		body := []byte(`{"extensions":[]}`)
		for _, e := range reg.Extensions() {
			var err error
			if body, err = sjson.SetBytes(body, "extensions.-1", e); err != nil {
				serverError(w, err)
				return
			}
		}
		writeJSON(w, body)
	}))

	r.Get("/diagnostics", s.withRegistry(func(w http.ResponseWriter, r *http.Request, reg *registry.ModuleRegistry) {
		body := []byte(`{"diagnostics":[]}`)
		for _, d := range reg.Diagnostics() {
			var err error
			if body, err = sjson.SetBytes(body, "diagnostics.-1", d); err != nil {
				serverError(w, err)
				return
			}
			if body, err = sjson.SetBytes(body, "diagnostics.-1.severity", d.Severity.String()); err != nil {
				serverError(w, err)
				return
			}
		}
		writeJSON(w, body)
	}))

	r.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := s.loader.Reload(); err != nil {
			color.Printf("<red>reload failed:</> %s\n", err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		color.Printf("<green>registry reloaded</>\n")
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func (s *Server) pieceImage(w http.ResponseWriter, r *http.Request, reg *registry.ModuleRegistry) {
	face, err := registry.ParseFace(chi.URLParam(r, "face"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index := 0
	if raw := chi.URLParam(r, "index"); raw != "" {
		if index, err = strconv.Atoi(raw); err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
	}
	imgPath, data, err := reg.PieceImage(chi.URLParam(r, "gpid"), face, index)
	if err != nil {
		serverError(w, err)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Add("Content-type", mime.TypeByExtension(path.Ext(imgPath)))
	w.Header().Add("X-Image-Path", imgPath)
	if _, err := w.Write(data); err != nil {
		color.Printf("<red>error:</> %s\n", err.Error())
	}
}

type registryHandler func(w http.ResponseWriter, r *http.Request, reg *registry.ModuleRegistry)

func (s *Server) withRegistry(h registryHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, release, err := s.loader.Holder().Acquire()
		defer release()
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h(w, r, reg)
	}
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Add("Content-type", "application/json")
	w.Header().Add("Cache-control", "no-store")
	if _, err := w.Write(body); err != nil {
		color.Printf("<red>error:</> %s\n", err.Error())
	}
}

func serverError(w http.ResponseWriter, err error) {
	color.Printf("<red>error:</> %s\n", err.Error())
	w.WriteHeader(http.StatusInternalServerError)
}

// Package handlers serves profiling over HTTP: a CDR file is uploaded,
// profiled synchronously and the resulting datasets are offered for download.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jalad-shrimali/cdr-sociometer/config"
	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/profiler"
	"github.com/jalad-shrimali/cdr-sociometer/spatial"
	"github.com/jalad-shrimali/cdr-sociometer/store"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

type Server struct {
	cfg *config.Config
	eng *engine.Engine
	log *slog.Logger
}

func NewServer(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, eng: eng, log: logger}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.upload).Methods(http.MethodPost)
	r.PathPrefix("/download/").Handler(
		http.StripPrefix("/download/", http.FileServer(http.Dir(s.cfg.Output.Dir)))).Methods(http.MethodGet)
	return r
}

type windowJSON struct {
	Name      string   `json:"name"`
	Users     int      `json:"users"`
	Baskets   int      `json:"baskets"`
	Downloads []string `json:"downloads"`
}

type uploadResponse struct {
	Job       string       `json:"job"`
	RunID     string       `json:"run_id"`
	Windows   []windowJSON `json:"windows"`
	Skipped   []string     `json:"skipped,omitempty"`
	Malformed int64        `json:"malformed"`
	Unknown   int64        `json:"unknown_cell"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// upload takes a multipart form with the CDR "file", an optional
// "spatial_division" file and the "start_date"/"end_date" range.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadMB << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := window.ParseDate(r.FormValue("start_date"))
	if err != nil {
		http.Error(w, "start_date: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := window.ParseDate(r.FormValue("end_date"))
	if err != nil {
		http.Error(w, "end_date: "+err.Error(), http.StatusBadRequest)
		return
	}

	job := uuid.NewString()
	in := filepath.Join(s.cfg.Server.UploadDir, job)
	if err := os.MkdirAll(in, 0755); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dataset, err := saveFormFile(r, "file", filepath.Join(in, "dataset"), func(client string) string {
		return "cdr" + cleanExt(client)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	division := s.cfg.Server.DefaultDivision
	if len(r.MultipartForm.File["spatial_division"]) > 0 {
		division, err = saveFormFile(r, "spatial_division", filepath.Join(in, "division"), filepath.Base)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if division == "" {
		http.Error(w, "spatial_division is required", http.StatusBadRequest)
		return
	}

	out := filepath.Join(s.cfg.Output.Dir, job)
	sink, err := store.Open(store.Options{
		Dir:        out,
		Formats:    s.cfg.Output.Formats,
		SQLitePath: filepath.Join(out, filepath.Base(s.cfg.Output.SQLitePath)),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sink.Close()

	res, err := profiler.New(s.eng, sink, s.log.With("job", job)).Run(r.Context(), profiler.Options{
		Dataset:        dataset,
		Division:       division,
		Start:          start,
		End:            end,
		WeeksPerWindow: s.cfg.Profile.WeeksPerWindow,
		DivisionPrefix: s.cfg.Output.DivisionPrefix,
	})
	if err != nil {
		s.log.Error("upload profiling failed", "job", job, "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	resp := uploadResponse{
		Job:       job,
		RunID:     res.RunID,
		Windows:   []windowJSON{},
		Malformed: res.Stats.Malformed,
		Unknown:   res.Stats.UnknownCell,
	}
	for _, wk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, wk.String())
	}
	for _, wr := range res.Windows {
		wj := windowJSON{Name: wr.Name, Users: wr.Users, Baskets: wr.Baskets}
		for _, loc := range wr.Locations {
			if rel, err := filepath.Rel(s.cfg.Output.Dir, loc); err == nil {
				wj.Downloads = append(wj.Downloads, "/download/"+filepath.ToSlash(rel))
			}
		}
		resp.Windows = append(resp.Windows, wj)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, window.ErrInvalidRange),
		errors.Is(err, spatial.ErrMalformedLine),
		errors.Is(err, spatial.ErrEmpty),
		errors.Is(err, os.ErrNotExist):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// saveFormFile stores the uploaded part field under dir, each field in its
// own directory, named by name from the client file name.
func saveFormFile(r *http.Request, field, dir string, name func(client string) string) (string, error) {
	fh, hdr, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	defer fh.Close()

	base := name(hdr.Filename)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = field
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return save(fh, filepath.Join(dir, base))
}

// cleanExt keeps the extension of a client file name when it is plain
// alphanumerics, so compressed uploads still open with the right reader.
func cleanExt(client string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(client)))
	if len(ext) < 2 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

func save(src multipart.File, dst string) (string, error) {
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return "", err
	}
	return dst, f.Close()
}

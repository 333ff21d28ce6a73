package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/history"
	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/render"
	"github.com/battlewithbytes/vagrantgen/internal/store"
	"github.com/battlewithbytes/vagrantgen/internal/validate"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in model.Project
	if !decode(w, r, &in) {
		return
	}
	p, err := s.store.CreateProject(in, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in model.Project
	if !decode(w, r, &in) {
		return
	}
	p, err := s.store.UpdateProject(r.PathValue("id"), in, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProject(id); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.history != nil {
		if err := s.history.DeleteProject(id); err != nil {
			s.log.Warn("dropping project history", zap.String("project", id), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeploymentStatus string `json:"deployment_status"`
	}
	if !decode(w, r, &body) {
		return
	}
	p, err := s.store.SetStatus(r.PathValue("id"), body.DeploymentStatus)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type validationResponse struct {
	validate.Result
	Suggestions            []string `json:"suggestions"`
	VMCount                int      `json:"vm_count"`
	NetworkInterfacesCount int      `json:"network_interfaces_count"`
}

func (s *Server) handleValidateProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	known, err := s.store.BoxCatalog()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{
		Result:                 validate.ForGeneration(p),
		Suggestions:            validate.Project(p, known).Suggestions,
		VMCount:                len(p.VMs),
		NetworkInterfacesCount: p.InterfaceCount(),
	})
}

// generate renders project id and records the result in the history.
func (s *Server) generate(r *http.Request, source string) (*model.Project, *render.Result, error) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		return nil, nil, err
	}
	g, err := s.store.Globals(p)
	if err != nil {
		return nil, nil, err
	}
	res := render.Generate(p, g)
	if s.history != nil {
		if err := s.history.Record(history.NewEntry(p, &res, source)); err != nil {
			s.log.Warn("recording generation", zap.String("project", p.ID), zap.Error(err))
		}
	}
	return p, &res, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	_, res, err := s.generate(r, history.SourceGenerate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, res, err := s.generate(r, history.SourceDownload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Content)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"history": []*history.Entry{}})
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	entries, err := s.history.List(p.ID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = store.FormatJSON
	}
	exp, err := s.store.Export(p, strings.ToLower(format))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// importFormat picks the format query parameter when set, otherwise yaml
// for a yaml Content-Type and json for anything else.
func importFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.ToLower(f)
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.Contains(mt, "yaml") {
		return store.FormatYAML
	}
	return store.FormatJSON
}

func (s *Server) handleImportProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.store.Import(data, importFormat(r), s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

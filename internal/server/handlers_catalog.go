package server

import (
	"io"
	"net/http"

	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/render"
)

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

// --- boxes ---

func (s *Server) handleListBoxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := s.store.ListBoxes()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.BoxSummary, 0, len(boxes))
	for i := range boxes {
		out = append(out, boxes[i].Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBox(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBox(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBox(w http.ResponseWriter, r *http.Request) {
	var in model.Box
	if !decode(w, r, &in) {
		return
	}
	b, err := s.store.CreateBox(in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBox(w http.ResponseWriter, r *http.Request) {
	var in model.Box
	if !decode(w, r, &in) {
		return
	}
	b, err := s.store.UpdateBox(r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBox(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBox(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- plugin catalog ---

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.store.ListPlugins()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.PluginSummary, 0, len(plugins))
	for i := range plugins {
		out = append(out, plugins[i].Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPlugin(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePlugin(w http.ResponseWriter, r *http.Request) {
	var in model.Plugin
	if !decode(w, r, &in) {
		return
	}
	p, err := s.store.CreatePlugin(in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	var in model.Plugin
	if !decode(w, r, &in) {
		return
	}
	p, err := s.store.UpdatePlugin(r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePlugin(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- global provisioners ---

func (s *Server) handleListProvisioners(w http.ResponseWriter, r *http.Request) {
	provs, err := s.store.ListProvisioners()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.ProvisionerSummary, 0, len(provs))
	for i := range provs {
		out = append(out, provs[i].Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProvisioner(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetProvisioner(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCreateProvisioner(w http.ResponseWriter, r *http.Request) {
	s.saveProvisioner(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateProvisioner(w http.ResponseWriter, r *http.Request) {
	s.saveProvisioner(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) saveProvisioner(w http.ResponseWriter, r *http.Request, id string, status int) {
	var in model.GlobalProvisioner
	if !decode(w, r, &in) {
		return
	}
	g, err := s.store.SaveProvisioner(id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, g)
}

func (s *Server) handleDeleteProvisioner(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProvisioner(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewProvisioner(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetProvisioner(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeText(w, render.ProvisionerSnippet(g))
}

// --- global triggers ---

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.store.ListTriggers()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.TriggerSummary, 0, len(triggers))
	for i := range triggers {
		out = append(out, triggers[i].Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTrigger(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	s.saveTrigger(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	s.saveTrigger(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) saveTrigger(w http.ResponseWriter, r *http.Request, id string, status int) {
	var in model.GlobalTrigger
	if !decode(w, r, &in) {
		return
	}
	t, err := s.store.SaveTrigger(id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, t)
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTrigger(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreviewTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTrigger(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeText(w, render.TriggerSnippet(t))
}

// --- static suggestions ---

func (s *Server) handleSuggestedBoxes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"boxes": model.SuggestedBoxes()})
}

func (s *Server) handleSuggestedPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"plugins": model.SuggestedPlugins()})
}

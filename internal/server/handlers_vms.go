package server

import (
	"net/http"

	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/store"
)

func (s *Server) handleAddVM(w http.ResponseWriter, r *http.Request) {
	var vm model.VirtualMachine
	if !decode(w, r, &vm) {
		return
	}
	created, err := s.store.AddVM(r.PathValue("id"), vm, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleBulkVMs(w http.ResponseWriter, r *http.Request) {
	var req store.BulkRequest
	if !decode(w, r, &req) {
		return
	}
	vms, err := s.store.AddVMs(r.PathValue("id"), req, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"vms": vms, "count": len(vms)})
}

func (s *Server) handleUpdateVM(w http.ResponseWriter, r *http.Request) {
	var vm model.VirtualMachine
	if !decode(w, r, &vm) {
		return
	}
	updated, err := s.store.UpdateVM(r.PathValue("id"), r.PathValue("vm"), vm, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteVM(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveVM(r.PathValue("id"), r.PathValue("vm")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddInterface(w http.ResponseWriter, r *http.Request) {
	var iface model.NetworkInterface
	if !decode(w, r, &iface) {
		return
	}
	created, err := s.store.AddInterface(r.PathValue("id"), r.PathValue("vm"), iface, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateInterface(w http.ResponseWriter, r *http.Request) {
	var iface model.NetworkInterface
	if !decode(w, r, &iface) {
		return
	}
	updated, err := s.store.UpdateInterface(r.PathValue("id"), r.PathValue("vm"), r.PathValue("iface"), iface, s.validationOptions(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteInterface(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveInterface(r.PathValue("id"), r.PathValue("vm"), r.PathValue("iface")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- project plugins ---

func (s *Server) handleListProjectPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.store.ProjectPlugins(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plugins)
}

func (s *Server) handleAddProjectPlugin(w http.ResponseWriter, r *http.Request) {
	var pc model.PluginConfiguration
	if !decode(w, r, &pc) {
		return
	}
	created, err := s.store.AddProjectPlugin(r.PathValue("id"), pc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProjectPlugin(w http.ResponseWriter, r *http.Request) {
	var pc model.PluginConfiguration
	if !decode(w, r, &pc) {
		return
	}
	updated, err := s.store.UpdateProjectPlugin(r.PathValue("id"), r.PathValue("name"), pc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProjectPlugin(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveProjectPlugin(r.PathValue("id"), r.PathValue("name")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- project provisioners and triggers ---

func (s *Server) handleListProjectProvisioners(w http.ResponseWriter, r *http.Request) {
	provs, err := s.store.ProjectProvisioners(r.PathValue("id"))
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

func (s *Server) handleAttachProvisioner(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.AttachProvisioner(r.PathValue("id"), r.PathValue("pid")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachProvisioner(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DetachProvisioner(r.PathValue("id"), r.PathValue("pid")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProjectTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.store.ProjectTriggers(r.PathValue("id"))
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

func (s *Server) handleAttachTrigger(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.AttachTrigger(r.PathValue("id"), r.PathValue("tid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Trigger added successfully",
		"project": p,
	})
}

func (s *Server) handleDetachTrigger(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DetachTrigger(r.PathValue("id"), r.PathValue("tid")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package store

import (
	"github.com/battlewithbytes/vagrantgen/internal/model"
)

// ProjectPlugins returns the project's global plugin configurations.
func (s *Store) ProjectPlugins(id string) ([]model.PluginConfiguration, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return nil, err
	}
	return p.GlobalPlugins, nil
}

// AddProjectPlugin configures a plugin for the whole project.
func (s *Store) AddProjectPlugin(id string, pc model.PluginConfiguration) (*model.PluginConfiguration, error) {
	pc.Normalize()
	pc.Scope = model.ScopeGlobal
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	_, err := s.mutateProject(id, "add plugin", func(p *model.Project) error {
		if p.PluginIndex(pc.Name) >= 0 {
			return conflict("Plugin '%s' already exists in project", pc.Name)
		}
		p.GlobalPlugins = append(p.GlobalPlugins, pc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// UpdateProjectPlugin replaces the configuration of plugin name.
func (s *Store) UpdateProjectPlugin(id, name string, pc model.PluginConfiguration) (*model.PluginConfiguration, error) {
	pc.Normalize()
	pc.Scope = model.ScopeGlobal
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	_, err := s.mutateProject(id, "modify plugin", func(p *model.Project) error {
		i := p.PluginIndex(name)
		if i < 0 {
			return notFound("Plugin '%s' not found in project", name)
		}
		if pc.Name != name && p.PluginIndex(pc.Name) >= 0 {
			return conflict("Plugin '%s' already exists in project", pc.Name)
		}
		p.GlobalPlugins[i] = pc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// RemoveProjectPlugin drops plugin name from the project.
func (s *Store) RemoveProjectPlugin(id, name string) error {
	_, err := s.mutateProject(id, "remove plugin", func(p *model.Project) error {
		i := p.PluginIndex(name)
		if i < 0 {
			return notFound("Plugin '%s' not found in project", name)
		}
		p.GlobalPlugins = append(p.GlobalPlugins[:i], p.GlobalPlugins[i+1:]...)
		return nil
	})
	return err
}

// ProjectProvisioners resolves the provisioners attached to project id.
// IDs whose provisioner has since been deleted are left out.
func (s *Store) ProjectProvisioners(id string) ([]model.GlobalProvisioner, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return nil, err
	}
	return s.ResolveProvisioners(p.GlobalProvisioners)
}

// AttachProvisioner adds provisioner pid to project id.
func (s *Store) AttachProvisioner(id, pid string) (*model.Project, error) {
	if _, err := s.GetProvisioner(pid); err != nil {
		return nil, err
	}
	return s.mutateProject(id, "add provisioner", func(p *model.Project) error {
		for _, existing := range p.GlobalProvisioners {
			if existing == pid {
				return conflict("Provisioner %s is already attached to this project", pid)
			}
		}
		p.GlobalProvisioners = append(p.GlobalProvisioners, pid)
		return nil
	})
}

// DetachProvisioner removes provisioner pid from project id.
func (s *Store) DetachProvisioner(id, pid string) (*model.Project, error) {
	return s.mutateProject(id, "remove provisioner", func(p *model.Project) error {
		out, ok := without(p.GlobalProvisioners, pid)
		if !ok {
			return notFound("Provisioner %s is not attached to this project", pid)
		}
		p.GlobalProvisioners = out
		return nil
	})
}

// ProjectTriggers resolves the triggers attached to project id.
func (s *Store) ProjectTriggers(id string) ([]model.GlobalTrigger, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return nil, err
	}
	return s.ResolveTriggers(p.GlobalTriggers)
}

// AttachTrigger adds trigger tid to project id.
func (s *Store) AttachTrigger(id, tid string) (*model.Project, error) {
	if _, err := s.GetTrigger(tid); err != nil {
		return nil, err
	}
	return s.mutateProject(id, "add trigger", func(p *model.Project) error {
		for _, existing := range p.GlobalTriggers {
			if existing == tid {
				return conflict("Trigger %s is already attached to this project", tid)
			}
		}
		p.GlobalTriggers = append(p.GlobalTriggers, tid)
		return nil
	})
}

// DetachTrigger removes trigger tid from project id.
func (s *Store) DetachTrigger(id, tid string) (*model.Project, error) {
	return s.mutateProject(id, "remove trigger", func(p *model.Project) error {
		out, ok := without(p.GlobalTriggers, tid)
		if !ok {
			return notFound("Trigger %s is not attached to this project", tid)
		}
		p.GlobalTriggers = out
		return nil
	})
}

func without(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}

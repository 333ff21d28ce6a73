package store

import (
	"encoding/json"
	"fmt"

	"github.com/battlewithbytes/vagrantgen/internal/ipalloc"
	"github.com/battlewithbytes/vagrantgen/internal/model"
)

// MaxBulkVMs caps a single bulk creation.
const MaxBulkVMs = 50

func vmNotFound(name string) error {
	return notFound("VM '%s' not found in project", name)
}

// AddVM appends vm to project id.
func (s *Store) AddVM(id string, vm model.VirtualMachine, opts model.ValidationOptions) (*model.VirtualMachine, error) {
	vm.Normalize()
	if err := vm.Validate(opts); err != nil {
		return nil, err
	}
	p, err := s.mutateProject(id, "add VM", func(p *model.Project) error {
		if p.VMIndex(vm.Name) >= 0 {
			return conflict("VM with name '%s' already exists in project", vm.Name)
		}
		p.VMs = append(p.VMs, vm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p.VMs[p.VMIndex(vm.Name)], nil
}

// UpdateVM replaces the VM called name. The VM may be renamed as long as the
// new name is free.
func (s *Store) UpdateVM(id, name string, vm model.VirtualMachine, opts model.ValidationOptions) (*model.VirtualMachine, error) {
	vm.Normalize()
	if err := vm.Validate(opts); err != nil {
		return nil, err
	}
	p, err := s.mutateProject(id, "modify VM", func(p *model.Project) error {
		i := p.VMIndex(name)
		if i < 0 {
			return vmNotFound(name)
		}
		if vm.Name != name && p.VMIndex(vm.Name) >= 0 {
			return conflict("VM with name '%s' already exists in project", vm.Name)
		}
		p.VMs[i] = vm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p.VMs[p.VMIndex(vm.Name)], nil
}

// RemoveVM deletes the VM called name.
func (s *Store) RemoveVM(id, name string) error {
	_, err := s.mutateProject(id, "delete VM", func(p *model.Project) error {
		i := p.VMIndex(name)
		if i < 0 {
			return vmNotFound(name)
		}
		p.VMs = append(p.VMs[:i], p.VMs[i+1:]...)
		return nil
	})
	return err
}

// BulkRequest describes count copies of a template VM.
type BulkRequest struct {
	BaseVM model.VirtualMachine `json:"base_vm"`
	Count  int                  `json:"count"`
	// BaseIP, when set, gives each copy a static private address counting
	// up from it, skipping addresses already used in the project.
	BaseIP string `json:"base_ip,omitempty"`
}

// AddVMs creates req.Count copies of req.BaseVM named <name>-1, <name>-2,
// and so on, skipping names already taken. All copies are added or none.
func (s *Store) AddVMs(id string, req BulkRequest, opts model.ValidationOptions) ([]model.VirtualMachine, error) {
	if req.Count < 1 || req.Count > MaxBulkVMs {
		return nil, &model.FieldError{Field: "count", Msg: fmt.Sprintf("must be between 1 and %d", MaxBulkVMs)}
	}
	base := req.BaseVM
	base.Normalize()
	if err := model.ValidateVMName(base.Name); err != nil {
		return nil, err
	}

	var created []model.VirtualMachine
	_, err := s.mutateProject(id, "add VM", func(p *model.Project) error {
		var addrs []string
		if req.BaseIP != "" {
			var err error
			addrs, err = ipalloc.Assign(req.BaseIP, req.Count, usedAddresses(p))
			if err != nil {
				return &model.FieldError{Field: "base_ip", Msg: err.Error()}
			}
		}

		n := 1
		for i := 0; i < req.Count; i++ {
			vm, err := cloneVM(base)
			if err != nil {
				return err
			}
			for p.VMIndex(fmt.Sprintf("%s-%d", base.Name, n)) >= 0 {
				n++
			}
			vm.Name = fmt.Sprintf("%s-%d", base.Name, n)
			n++
			if base.Hostname != "" {
				vm.Hostname = vm.Name
			}
			for j := range vm.NetworkInterfaces {
				vm.NetworkInterfaces[j].ID = model.NewID()
			}
			if addrs != nil {
				setStaticAddress(&vm, addrs[i])
			}
			if err := vm.Validate(opts); err != nil {
				return err
			}
			p.VMs = append(p.VMs, vm)
			created = append(created, vm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func usedAddresses(p *model.Project) []string {
	var used []string
	for _, vm := range p.VMs {
		for _, n := range vm.NetworkInterfaces {
			if n.IPAddress != "" {
				used = append(used, n.IPAddress)
			}
		}
	}
	return used
}

// setStaticAddress puts addr on the first private network interface,
// adding one when the VM has none.
func setStaticAddress(vm *model.VirtualMachine, addr string) {
	for i := range vm.NetworkInterfaces {
		n := &vm.NetworkInterfaces[i]
		if n.Type == model.NetworkPrivate {
			n.IPAssignment = model.IPStatic
			n.IPAddress = addr
			return
		}
	}
	n := model.NetworkInterface{Type: model.NetworkPrivate, IPAssignment: model.IPStatic, IPAddress: addr}
	n.Normalize()
	vm.NetworkInterfaces = append(vm.NetworkInterfaces, n)
}

func cloneVM(vm model.VirtualMachine) (model.VirtualMachine, error) {
	var out model.VirtualMachine
	data, err := json.Marshal(vm)
	if err != nil {
		return out, fmt.Errorf("copying VM: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("copying VM: %w", err)
	}
	out.Normalize()
	return out, nil
}

// AddInterface appends a network interface to a VM and returns it with its
// assigned ID.
func (s *Store) AddInterface(id, vmName string, iface model.NetworkInterface, opts model.ValidationOptions) (*model.NetworkInterface, error) {
	iface.ID = ""
	iface.Normalize()
	if err := iface.Validate(opts); err != nil {
		return nil, err
	}
	_, err := s.mutateProject(id, "add network interface", func(p *model.Project) error {
		i := p.VMIndex(vmName)
		if i < 0 {
			return vmNotFound(vmName)
		}
		return p.VMs[i].AddInterface(iface)
	})
	if err != nil {
		return nil, err
	}
	return &iface, nil
}

// UpdateInterface replaces interface ifaceID on a VM.
func (s *Store) UpdateInterface(id, vmName, ifaceID string, iface model.NetworkInterface, opts model.ValidationOptions) (*model.NetworkInterface, error) {
	iface.ID = ifaceID
	iface.Normalize()
	if err := iface.Validate(opts); err != nil {
		return nil, err
	}
	_, err := s.mutateProject(id, "modify network interface", func(p *model.Project) error {
		i := p.VMIndex(vmName)
		if i < 0 {
			return vmNotFound(vmName)
		}
		vm := &p.VMs[i]
		j := vm.InterfaceIndex(ifaceID)
		if j < 0 {
			return notFound("Network interface '%s' not found", ifaceID)
		}
		if iface.IsStatic() && iface.IPAddress != "" {
			for k, other := range vm.NetworkInterfaces {
				if k != j && other.IsStatic() && other.IPAddress == iface.IPAddress {
					return &model.FieldError{Field: "ip_address", Msg: fmt.Sprintf("IP address %s already assigned to this VM", iface.IPAddress)}
				}
			}
		}
		vm.NetworkInterfaces[j] = iface
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &iface, nil
}

// RemoveInterface deletes interface ifaceID from a VM.
func (s *Store) RemoveInterface(id, vmName, ifaceID string) error {
	_, err := s.mutateProject(id, "delete network interface", func(p *model.Project) error {
		i := p.VMIndex(vmName)
		if i < 0 {
			return vmNotFound(vmName)
		}
		vm := &p.VMs[i]
		j := vm.InterfaceIndex(ifaceID)
		if j < 0 {
			return notFound("Network interface '%s' not found", ifaceID)
		}
		vm.NetworkInterfaces = append(vm.NetworkInterfaces[:j], vm.NetworkInterfaces[j+1:]...)
		return nil
	})
	return err
}

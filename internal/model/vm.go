package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// VM resource limits.
const (
	DefaultMemory = 1024
	MinMemory     = 512
	MaxMemory     = 32768
	DefaultCPUs   = 1
	MinCPUs       = 1
	MaxCPUs       = 16
)

// Provisioner types.
const (
	ProvisionerShell   = "shell"
	ProvisionerAnsible = "ansible"
	ProvisionerPuppet  = "puppet"
	ProvisionerChef    = "chef"
)

var (
	vmNameRe   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
)

// VirtualMachine is one config.vm.define block.
type VirtualMachine struct {
	Name              string                `json:"name" yaml:"name"`
	Box               string                `json:"box" yaml:"box"`
	Hostname          string                `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Memory            int                   `json:"memory" yaml:"memory"`
	CPUs              int                   `json:"cpus" yaml:"cpus"`
	NetworkInterfaces []NetworkInterface    `json:"network_interfaces" yaml:"network_interfaces"`
	SyncedFolders     []SyncedFolder        `json:"synced_folders" yaml:"synced_folders"`
	Provisioners      []Provisioner         `json:"provisioners" yaml:"provisioners"`
	Plugins           []PluginConfiguration `json:"plugins" yaml:"plugins"`
}

// Normalize trims strings, applies defaults and normalizes children.
func (vm *VirtualMachine) Normalize() {
	vm.Name = strings.TrimSpace(vm.Name)
	vm.Box = strings.TrimSpace(vm.Box)
	vm.Hostname = strings.TrimSpace(vm.Hostname)
	if vm.Memory == 0 {
		vm.Memory = DefaultMemory
	}
	if vm.CPUs == 0 {
		vm.CPUs = DefaultCPUs
	}
	if vm.NetworkInterfaces == nil {
		vm.NetworkInterfaces = []NetworkInterface{}
	}
	if vm.SyncedFolders == nil {
		vm.SyncedFolders = []SyncedFolder{}
	}
	if vm.Provisioners == nil {
		vm.Provisioners = []Provisioner{}
	}
	if vm.Plugins == nil {
		vm.Plugins = []PluginConfiguration{}
	}
	for i := range vm.NetworkInterfaces {
		vm.NetworkInterfaces[i].Normalize()
	}
	for i := range vm.SyncedFolders {
		vm.SyncedFolders[i].Normalize()
	}
	for i := range vm.Provisioners {
		vm.Provisioners[i].Normalize()
	}
	for i := range vm.Plugins {
		vm.Plugins[i].Normalize()
	}
}

// EffectiveHostname returns the hostname, defaulting to the VM name.
func (vm *VirtualMachine) EffectiveHostname() string {
	if vm.Hostname != "" {
		return vm.Hostname
	}
	return vm.Name
}

// Validate checks the VM and every nested entry.
func (vm *VirtualMachine) Validate(opts ValidationOptions) error {
	if err := ValidateVMName(vm.Name); err != nil {
		return err
	}
	if vm.Box == "" {
		return invalid("box", "Box name cannot be empty")
	}
	if vm.Hostname != "" {
		if !hostnameRe.MatchString(vm.Hostname) {
			return invalid("hostname", "Hostname can only contain letters, numbers, dots, and hyphens")
		}
		if len(vm.Hostname) > 253 {
			return invalid("hostname", "Hostname too long (max 253 characters)")
		}
	}
	if vm.Memory < MinMemory || vm.Memory > MaxMemory {
		return invalid("memory", "must be between %d and %d MB", MinMemory, MaxMemory)
	}
	if vm.CPUs < MinCPUs || vm.CPUs > MaxCPUs {
		return invalid("cpus", "must be between %d and %d", MinCPUs, MaxCPUs)
	}
	for i := range vm.NetworkInterfaces {
		if err := vm.NetworkInterfaces[i].Validate(opts); err != nil {
			return prefixed(fmt.Sprintf("network_interfaces[%d]", i), err)
		}
	}
	for i := range vm.SyncedFolders {
		if err := vm.SyncedFolders[i].Validate(); err != nil {
			return prefixed(fmt.Sprintf("synced_folders[%d]", i), err)
		}
	}
	for i := range vm.Provisioners {
		if err := vm.Provisioners[i].Validate(); err != nil {
			return prefixed(fmt.Sprintf("provisioners[%d]", i), err)
		}
	}
	for i := range vm.Plugins {
		if err := vm.Plugins[i].Validate(); err != nil {
			return prefixed(fmt.Sprintf("plugins[%d]", i), err)
		}
	}
	return nil
}

// ValidateVMName applies the VM naming rules on their own, for bulk creation.
func ValidateVMName(name string) error {
	if name == "" {
		return invalid("name", "VM name cannot be empty")
	}
	if len(name) > 50 {
		return invalid("name", "VM name must be at most 50 characters")
	}
	if !vmNameRe.MatchString(name) {
		return invalid("name", "VM name can only contain letters, numbers, underscores, and hyphens")
	}
	if !unicode.IsLetter(rune(name[0])) {
		return invalid("name", "VM name must start with a letter")
	}
	return nil
}

// AddInterface appends iface, rejecting a static address already used on this VM.
func (vm *VirtualMachine) AddInterface(iface NetworkInterface) error {
	if iface.IsStatic() && iface.IPAddress != "" {
		for _, existing := range vm.NetworkInterfaces {
			if existing.IsStatic() && existing.IPAddress == iface.IPAddress {
				return invalid("ip_address", "IP address %s already assigned to this VM", iface.IPAddress)
			}
		}
	}
	vm.NetworkInterfaces = append(vm.NetworkInterfaces, iface)
	return nil
}

// InterfaceIndex returns the index of the interface with id, or -1.
func (vm *VirtualMachine) InterfaceIndex(id string) int {
	for i := range vm.NetworkInterfaces {
		if vm.NetworkInterfaces[i].ID == id {
			return i
		}
	}
	return -1
}

// SyncedFolder is one config.vm.synced_folder entry.
type SyncedFolder struct {
	HostPath  string                 `json:"host_path" yaml:"host_path"`
	GuestPath string                 `json:"guest_path" yaml:"guest_path"`
	Disabled  bool                   `json:"disabled" yaml:"disabled"`
	Options   map[string]interface{} `json:"options" yaml:"options"`
}

func (f *SyncedFolder) Normalize() {
	f.HostPath = strings.TrimSpace(f.HostPath)
	f.GuestPath = strings.TrimSpace(f.GuestPath)
	if f.Options == nil {
		f.Options = map[string]interface{}{}
	}
}

func (f *SyncedFolder) Validate() error {
	if f.HostPath == "" {
		return invalid("host_path", "Host path cannot be empty")
	}
	if f.GuestPath == "" {
		return invalid("guest_path", "Guest path cannot be empty")
	}
	if !strings.HasPrefix(f.GuestPath, "/") {
		return invalid("guest_path", "Guest path must be absolute (start with /)")
	}
	if strings.Contains(f.GuestPath, "..") {
		return invalid("guest_path", "Guest path cannot contain '..' references")
	}
	return validateKeys("options", f.Options)
}

// Provisioner is a per-VM config.vm.provision entry.
type Provisioner struct {
	Type       string                 `json:"type" yaml:"type"`
	ScriptPath string                 `json:"script_path,omitempty" yaml:"script_path,omitempty"`
	Inline     string                 `json:"inline,omitempty" yaml:"inline,omitempty"`
	Args       []string               `json:"args" yaml:"args"`
	Privileged *bool                  `json:"privileged" yaml:"privileged"`
	Config     map[string]interface{} `json:"config" yaml:"config"`
}

func (p *Provisioner) Normalize() {
	p.ScriptPath = strings.TrimSpace(p.ScriptPath)
	if strings.TrimSpace(p.Inline) == "" {
		p.Inline = ""
	}
	if p.Args == nil {
		p.Args = []string{}
	}
	if p.Privileged == nil {
		p.Privileged = Bool(true)
	}
	if p.Config == nil {
		p.Config = map[string]interface{}{}
	}
}

// IsPrivileged reports the privileged flag, true when unset.
func (p *Provisioner) IsPrivileged() bool {
	return p.Privileged == nil || *p.Privileged
}

func (p *Provisioner) Validate() error {
	switch p.Type {
	case ProvisionerShell:
		if p.ScriptPath == "" && p.Inline == "" {
			return invalid("script_path", "Shell provisioner requires either script_path or inline content")
		}
		if p.ScriptPath != "" && p.Inline != "" {
			return invalid("inline", "Shell provisioner cannot have both script_path and inline content")
		}
	case ProvisionerAnsible, ProvisionerPuppet, ProvisionerChef:
	default:
		return invalid("type", "must be one of shell, ansible, puppet, chef")
	}
	return validateKeys("config", p.Config)
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Package validate checks projects and rendered Vagrantfiles for problems
// that field validation alone cannot see: cross-VM conflicts, resource
// totals and structural mistakes in the output.
package validate

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/battlewithbytes/vagrantgen/internal/model"
)

// Resource thresholds.
const (
	lowMemory       = 1024
	vmHighMemory    = 8192
	vmHighCPUs      = 4
	totalHighMemory = 16384
	totalMaxMemory  = 32768
	totalHighCPUs   = 8
	totalMaxCPUs    = 16
	manyVMs         = 10
)

var commonPorts = map[int]string{
	22:   "SSH",
	80:   "HTTP",
	443:  "HTTPS",
	3306: "MySQL",
	5432: "PostgreSQL",
}

var genericNames = map[string]bool{
	"vm": true, "test": true, "box": true, "server": true, "machine": true,
}

// Result is the outcome of a generation check.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Report adds best-practice suggestions to a Result.
type Report struct {
	Result
	Suggestions []string `json:"suggestions"`
}

func newResult() Result {
	return Result{Errors: []string{}, Warnings: []string{}}
}

func newReport() Report {
	return Report{Result: newResult(), Suggestions: []string{}}
}

func (r *Result) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) suggestf(format string, args ...interface{}) {
	r.Suggestions = append(r.Suggestions, fmt.Sprintf(format, args...))
}

func (r *Result) finish() {
	r.IsValid = len(r.Errors) == 0
}

// ForGeneration reports whether p can be rendered into a working Vagrantfile.
func ForGeneration(p *model.Project) Result {
	res := newResult()
	if len(p.VMs) == 0 {
		res.errorf("Project must have at least one virtual machine")
		res.finish()
		return res
	}

	owners := map[string]string{}
	reported := map[string]bool{}
	for i := range p.VMs {
		vm := &p.VMs[i]
		checkVM(vm, &res)
		for _, n := range vm.NetworkInterfaces {
			if !n.IsStatic() || n.IPAddress == "" {
				continue
			}
			owner, seen := owners[n.IPAddress]
			switch {
			case !seen:
				owners[n.IPAddress] = vm.Name
			case owner != vm.Name && !reported[n.IPAddress]:
				reported[n.IPAddress] = true
				res.errorf("IP address conflict: %s is used by multiple VMs", n.IPAddress)
			}
		}
	}
	res.finish()
	return res
}

func checkVM(vm *model.VirtualMachine, res *Result) {
	prefix := fmt.Sprintf("VM '%s': ", vm.Name)

	if len(vm.NetworkInterfaces) == 0 {
		res.warnf("%sNo network interfaces configured", prefix)
	}
	ips := map[string]bool{}
	for _, n := range vm.NetworkInterfaces {
		if n.Type == model.NetworkForwardedPort && (n.GuestPort == 0 || n.HostPort == 0) {
			res.errorf("%sPort forwarding requires both guest and host ports", prefix)
		}
		if !n.IsStatic() {
			continue
		}
		if n.IPAddress == "" {
			res.errorf("%sStatic network interface missing IP address", prefix)
			continue
		}
		if ips[n.IPAddress] {
			res.errorf("%sDuplicate IP address %s", prefix, n.IPAddress)
		}
		ips[n.IPAddress] = true
	}

	guests := map[string]bool{}
	for _, f := range vm.SyncedFolders {
		if guests[f.GuestPath] {
			res.errorf("%sDuplicate guest path: %s", prefix, f.GuestPath)
		}
		guests[f.GuestPath] = true
	}

	if vm.Memory < lowMemory {
		res.warnf("%sLow memory allocation: %dMB", prefix, vm.Memory)
	}
	if len(vm.Provisioners) == 0 {
		res.warnf("%sNo provisioners configured", prefix)
	}
}

// Project runs the full advisory review of p. known, when non-nil, is the
// box catalog used to flag boxes that may not be available.
func Project(p *model.Project, known map[string]model.Box) Report {
	rep := newReport()

	if len(p.VMs) == 0 {
		rep.warnf("Project has no VMs defined")
	}
	if len(p.VMs) > manyVMs {
		rep.warnf("Project has many VMs - this may impact performance")
	}
	names := map[string]bool{}
	for _, vm := range p.VMs {
		if names[vm.Name] {
			rep.errorf("Duplicate VM name: %s", vm.Name)
		}
		names[vm.Name] = true
	}

	checkNetworking(p, &rep)
	checkResources(p, &rep)

	for _, vm := range p.VMs {
		if genericNames[strings.ToLower(vm.Name)] {
			rep.suggestf("VM '%s' has a generic name - consider a more descriptive name", vm.Name)
		}
	}
	if strings.TrimSpace(p.Description) == "" {
		rep.suggestf("Consider adding a project description")
	}
	if known != nil {
		for _, vm := range p.VMs {
			if _, ok := known[vm.Box]; !ok {
				rep.suggestf("VM '%s' uses box '%s' - ensure it's available", vm.Name, vm.Box)
			}
		}
	}
	for _, vm := range p.VMs {
		if vm.Hostname == "" {
			rep.suggestf("VM '%s' has no hostname set - it will default to VM name", vm.Name)
		}
	}

	rep.finish()
	return rep
}

func checkNetworking(p *model.Project, rep *Report) {
	var nets []netip.Prefix
	seen := map[netip.Prefix]bool{}
	for _, vm := range p.VMs {
		for _, n := range vm.NetworkInterfaces {
			switch n.Type {
			case model.NetworkForwardedPort:
				if n.GuestPort == 0 || n.HostPort == 0 {
					rep.errorf("Port forwarding requires both guest and host ports")
					continue
				}
				if n.GuestPort == n.HostPort {
					rep.suggestf("Guest and host ports are the same (%d)", n.HostPort)
				}
				if svc, ok := commonPorts[n.HostPort]; ok {
					rep.warnf("Host port %d is commonly used by %s", n.HostPort, svc)
				}
			case model.NetworkPublic:
				if n.Bridge == "" {
					rep.warnf("Public network without bridge specification may prompt for interface selection")
				}
			case model.NetworkPrivate:
				if n.IPAddress == "" {
					continue
				}
				pfx, ok := subnet(n.IPAddress, n.Netmask)
				if !ok || seen[pfx] {
					continue
				}
				seen[pfx] = true
				nets = append(nets, pfx)
			}
		}
	}
	for i, a := range nets {
		for _, b := range nets[i+1:] {
			if a.Overlaps(b) {
				rep.warnf("Overlapping networks detected: %s and %s", a, b)
			}
		}
	}
}

// subnet returns the network containing ip under mask, which may be dotted
// or "/N" form.
func subnet(ip, mask string) (netip.Prefix, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return netip.Prefix{}, false
	}
	bits, ok := maskBits(mask)
	if !ok {
		return netip.Prefix{}, false
	}
	pfx, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, false
	}
	return pfx, true
}

func maskBits(mask string) (int, bool) {
	if mask == "" {
		mask = model.DefaultNetmask
	}
	if strings.HasPrefix(mask, "/") {
		var n int
		if _, err := fmt.Sscanf(mask, "/%d", &n); err != nil || n < 0 || n > 32 {
			return 0, false
		}
		return n, true
	}
	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return 0, false
	}
	b := m.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	n := 0
	for v&(1<<31) != 0 {
		n++
		v <<= 1
	}
	if v != 0 {
		return 0, false
	}
	return n, true
}

func checkResources(p *model.Project, rep *Report) {
	totalMem, totalCPU := 0, 0
	for _, vm := range p.VMs {
		totalMem += vm.Memory
		totalCPU += vm.CPUs
	}
	if totalMem > totalHighMemory {
		rep.warnf("High total memory allocation: %dMB across all VMs", totalMem)
	}
	if totalMem > totalMaxMemory {
		rep.errorf("Excessive memory allocation: %dMB may cause host system issues", totalMem)
	}
	if totalCPU > totalHighCPUs {
		rep.warnf("High total CPU allocation: %d CPUs across all VMs", totalCPU)
	}
	if totalCPU > totalMaxCPUs {
		rep.errorf("Excessive CPU allocation: %d CPUs may cause host system issues", totalCPU)
	}
	for _, vm := range p.VMs {
		if vm.Memory > vmHighMemory {
			rep.warnf("VM '%s' has high memory allocation: %dMB", vm.Name, vm.Memory)
		}
		if vm.CPUs > vmHighCPUs {
			rep.warnf("VM '%s' has high CPU allocation: %d CPUs", vm.Name, vm.CPUs)
		}
	}
}

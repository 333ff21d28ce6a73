// Package render turns a project into Vagrantfile text.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/battlewithbytes/vagrantgen/internal/model"
)

// Filename is the name every rendered file is served and exported under.
const Filename = "Vagrantfile"

// inlineLimit is the longest trigger command kept on one line.
const inlineLimit = 80

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Globals holds the shared resources a project references by ID or name,
// already resolved by the caller. Missing entries are simply not rendered.
type Globals struct {
	Provisioners []model.GlobalProvisioner
	Triggers     []model.GlobalTrigger
	// Boxes maps box name to catalog entry for provider, version and URL.
	Boxes map[string]model.Box
}

// line is one output line. Raw lines are heredoc bodies and are never indented.
type line struct {
	text string
	raw  bool
}

type block []line

func (b *block) add(format string, args ...interface{}) {
	*b = append(*b, line{text: fmt.Sprintf(format, args...)})
}

func (b *block) addRaw(text string) {
	*b = append(*b, line{text: text, raw: true})
}

func (b *block) nest(child block, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, l := range child {
		if l.raw || l.text == "" {
			*b = append(*b, l)
			continue
		}
		*b = append(*b, line{text: pad + l.text})
	}
}

func (b block) String() string {
	var sb strings.Builder
	for _, l := range b {
		sb.WriteString(l.text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// joinBlocks concatenates non-empty blocks separated by one blank line.
func joinBlocks(blocks ...block) block {
	var out block
	for _, b := range blocks {
		if len(b) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, line{})
		}
		out = append(out, b...)
	}
	return out
}

// Vagrantfile renders p. Output order is fixed: header, required plugins,
// global plugins, global provisioners, global triggers, then one define
// block per VM in project order.
func Vagrantfile(p *model.Project, g Globals) string {
	var out block
	out.add("# -*- mode: ruby -*-")
	out.add("# vi: set ft=ruby :")
	out.add("#")
	out.add("# Generated by vagrantgen for project: %s", Comment(p.Name))
	if d := Comment(p.Description); d != "" {
		out.add("# %s", d)
	}
	out = append(out, line{})
	out.add(`Vagrant.configure("2") do |config|`)

	var sections []block
	sections = append(sections, requiredPlugins(p))
	for _, pc := range p.GlobalPlugins {
		sections = append(sections, pluginBlock("config", pc))
	}
	for i := range g.Provisioners {
		sections = append(sections, globalProvisionerBlock(&g.Provisioners[i]))
	}
	for i := range g.Triggers {
		sections = append(sections, triggerBlock(&g.Triggers[i]))
	}
	for i := range p.VMs {
		sections = append(sections, vmBlock(&p.VMs[i], g.Boxes))
	}
	out.nest(joinBlocks(sections...), 1)
	out.add("end")
	return out.String()
}

// requiredPlugins emits config.vagrant.plugins so `vagrant up` installs
// every plugin the project uses.
func requiredPlugins(p *model.Project) block {
	versions := map[string]string{}
	var order []string
	collect := func(pc model.PluginConfiguration) {
		if _, seen := versions[pc.Name]; !seen {
			order = append(order, pc.Name)
			versions[pc.Name] = pc.Version
		} else if versions[pc.Name] == "" {
			versions[pc.Name] = pc.Version
		}
	}
	for _, pc := range p.GlobalPlugins {
		collect(pc)
	}
	for _, vm := range p.VMs {
		for _, pc := range vm.Plugins {
			collect(pc)
		}
	}
	if len(order) == 0 {
		return nil
	}

	var b block
	b.add("config.vagrant.plugins = {")
	for i, name := range order {
		entry := "{}"
		if v := versions[name]; v != "" {
			entry = fmt.Sprintf(`{ "version" => %s }`, Quote(v))
		}
		sep := ","
		if i == len(order)-1 {
			sep = ""
		}
		b.add("  %s => %s%s", Quote(name), entry, sep)
	}
	b.add("}")
	return b
}

func pluginBlock(target string, pc model.PluginConfiguration) block {
	var b block
	header := "# Plugin " + pc.Name
	if pc.Version != "" {
		header += " (" + Comment(pc.Version) + ")"
	}
	ns := PluginNamespace(pc.Name)
	if len(pc.Config) == 0 || !identRe.MatchString(ns) {
		b.add("%s enabled", header)
		return b
	}
	b.add("%s", header)
	for _, k := range SortedKeys(pc.Config) {
		b.add("%s.%s.%s = %s", target, ns, k, Literal(pc.Config[k]))
	}
	return b
}

// ProvisionerSnippet renders a shared shell provisioner on its own, as it
// appears inside the configure block.
func ProvisionerSnippet(gp *model.GlobalProvisioner) string {
	return globalProvisionerBlock(gp).String()
}

// TriggerSnippet renders a shared trigger on its own.
func TriggerSnippet(t *model.GlobalTrigger) string {
	return triggerBlock(t).String()
}

func globalProvisionerBlock(gp *model.GlobalProvisioner) block {
	var b block
	b.add("# Shell provisioner: %s", Comment(gp.Name))
	if d := Comment(gp.Description); d != "" {
		b.add("# %s", d)
	}

	var args []string
	if gp.ShellConfig.Path != "" {
		args = append(args, `"shell"`, "path: "+Quote(gp.ShellConfig.Path))
	} else {
		v := gp.VariableName()
		body := EscapeHeredoc(strings.TrimRight(gp.ShellConfig.Script, "\n"))
		tag := HeredocTag(body, "SCRIPT")
		b.add("$%s = <<-%s", v, tag)
		for _, l := range strings.Split(body, "\n") {
			b.addRaw(l)
		}
		b.add("%s", tag)
		b = append(b, line{})
		args = append(args, `"shell"`, "inline: $"+v)
	}
	if !gp.IsPrivileged() {
		args = append(args, "privileged: false")
	}
	if gp.ShellConfig.Run != "" && gp.ShellConfig.Run != model.RunOnce {
		args = append(args, "run: "+Quote(gp.ShellConfig.Run))
	}
	b.add("config.vm.provision %s", strings.Join(args, ", "))
	return b
}

func triggerBlock(t *model.GlobalTrigger) block {
	c := t.TriggerConfig
	var b block
	b.add("# Trigger: %s", Comment(t.Name))
	if d := Comment(t.Description); d != "" {
		b.add("# %s", d)
	}
	b.add("config.trigger.%s :%s do |trigger|", c.Timing, c.Stage)

	var body block
	if c.Name != "" {
		body.add("trigger.name = %s", Quote(c.Name))
	}
	if c.Info != "" {
		body.add("trigger.info = %s", Quote(c.Info))
	}
	if c.Warn != "" {
		body.add("trigger.warn = %s", Quote(c.Warn))
	}
	switch {
	case c.Run != "":
		body = append(body, triggerCommand("run", c.Run)...)
	case c.RunRemoteInline != "":
		body = append(body, triggerCommand("run_remote", c.RunRemoteInline)...)
	}
	body.add("trigger.on_error = :%s", c.OnError)
	b.nest(body, 1)
	b.add("end")
	return b
}

func triggerCommand(attr, cmd string) block {
	var b block
	if !strings.Contains(cmd, "\n") && len(cmd) <= inlineLimit {
		b.add("trigger.%s = { inline: %s }", attr, Quote(cmd))
		return b
	}
	body := EscapeHeredoc(strings.TrimRight(cmd, "\n"))
	tag := HeredocTag(body, "SHELL")
	b.add("trigger.%s = { inline: <<-%s", attr, tag)
	for _, l := range strings.Split(body, "\n") {
		b.addRaw(l)
	}
	b.add("%s", tag)
	b.add("}")
	return b
}

func vmBlock(vm *model.VirtualMachine, boxes map[string]model.Box) block {
	v := BlockVar(vm.Name)
	box, known := boxes[vm.Box]

	var basics block
	basics.add("%s.vm.box = %s", v, Quote(vm.Box))
	if known && box.Version != "" {
		basics.add("%s.vm.box_version = %s", v, Quote(box.Version))
	}
	if known && box.URL != "" {
		basics.add("%s.vm.box_url = %s", v, Quote(box.URL))
	}
	basics.add("%s.vm.hostname = %s", v, Quote(vm.EffectiveHostname()))
	for i := range vm.NetworkInterfaces {
		if l := NetworkLine(v, &vm.NetworkInterfaces[i]); l != "" {
			basics.add("%s", l)
		}
	}
	for i := range vm.SyncedFolders {
		basics.add("%s", SyncedFolderLine(v, &vm.SyncedFolders[i]))
	}

	provider := model.DefaultProvider
	if known && box.Provider != "" {
		provider = box.Provider
	}

	var provs block
	for i := range vm.Provisioners {
		provs.add("%s", ProvisionerLine(v, &vm.Provisioners[i]))
	}

	var plugins block
	for i, pc := range vm.Plugins {
		if i > 0 {
			plugins = append(plugins, line{})
		}
		plugins = append(plugins, pluginBlock(v, pc)...)
	}

	var b block
	b.add("config.vm.define %s do |%s|", Quote(vm.Name), v)
	b.nest(joinBlocks(basics, providerBlock(v, provider, vm), provs, plugins), 1)
	b.add("end")
	return b
}

// providerBlock sets memory and CPUs using the provider's own attribute names.
func providerBlock(v, provider string, vm *model.VirtualMachine) block {
	var b block
	switch provider {
	case "virtualbox":
		b.add("%s.vm.provider \"virtualbox\" do |vb|", v)
		b.add("  vb.name = %s", Quote(vm.Name))
		b.add("  vb.memory = %d", vm.Memory)
		b.add("  vb.cpus = %d", vm.CPUs)
	case "vmware_desktop", "vmware_workstation", "vmware_fusion":
		b.add("%s.vm.provider %s do |vmw|", v, Quote(provider))
		b.add(`  vmw.vmx["memsize"] = "%d"`, vm.Memory)
		b.add(`  vmw.vmx["numvcpus"] = "%d"`, vm.CPUs)
	case "hyperv":
		b.add("%s.vm.provider \"hyperv\" do |hv|", v)
		b.add("  hv.memory = %d", vm.Memory)
		b.add("  hv.cpus = %d", vm.CPUs)
	case "docker":
		return nil
	default:
		b.add("%s.vm.provider %s do |lv|", v, Quote(provider))
		b.add("  lv.memory = %d", vm.Memory)
		b.add("  lv.cpus = %d", vm.CPUs)
	}
	b.add("end")
	return b
}

// NetworkLine renders one network interface for the machine variable v.
func NetworkLine(v string, n *model.NetworkInterface) string {
	switch n.Type {
	case model.NetworkForwardedPort:
		proto := n.Protocol
		if proto == "" {
			proto = model.ProtocolTCP
		}
		return fmt.Sprintf(`%s.vm.network "forwarded_port", guest: %d, host: %d, protocol: %s`, v, n.GuestPort, n.HostPort, Quote(proto))
	case model.NetworkPrivate:
		if n.IsStatic() {
			s := fmt.Sprintf(`%s.vm.network "private_network", ip: %s`, v, Quote(n.IPAddress))
			if n.Netmask != "" && n.Netmask != model.DefaultNetmask {
				s += ", netmask: " + Quote(n.Netmask)
			}
			return s
		}
		return fmt.Sprintf(`%s.vm.network "private_network", type: "dhcp"`, v)
	case model.NetworkPublic:
		s := fmt.Sprintf(`%s.vm.network "public_network"`, v)
		if n.IsStatic() && n.IPAddress != "" {
			s += ", ip: " + Quote(n.IPAddress)
		}
		if n.Bridge != "" {
			s += ", bridge: " + Quote(n.Bridge)
		}
		return s
	}
	return ""
}

// SyncedFolderLine renders one synced folder for the machine variable v.
func SyncedFolderLine(v string, f *model.SyncedFolder) string {
	s := fmt.Sprintf("%s.vm.synced_folder %s, %s", v, Quote(f.HostPath), Quote(f.GuestPath))
	if f.Disabled {
		return s + ", disabled: true"
	}
	for _, k := range SortedKeys(f.Options) {
		s += fmt.Sprintf(", %s: %s", k, Literal(f.Options[k]))
	}
	return s
}

// ProvisionerLine renders one per-VM provisioner for the machine variable v.
func ProvisionerLine(v string, p *model.Provisioner) string {
	parts := []string{Quote(p.Type)}
	if p.Type == model.ProvisionerShell {
		if p.ScriptPath != "" {
			parts = append(parts, "path: "+Quote(p.ScriptPath))
		} else {
			parts = append(parts, "inline: "+Quote(p.Inline))
		}
		if len(p.Args) > 0 {
			parts = append(parts, "args: "+Literal(p.Args))
		}
		parts = append(parts, fmt.Sprintf("privileged: %t", p.IsPrivileged()))
	} else {
		for _, k := range SortedKeys(p.Config) {
			parts = append(parts, fmt.Sprintf("%s: %s", k, Literal(p.Config[k])))
		}
	}
	return fmt.Sprintf("%s.vm.provision %s", v, strings.Join(parts, ", "))
}

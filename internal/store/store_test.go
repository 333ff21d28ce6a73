package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlewithbytes/vagrantgen/internal/events"
	"github.com/battlewithbytes/vagrantgen/internal/model"
)

var noOpts = model.ValidationOptions{}

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capture) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.Entity+":"+e.Type)
	}
	return out
}

func testStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func webVM(name string) model.VirtualMachine {
	return model.VirtualMachine{
		Name:   name,
		Box:    "generic/ubuntu2204",
		Memory: 2048,
		CPUs:   2,
		NetworkInterfaces: []model.NetworkInterface{
			{Type: model.NetworkPrivate, IPAssignment: model.IPStatic, IPAddress: "192.168.56.10"},
		},
	}
}

func createProject(t *testing.T, s *Store, name string) *model.Project {
	t.Helper()
	p, err := s.CreateProject(model.Project{Name: name, Description: "test"}, noOpts)
	require.NoError(t, err)
	return p
}

func TestOpenCreatesLayout(t *testing.T) {
	s := testStore(t)
	for _, d := range []string{projectsDir, boxesDir, provisionersDir, triggersDir, exportsDir, backupsDir} {
		fi, err := os.Stat(filepath.Join(s.Dir(), d))
		require.NoError(t, err, d)
		assert.True(t, fi.IsDir(), d)
	}
}

func TestCreateAndGetProject(t *testing.T) {
	pub := &capture{}
	s := testStore(t, WithPublisher(pub))

	p := createProject(t, s, "lab")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, model.StatusDraft, p.DeploymentStatus)
	assert.Equal(t, model.ProjectVersion, p.Version)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lab", got.Name)
	assert.Equal(t, []string{"project:created"}, pub.types())

	info, err := os.Stat(s.projectPath(p.ID))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestCreateProjectDuplicateName(t *testing.T) {
	s := testStore(t)
	createProject(t, s, "lab")
	_, err := s.CreateProject(model.Project{Name: "lab"}, noOpts)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Project with name 'lab' already exists", err.Error())
}

func TestCreateProjectInvalid(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateProject(model.Project{Name: "  "}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestGetProjectNotFound(t *testing.T) {
	s := testStore(t)
	for _, id := range []string{"missing", "../etc/passwd", ""} {
		_, err := s.GetProject(id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestFindProjectByName(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	byName, err := s.FindProject("lab")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	byID, err := s.FindProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lab", byID.Name)

	_, err = s.FindProject("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProjectsNewestFirstSkipsCorrupt(t *testing.T) {
	s := testStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := model.Now
	defer func() { model.Now = orig }()

	for i, name := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Hour)
		model.Now = func() time.Time { return at }
		createProject(t, s, name)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), projectsDir, "broken.json"), []byte("{not json"), 0640))

	list, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "first", list[2].Name)
}

func TestUpdateProject(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	other := createProject(t, s, "other")

	in := *p
	in.Name = "renamed"
	in.VMs = []model.VirtualMachine{webVM("web")}
	in.GlobalProvisioners = nil
	got, err := s.UpdateProject(p.ID, in, noOpts)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	require.Len(t, got.VMs, 1)
	assert.NotEmpty(t, got.VMs[0].NetworkInterfaces[0].ID)
	assert.Equal(t, []string{}, got.GlobalProvisioners)

	in.Name = other.Name
	_, err = s.UpdateProject(p.ID, in, noOpts)
	assert.ErrorIs(t, err, ErrConflict)

	in.Name = "dupes"
	in.VMs = []model.VirtualMachine{webVM("web"), webVM("web")}
	_, err = s.UpdateProject(p.ID, in, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestReadyProjectIsLocked(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	_, err := s.SetStatus(p.ID, model.StatusReady)
	require.NoError(t, err)

	_, err = s.AddVM(p.ID, webVM("web"), noOpts)
	require.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, "Cannot add VM - project is locked in ready status", err.Error())

	err = s.DeleteProject(p.ID)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "Cannot delete project 'lab'")

	in := *p
	in.Description = "edited"
	in.DeploymentStatus = model.StatusReady
	_, err = s.UpdateProject(p.ID, in, noOpts)
	assert.ErrorIs(t, err, ErrLocked)

	in.DeploymentStatus = model.StatusDraft
	got, err := s.UpdateProject(p.ID, in, noOpts)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, got.DeploymentStatus)
	assert.Equal(t, "edited", got.Description)
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	_, err := s.SetStatus(p.ID, "deployed")
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestDeleteProjectRemovesBackups(t *testing.T) {
	pub := &capture{}
	s := testStore(t, WithPublisher(pub))
	p := createProject(t, s, "lab")
	_, err := s.AddVM(p.ID, webVM("web"), noOpts)
	require.NoError(t, err)
	_, err = os.Stat(s.backupDir(p.ID))
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(p.ID))
	_, err = os.Stat(s.backupDir(p.ID))
	assert.True(t, os.IsNotExist(err))
	_, err = s.GetProject(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"project:created", "project:updated", "project:deleted"}, pub.types())

	assert.ErrorIs(t, s.DeleteProject(p.ID), ErrNotFound)
}

func TestVMLifecycle(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	vm, err := s.AddVM(p.ID, webVM("web"), noOpts)
	require.NoError(t, err)
	assert.Equal(t, "web", vm.Name)

	_, err = s.AddVM(p.ID, webVM("web"), noOpts)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "VM with name 'web' already exists in project", err.Error())

	bad := webVM("db")
	bad.Memory = 100
	_, err = s.AddVM(p.ID, bad, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = s.AddVM(p.ID, webVM("db"), noOpts)
	require.NoError(t, err)

	renamed := webVM("api")
	_, err = s.UpdateVM(p.ID, "web", renamed, noOpts)
	require.NoError(t, err)
	_, err = s.UpdateVM(p.ID, "api", webVM("db"), noOpts)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.UpdateVM(p.ID, "web", webVM("web"), noOpts)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RemoveVM(p.ID, "api"))
	assert.ErrorIs(t, s.RemoveVM(p.ID, "api"), ErrNotFound)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	require.Len(t, got.VMs, 1)
	assert.Equal(t, "db", got.VMs[0].Name)
}

func TestAddVMsBulk(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	existing := webVM("node-1")
	existing.NetworkInterfaces[0].IPAddress = "10.0.0.10"
	_, err := s.AddVM(p.ID, existing, noOpts)
	require.NoError(t, err)

	base := webVM("node")
	base.Hostname = "node"
	created, err := s.AddVMs(p.ID, BulkRequest{BaseVM: base, Count: 3, BaseIP: "10.0.0.10"}, noOpts)
	require.NoError(t, err)
	require.Len(t, created, 3)

	var names, ips []string
	ids := map[string]bool{}
	for _, vm := range created {
		names = append(names, vm.Name)
		assert.Equal(t, vm.Name, vm.Hostname)
		require.Len(t, vm.NetworkInterfaces, 1)
		ips = append(ips, vm.NetworkInterfaces[0].IPAddress)
		ids[vm.NetworkInterfaces[0].ID] = true
	}
	assert.Equal(t, []string{"node-2", "node-3", "node-4"}, names)
	assert.Equal(t, []string{"10.0.0.11", "10.0.0.12", "10.0.0.13"}, ips)
	assert.Len(t, ids, 3)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, got.VMs, 4)
}

func TestAddVMsBulkLimits(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	_, err := s.AddVMs(p.ID, BulkRequest{BaseVM: webVM("n"), Count: 0}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
	_, err = s.AddVMs(p.ID, BulkRequest{BaseVM: webVM("n"), Count: MaxBulkVMs + 1}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
	_, err = s.AddVMs(p.ID, BulkRequest{BaseVM: webVM("n"), Count: 2, BaseIP: "not-an-ip"}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.VMs)
}

func TestInterfaces(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	_, err := s.AddVM(p.ID, webVM("web"), noOpts)
	require.NoError(t, err)

	iface, err := s.AddInterface(p.ID, "web", model.NetworkInterface{
		Type: model.NetworkForwardedPort, GuestPort: 80, HostPort: 8080,
	}, noOpts)
	require.NoError(t, err)
	assert.NotEmpty(t, iface.ID)
	assert.Equal(t, model.ProtocolTCP, iface.Protocol)

	_, err = s.AddInterface(p.ID, "web", model.NetworkInterface{
		Type: model.NetworkPrivate, IPAssignment: model.IPStatic, IPAddress: "192.168.56.10",
	}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = s.AddInterface(p.ID, "web", model.NetworkInterface{
		Type: model.NetworkPrivate, IPAssignment: model.IPStatic, IPAddress: "8.8.8.8",
	}, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
	_, err = s.AddInterface(p.ID, "web", model.NetworkInterface{
		Type: model.NetworkPrivate, IPAssignment: model.IPStatic, IPAddress: "8.8.8.8",
	}, model.ValidationOptions{AllowPublicIPs: true})
	assert.NoError(t, err)

	updated, err := s.UpdateInterface(p.ID, "web", iface.ID, model.NetworkInterface{
		Type: model.NetworkForwardedPort, GuestPort: 443, HostPort: 8443,
	}, noOpts)
	require.NoError(t, err)
	assert.Equal(t, iface.ID, updated.ID)

	_, err = s.UpdateInterface(p.ID, "web", "nope", *updated, noOpts)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Network interface 'nope' not found", err.Error())

	require.NoError(t, s.RemoveInterface(p.ID, "web", iface.ID))
	assert.ErrorIs(t, s.RemoveInterface(p.ID, "web", iface.ID), ErrNotFound)
	assert.ErrorIs(t, s.RemoveInterface(p.ID, "db", iface.ID), ErrNotFound)
}

func TestProjectPlugins(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	pc, err := s.AddProjectPlugin(p.ID, model.PluginConfiguration{
		Name: "vagrant-hostmanager", Version: "~> 1.8", Config: map[string]interface{}{"enabled": true},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ScopeGlobal, pc.Scope)

	_, err = s.AddProjectPlugin(p.ID, model.PluginConfiguration{Name: "vagrant-hostmanager"})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Plugin 'vagrant-hostmanager' already exists in project", err.Error())

	_, err = s.UpdateProjectPlugin(p.ID, "vagrant-hostmanager", model.PluginConfiguration{Name: "vagrant-hostmanager", Version: "1.8.9"})
	require.NoError(t, err)
	_, err = s.UpdateProjectPlugin(p.ID, "vagrant-env", model.PluginConfiguration{Name: "vagrant-env"})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ProjectPlugins(p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1.8.9", list[0].Version)

	require.NoError(t, s.RemoveProjectPlugin(p.ID, "vagrant-hostmanager"))
	err = s.RemoveProjectPlugin(p.ID, "vagrant-hostmanager")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Plugin 'vagrant-hostmanager' not found in project", err.Error())
}

func testProvisioner(name string) model.GlobalProvisioner {
	return model.GlobalProvisioner{Name: name, ShellConfig: model.ShellConfig{Script: "apt-get update"}}
}

func testTrigger(name string) model.GlobalTrigger {
	return model.GlobalTrigger{Name: name, TriggerConfig: model.TriggerConfig{
		Timing: model.TimingBefore, Stage: "up", Info: "starting", Run: "echo hi",
	}}
}

func TestGlobalProvisioners(t *testing.T) {
	s := testStore(t)

	b, err := s.SaveProvisioner("", testProvisioner("bravo"))
	require.NoError(t, err)
	_, err = s.SaveProvisioner("", testProvisioner("Alpha"))
	require.NoError(t, err)
	assert.Equal(t, model.RunOnce, b.ShellConfig.Run)
	assert.True(t, b.IsPrivileged())

	_, err = s.SaveProvisioner("", testProvisioner("BRAVO"))
	assert.ErrorIs(t, err, ErrConflict)

	list, err := s.ListProvisioners()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)

	edit := testProvisioner("bravo")
	edit.ShellConfig.Run = model.RunAlways
	got, err := s.SaveProvisioner(b.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, b.CreatedAt, got.CreatedAt)
	assert.Equal(t, model.RunAlways, got.ShellConfig.Run)

	_, err = s.SaveProvisioner("missing", edit)
	assert.ErrorIs(t, err, ErrNotFound)

	bad := testProvisioner("empty")
	bad.ShellConfig.Script = "  "
	_, err = s.SaveProvisioner("", bad)
	assert.ErrorIs(t, err, model.ErrInvalid)

	require.NoError(t, s.DeleteProvisioner(b.ID))
	assert.ErrorIs(t, s.DeleteProvisioner(b.ID), ErrNotFound)
	_, err = s.GetProvisioner(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGlobalTriggers(t *testing.T) {
	s := testStore(t)
	tr, err := s.SaveTrigger("", testTrigger("announce"))
	require.NoError(t, err)
	assert.Equal(t, model.OnErrorContinue, tr.TriggerConfig.OnError)

	bad := testTrigger("both")
	bad.TriggerConfig.RunRemoteInline = "uptime"
	_, err = s.SaveTrigger("", bad)
	assert.ErrorIs(t, err, model.ErrInvalid)

	list, err := s.ListTriggers()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteTrigger(tr.ID))
	assert.ErrorIs(t, s.DeleteTrigger(tr.ID), ErrNotFound)
}

func TestAttachDetach(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	prov, err := s.SaveProvisioner("", testProvisioner("base"))
	require.NoError(t, err)
	trig, err := s.SaveTrigger("", testTrigger("announce"))
	require.NoError(t, err)

	_, err = s.AttachProvisioner(p.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.AttachProvisioner(p.ID, prov.ID)
	require.NoError(t, err)
	_, err = s.AttachProvisioner(p.ID, prov.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.AttachTrigger(p.ID, trig.ID)
	require.NoError(t, err)
	_, err = s.AttachTrigger(p.ID, trig.ID)
	assert.ErrorIs(t, err, ErrConflict)

	provs, err := s.ProjectProvisioners(p.ID)
	require.NoError(t, err)
	require.Len(t, provs, 1)
	assert.Equal(t, "base", provs[0].Name)

	g, err := s.Globals(mustGet(t, s, p.ID))
	require.NoError(t, err)
	assert.Len(t, g.Provisioners, 1)
	assert.Len(t, g.Triggers, 1)
	assert.Contains(t, g.Boxes, "generic/ubuntu2204")

	// A deleted global is skipped rather than failing the project.
	require.NoError(t, s.DeleteTrigger(trig.ID))
	trigs, err := s.ProjectTriggers(p.ID)
	require.NoError(t, err)
	assert.Empty(t, trigs)

	_, err = s.DetachProvisioner(p.ID, prov.ID)
	require.NoError(t, err)
	_, err = s.DetachProvisioner(p.ID, prov.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DetachTrigger(p.ID, trig.ID)
	require.NoError(t, err)
}

func mustGet(t *testing.T, s *Store, id string) *model.Project {
	t.Helper()
	p, err := s.GetProject(id)
	require.NoError(t, err)
	return p
}

func TestBoxesSeededAndCRUD(t *testing.T) {
	s := testStore(t)

	boxes, err := s.ListBoxes()
	require.NoError(t, err)
	assert.Len(t, boxes, len(model.DefaultBoxes))
	for _, b := range boxes {
		assert.Equal(t, model.DefaultProvider, b.Provider)
	}

	require.NoError(t, s.SeedBoxes())
	var doc boxesDoc
	require.NoError(t, readJSON(s.boxesPath(), &doc))
	assert.Len(t, doc.Boxes, len(model.DefaultBoxes))
	assert.False(t, doc.LastUpdated.IsZero())

	b, err := s.CreateBox(model.Box{Name: "acme/base", Provider: "virtualbox", Version: "1.0.0"})
	require.NoError(t, err)
	_, err = s.CreateBox(model.Box{Name: "acme/base"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.CreateBox(model.Box{Name: "has space"})
	assert.ErrorIs(t, err, model.ErrInvalid)

	got, err := s.GetBox(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "virtualbox", got.Provider)

	upd, err := s.UpdateBox(b.ID, model.Box{Name: "acme/base", Description: "updated"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProvider, upd.Provider)
	assert.Equal(t, b.CreatedAt, upd.CreatedAt)
	_, err = s.UpdateBox(b.ID, model.Box{Name: "generic/ubuntu2204"})
	assert.ErrorIs(t, err, ErrConflict)

	catalog, err := s.BoxCatalog()
	require.NoError(t, err)
	assert.Equal(t, "updated", catalog["acme/base"].Description)

	require.NoError(t, s.DeleteBox(b.ID))
	assert.ErrorIs(t, s.DeleteBox(b.ID), ErrNotFound)
}

func TestPluginCatalog(t *testing.T) {
	s := testStore(t)
	list, err := s.ListPlugins()
	require.NoError(t, err)
	assert.Empty(t, list)

	p, err := s.CreatePlugin(model.Plugin{Name: "vagrant-vbguest", DefaultVersion: "0.32.0"})
	require.NoError(t, err)
	_, err = s.CreatePlugin(model.Plugin{Name: "vagrant-vbguest"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.CreatePlugin(model.Plugin{Name: "bad", DefaultVersion: "latest"})
	assert.ErrorIs(t, err, model.ErrInvalid)

	upd, err := s.UpdatePlugin(p.ID, model.Plugin{Name: "vagrant-vbguest", IsDeprecated: true})
	require.NoError(t, err)
	assert.True(t, upd.IsDeprecated)

	var doc pluginsDoc
	require.NoError(t, readJSON(s.pluginsPath(), &doc))
	assert.Equal(t, pluginsDocVersion, doc.Version)
	require.Len(t, doc.Plugins, 1)

	require.NoError(t, s.DeletePlugin(p.ID))
	_, err = s.GetPlugin(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupsPrunedOnSave(t *testing.T) {
	s := testStore(t, WithBackupKeep(2))
	p := createProject(t, s, "lab")
	for i := 0; i < 5; i++ {
		_, err := s.AddVM(p.ID, webVM("vm"+string(rune('a'+i))), noOpts)
		require.NoError(t, err)
	}
	n, err := s.Backups(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCleanupBackups(t *testing.T) {
	s := testStore(t, WithBackupKeep(0))
	p := createProject(t, s, "lab")
	for i := 0; i < 4; i++ {
		_, err := s.AddVM(p.ID, webVM("vm"+string(rune('a'+i))), noOpts)
		require.NoError(t, err)
	}
	orphan := filepath.Join(s.Dir(), backupsDir, "gone")
	require.NoError(t, os.MkdirAll(orphan, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "20240101T000000.000000000Z.json"), []byte("{}"), 0640))

	removed, err := s.CleanupBackups(1)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	n, err := s.Backups(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	_, err = s.CleanupBackups(-1)
	assert.Error(t, err)
}

func TestExportAndImport(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "web lab")
	_, err := s.AddVM(p.ID, webVM("web"), noOpts)
	require.NoError(t, err)
	p = mustGet(t, s, p.ID)

	for _, format := range []string{FormatJSON, FormatYAML, FormatVagrantfile} {
		exp, err := s.Export(p, format)
		require.NoError(t, err, format)
		assert.True(t, strings.HasPrefix(filepath.Base(exp.Dir), "web_lab_"), exp.Dir)
		data, err := os.ReadFile(exp.File)
		require.NoError(t, err)
		assert.Contains(t, string(data), "web", format)
		if format == FormatVagrantfile {
			assert.Contains(t, string(data), `config.vm.define "web" do |web|`)
		}
	}

	_, err = s.Export(p, "toml")
	assert.ErrorIs(t, err, model.ErrInvalid)

	exp, err := s.Export(p, FormatYAML)
	require.NoError(t, err)
	data, err := os.ReadFile(exp.File)
	require.NoError(t, err)

	_, err = s.Import(data, FormatYAML, noOpts)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.DeleteProject(p.ID))
	imported, err := s.Import(data, FormatYAML, noOpts)
	require.NoError(t, err)
	assert.Equal(t, p.ID, imported.ID)
	assert.Equal(t, "web lab", imported.Name)
	require.Len(t, imported.VMs, 1)
	assert.Equal(t, p.VMs[0].NetworkInterfaces[0].IPAddress, imported.VMs[0].NetworkInterfaces[0].IPAddress)
}

func TestExportSameSecondKeepsBoth(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		exp, err := s.Export(p, FormatJSON)
		require.NoError(t, err)
		assert.False(t, seen[exp.Dir], "export dir reused: %s", exp.Dir)
		seen[exp.Dir] = true
	}
	for dir := range seen {
		_, err := os.Stat(filepath.Join(dir, "project.json"))
		assert.NoError(t, err)
	}

	dir, err := s.exportDir("lab_fixed")
	require.NoError(t, err)
	again, err := s.exportDir("lab_fixed")
	require.NoError(t, err)
	assert.Equal(t, dir+"-1", again)
}

func TestImportAssignsID(t *testing.T) {
	s := testStore(t)
	existing := createProject(t, s, "existing")

	doc := map[string]interface{}{"id": existing.ID, "name": "copy", "exported_at": "2024-01-01T00:00:00Z"}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	p, err := s.Import(data, FormatJSON, noOpts)
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, p.ID)
	assert.Equal(t, model.StatusDraft, p.DeploymentStatus)

	p2, err := s.Import([]byte(`{"name":"fresh"}`), FormatJSON, noOpts)
	require.NoError(t, err)
	assert.NotEmpty(t, p2.ID)

	_, err = s.Import([]byte(`{"name":`), FormatJSON, noOpts)
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestFormatForFile(t *testing.T) {
	for path, want := range map[string]string{"a.json": FormatJSON, "a.yaml": FormatYAML, "a.yml": FormatYAML} {
		got, err := FormatForFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatForFile("a.txt")
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestWorkspace(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	dir, err := s.Workspace(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.ExportsDir(), "lab"), dir)
	data, err := os.ReadFile(filepath.Join(dir, "Vagrantfile"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Vagrant.configure")
}

func TestStatsAndHealth(t *testing.T) {
	s := testStore(t)
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalProjects)
	assert.Nil(t, st.OldestProject)

	p := createProject(t, s, "lab")
	_, err = s.AddVM(p.ID, webVM("web"), noOpts)
	require.NoError(t, err)
	createProject(t, s, "other")
	_, err = s.SaveProvisioner("", testProvisioner("base"))
	require.NoError(t, err)

	st, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalProjects)
	assert.Equal(t, 1, st.TotalVMs)
	assert.Positive(t, st.TotalBytes)
	assert.NotNil(t, st.NewestProject)
	assert.Equal(t, 1, st.Provisioners)
	assert.Equal(t, len(model.DefaultBoxes), st.Boxes)

	h := s.Health()
	assert.True(t, h.Healthy)
	assert.Equal(t, "ok", h.Directories[projectsDir])

	require.NoError(t, os.RemoveAll(filepath.Join(s.Dir(), triggersDir)))
	h = s.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, "missing", h.Directories[triggersDir])
}

func TestWroteRecently(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")
	assert.True(t, s.WroteRecently(s.projectPath(p.ID)))
	assert.False(t, s.WroteRecently(filepath.Join(s.Dir(), "other.json")))
}

func TestConcurrentWrites(t *testing.T) {
	s := testStore(t)
	p := createProject(t, s, "lab")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vm := webVM("vm" + string(rune('a'+i)))
			vm.NetworkInterfaces = nil
			if _, err := s.AddVM(p.ID, vm, noOpts); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, mustGet(t, s, p.ID).VMs, 10)
}

func TestErrorKinds(t *testing.T) {
	err := conflict("name %s taken", "x")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "name x taken", err.Error())
}

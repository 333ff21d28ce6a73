package model

import (
	"strings"
	"time"
)

const DefaultProvider = "libvirt"

// Box is a named base-image reference shared by all projects.
type Box struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Provider    string    `json:"provider"`
	Version     string    `json:"version,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BoxSummary is the list view of a box.
type BoxSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

func (b *Box) Summary() BoxSummary {
	return BoxSummary{ID: b.ID, Name: b.Name, Description: b.Description, Provider: b.Provider}
}

func (b *Box) Normalize() {
	b.Name = strings.TrimSpace(b.Name)
	b.Description = strings.TrimSpace(b.Description)
	b.Provider = strings.TrimSpace(b.Provider)
	b.Version = strings.TrimSpace(b.Version)
	b.URL = strings.TrimSpace(b.URL)
	if b.Provider == "" {
		b.Provider = DefaultProvider
	}
}

func (b *Box) Validate() error {
	if b.Name == "" {
		return invalid("name", "Box name cannot be empty")
	}
	if strings.ContainsAny(b.Name, " \t\n\"") {
		return invalid("name", "Box name cannot contain whitespace or quotes")
	}
	if b.URL != "" && !strings.HasPrefix(b.URL, "http://") && !strings.HasPrefix(b.URL, "https://") && !strings.HasPrefix(b.URL, "file://") {
		return invalid("url", "Box URL must be http(s) or file")
	}
	return nil
}

// DefaultBoxes is the seed catalog written when no boxes file exists.
var DefaultBoxes = []Box{
	{Name: "generic/ubuntu2204", Description: "Ubuntu 22.04 LTS (Jammy Jellyfish)"},
	{Name: "generic/ubuntu2004", Description: "Ubuntu 20.04 LTS (Focal Fossa)"},
	{Name: "generic/centos7", Description: "CentOS 7"},
	{Name: "generic/debian12", Description: "Debian 12 (Bookworm)"},
	{Name: "generic/alpine318", Description: "Alpine Linux 3.18"},
	{Name: "generic/fedora38", Description: "Fedora 38"},
}

// Suggestion is a static name/description pair offered by the UI pickers.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider,omitempty"`
	Category    string `json:"category,omitempty"`
}

// SuggestedBoxes lists well-known boxes for the box picker.
func SuggestedBoxes() []Suggestion {
	out := make([]Suggestion, 0, len(DefaultBoxes))
	for _, b := range DefaultBoxes {
		out = append(out, Suggestion{Name: b.Name, Description: b.Description, Provider: DefaultProvider})
	}
	return out
}

// SuggestedPlugins lists commonly used Vagrant plugins for the plugin picker.
func SuggestedPlugins() []Suggestion {
	return []Suggestion{
		{Name: "vagrant-vbguest", Description: "Automatically installs VirtualBox Guest Additions", Category: "virtualbox"},
		{Name: "vagrant-hostmanager", Description: "Manages /etc/hosts entries across guests and host", Category: "networking"},
		{Name: "vagrant-cachier", Description: "Caches package downloads between machines", Category: "provisioning"},
		{Name: "vagrant-disksize", Description: "Resizes the primary disk of the box", Category: "storage"},
		{Name: "vagrant-env", Description: "Loads environment variables from a .env file", Category: "configuration"},
	}
}

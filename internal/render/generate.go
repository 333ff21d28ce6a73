package render

import (
	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/validate"
)

// Result is a rendered Vagrantfile together with the generation check.
type Result struct {
	Content    string          `json:"content"`
	Filename   string          `json:"filename"`
	Validation validate.Result `json:"validation"`
}

// Generate validates p and renders it. Content is produced even when the
// project has errors so the caller can still show a preview.
func Generate(p *model.Project, g Globals) Result {
	return Result{
		Content:    Vagrantfile(p, g),
		Filename:   Filename,
		Validation: validate.ForGeneration(p),
	}
}

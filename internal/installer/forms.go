package installer

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/battlewithbytes/vagrantgen/internal/config"
)

// BuildForm constructs the setup form.
func BuildForm(configPath string, answers *Answers) *huh.Form {
	return huh.NewForm(
		welcomeGroup(configPath),
		storageGroup(answers),
		serviceGroup(answers),
		authModeGroup(answers),
		passwordGroup(answers),
		accessGroup(answers),
		confirmGroup(answers),
	).WithTheme(huh.ThemeCatppuccin())
}

func welcomeGroup(configPath string) *huh.Group {
	return huh.NewGroup(
		huh.NewNote().
			Title("vagrantgen setup").
			Description("This writes " + configPath + ".\n\n" +
				"Projects, boxes, plugins and shared provisioners are stored as JSON\n" +
				"files under the data directory; generation history lives next to them."),
	)
}

func storageGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Data Directory").
			Description("Projects, catalogs, exports and backups are kept here.").
			Value(&answers.DataDir).
			Validate(validateRequired("data directory")),
		huh.NewInput().
			Title("Footer Pages Directory").
			Description("Markdown files shown as links in the UI footer.").
			Value(&answers.FooterDir).
			Validate(validateRequired("footer directory")),
		huh.NewInput().
			Title("Backups per Project").
			Description("Older project backups are pruned after each save. 0 keeps all.").
			Value(&answers.BackupKeepStr).
			Validate(ValidateNonNegativeInt),
	)
}

func serviceGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Bind Address").
			Description("IP address to listen on. Use 0.0.0.0 for all interfaces.").
			Value(&answers.BindAddress).
			Validate(validateRequired("bind address")),
		huh.NewInput().
			Title("Port").
			Value(&answers.PortStr).
			Validate(ValidatePort),
	)
}

func authModeGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("Authentication Mode").
			Description("Password mode protects every change; reads stay open.").
			Options(
				huh.NewOption("Password (recommended)", config.AuthModePassword),
				huh.NewOption("None", config.AuthModeNone),
			).
			Value(&answers.AuthMode),
	)
}

func passwordGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.Password).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("password must be at least 8 characters")
				}
				return nil
			}),
		huh.NewInput().
			Title("Confirm Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.PasswordConfirm).
			Validate(func(s string) error {
				if s != answers.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	).WithHideFunc(func() bool { return answers.AuthMode != config.AuthModePassword })
}

func accessGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Allowed Browser Origins").
			Description("Comma-separated. Same-host and localhost origins are always allowed.").
			Value(&answers.CORSOrigins).
			Validate(ValidateOrigins),
		huh.NewConfirm().
			Title("Enable the project terminal?").
			Description("Opens a shell in each project's export directory from the browser.\nOnly enable this on a trusted network.").
			Value(&answers.TerminalEnabled),
		huh.NewConfirm().
			Title("Allow public IPs on private networks?").
			Description("By default private_network addresses must be in RFC 1918 ranges.").
			Value(&answers.AllowPublicIPs),
	)
}

func confirmGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewConfirm().
			Title("Write configuration?").
			Affirmative("Yes").
			Negative("Cancel").
			Value(&answers.Confirmed),
	)
}

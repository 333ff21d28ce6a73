package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/history"
	"github.com/battlewithbytes/vagrantgen/internal/render"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
	"github.com/battlewithbytes/vagrantgen/internal/validate"
)

var renderOutput string

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write the Vagrantfile here instead of stdout")
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(validateCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <project-id|name>",
	Short: "Render a project's Vagrantfile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		p, err := env.store.FindProject(args[0])
		if err != nil {
			return err
		}
		g, err := env.store.Globals(p)
		if err != nil {
			return err
		}
		res := render.Generate(p, g)

		if hist, err := openHistory(env.cfg); err != nil {
			env.log.Warn("history unavailable", zap.Error(err))
		} else if hist != nil {
			defer hist.Close()
			if err := hist.Record(history.NewEntry(p, &res, history.SourceCLI)); err != nil {
				env.log.Warn("recording generation", zap.Error(err))
			}
		}

		if renderOutput == "" {
			fmt.Print(res.Content)
			printResult(os.Stderr, res.Validation)
			return nil
		}
		if err := os.WriteFile(renderOutput, []byte(res.Content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", renderOutput, err)
		}
		fmt.Println(ui.Green.Render("✓") + " Wrote " + ui.White.Render(renderOutput))
		printResult(os.Stdout, res.Validation)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <project-id|name>",
	Short: "Check a project for errors, warnings and suggestions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		p, err := env.store.FindProject(args[0])
		if err != nil {
			return err
		}
		known, err := env.store.BoxCatalog()
		if err != nil {
			return err
		}
		g, err := env.store.Globals(p)
		if err != nil {
			return err
		}

		res := render.Generate(p, g)
		syntax := validate.Syntax(res.Content)
		rep := validate.Project(p, known)
		rep.Errors = concat(res.Validation.Errors, rep.Errors, prefixAll("Vagrantfile: ", syntax.Errors))
		rep.Warnings = concat(res.Validation.Warnings, rep.Warnings, prefixAll("Vagrantfile: ", syntax.Warnings))
		rep.IsValid = len(rep.Errors) == 0

		fmt.Printf("%s %s (%d VMs, %d network interfaces)\n",
			ui.Label("Project:"), ui.White.Render(p.Name), len(p.VMs), p.InterfaceCount())
		printResult(os.Stdout, rep.Result)
		for _, s := range rep.Suggestions {
			fmt.Println("  " + ui.Cyan.Render("suggestion:") + " " + s)
		}
		if !rep.IsValid {
			return fmt.Errorf("project %q has %d error(s)", p.Name, len(rep.Errors))
		}
		return nil
	},
}

// printResult writes a coloured validation summary.
func printResult(w io.Writer, r validate.Result) {
	if r.IsValid {
		fmt.Fprintln(w, ui.Green.Render("✓ valid"))
	} else {
		fmt.Fprintln(w, ui.Red.Render("✗ invalid"))
	}
	for _, e := range r.Errors {
		fmt.Fprintln(w, "  "+ui.Red.Render("error:")+" "+e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintln(w, "  "+ui.Yellow.Render("warning:")+" "+warn)
	}
}

func concat(lists ...[]string) []string {
	out := []string{}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func prefixAll(prefix string, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}

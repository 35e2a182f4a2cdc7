// cmd/invox/commands.go
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/invox"
	"github.com/Huzefa-Jadliwala/invox-client/internal/models"
	"github.com/Huzefa-Jadliwala/invox-client/pkg/registry"
)

// errUsage marks a bad invocation; the flag set has already printed usage.
var errUsage = stderrors.New("invalid arguments")

type app struct {
	svc    *invox.Service
	cfg    *config.Config
	log    logger.Logger
	stdout io.Writer
	stderr io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ping":
		return a.ping(ctx, rest)
	case "template":
		return a.template(ctx, rest)
	case "departments":
		return a.departments(ctx, rest)
	case "forms":
		return a.forms(ctx, rest)
	case "process":
		return a.process(ctx, rest)
	case "submit":
		return a.submit(ctx, rest)
	case "submitted":
		return a.submitted(ctx, rest)
	case "methods":
		return a.methods()
	case "watch":
		return a.watch(ctx, rest)
	default:
		help(a.stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// finish prints err and maps it to an exit code.
func (a *app) finish(err error) int {
	if err == nil {
		return 0
	}
	if err == errUsage {
		return 2
	}
	fmt.Fprintf(a.stderr, "error: %s\n", err.Error())
	return 1
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	for _, name := range required {
		if fs.Lookup(name).Value.String() == "" {
			fmt.Fprintf(a.stderr, "Error: -%s is required.\n", name)
			fs.Usage()
			return errUsage
		}
	}
	return nil
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) ping(ctx context.Context, args []string) error {
	if err := a.parse(a.flags("ping"), args); err != nil {
		return err
	}
	reply, err := a.svc.Ping(ctx)
	if err != nil {
		return err
	}
	return a.print(reply)
}

func (a *app) template(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: invox template <get|create> [flags]")
		return errUsage
	}

	switch args[0] {
	case "get":
		fs := a.flags("template get")
		id := fs.String("id", "", "Template ID")
		if err := a.parse(fs, args[1:], "id"); err != nil {
			return err
		}
		tmpl, err := a.svc.GetFormTemplate(ctx, *id)
		if err != nil {
			return err
		}
		return a.print(tmpl)

	case "create":
		fs := a.flags("template create")
		name := fs.String("name", "", "Template name")
		department := fs.String("department", "", "Owning department")
		processingType := fs.String("type", "audio", "Processing type")
		structure := fs.String("structure", "{}", "Field structure as JSON, or @file")
		if err := a.parse(fs, args[1:], "name", "department"); err != nil {
			return err
		}

		req := models.CreateFormTemplateRequest{
			Name:           *name,
			Department:     *department,
			ProcessingType: *processingType,
		}
		if err := readJSONArg(*structure, &req.Structure); err != nil {
			return fmt.Errorf("structure: %w", err)
		}
		res, err := a.svc.CreateFormTemplate(ctx, req)
		if err != nil {
			return err
		}
		return a.print(res)

	default:
		fmt.Fprintf(a.stderr, "Unknown template command %q\n", args[0])
		return errUsage
	}
}

func (a *app) departments(ctx context.Context, args []string) error {
	if err := a.parse(a.flags("departments"), args); err != nil {
		return err
	}
	deps, err := a.svc.ListFormDepartments(ctx)
	if err != nil {
		return err
	}
	return a.print(deps)
}

func (a *app) forms(ctx context.Context, args []string) error {
	fs := a.flags("forms")
	department := fs.String("department", "", "Department name")
	if err := a.parse(fs, args, "department"); err != nil {
		return err
	}
	forms, err := a.svc.ListFormsByDepartment(ctx, *department)
	if err != nil {
		return err
	}
	return a.print(forms)
}

func (a *app) process(ctx context.Context, args []string) error {
	fs := a.flags("process")
	templateID := fs.String("template", "", "Template ID")
	audioPath := fs.String("audio", "", "Path to the recorded audio file")
	if err := a.parse(fs, args, "template", "audio"); err != nil {
		return err
	}

	f, err := os.Open(*audioPath)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := a.svc.ProcessFormFrom(ctx, *templateID, f)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := a.flags("submit")
	templateID := fs.String("template", "", "Template ID")
	answersArg := fs.String("answers", "", "Answers as a JSON object of strings, or @file")
	if err := a.parse(fs, args, "template", "answers"); err != nil {
		return err
	}

	var answers map[string]string
	if err := readJSONArg(*answersArg, &answers); err != nil {
		return fmt.Errorf("answers: %w", err)
	}
	res, err := a.svc.SubmitForm(ctx, *templateID, answers)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *app) submitted(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: invox submitted <list|get> [flags]")
		return errUsage
	}

	switch args[0] {
	case "list":
		if err := a.parse(a.flags("submitted list"), args[1:]); err != nil {
			return err
		}
		forms, err := a.svc.ListSubmittedForms(ctx)
		if err != nil {
			return err
		}
		return a.print(forms)

	case "get":
		fs := a.flags("submitted get")
		id := fs.String("id", "", "Submitted form ID")
		if err := a.parse(fs, args[1:], "id"); err != nil {
			return err
		}
		form, err := a.svc.GetSubmittedForm(ctx, *id)
		if err != nil {
			return err
		}
		return a.print(form)

	default:
		fmt.Fprintf(a.stderr, "Unknown submitted command %q\n", args[0])
		return errUsage
	}
}

type methodInfo struct {
	ID             string   `json:"id"`
	Method         string   `json:"method"`
	Params         []string `json:"params"`
	Description    string   `json:"description"`
	Validated      bool     `json:"validated"`
	FailureMessage string   `json:"failureMessage,omitempty"`
}

func (a *app) methods() error {
	ops := registry.Operations()
	out := make([]methodInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, methodInfo{
			ID:             op.ID,
			Method:         op.Method,
			Params:         op.Params,
			Description:    op.Description,
			Validated:      op.Validated(),
			FailureMessage: op.FailureMessage,
		})
	}
	return a.print(out)
}

// readJSONArg decodes arg as JSON, or the contents of the named file when
// arg starts with "@".
func readJSONArg(arg string, out interface{}) error {
	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return err
		}
		data = b
	}
	return json.Unmarshal(data, out)
}

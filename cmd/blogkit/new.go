package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/eringen/blogkit/scaffold"
)

// scaffoldData holds the template variables passed to every scaffold template.
type scaffoldData struct {
	ProjectName string
	ModuleName  string
	SiteName    string
	Host        string
}

// newScaffoldData derives the project variables from a module path such as
// "github.com/user/myblog".
func newScaffoldData(module, host string) (scaffoldData, error) {
	module = strings.Trim(strings.TrimSpace(module), "/")
	if module == "" {
		return scaffoldData{}, errors.New("empty project name")
	}
	project := path.Base(module)
	if host == "" {
		host = "blog.example.com"
	}
	return scaffoldData{
		ProjectName: project,
		ModuleName:  module,
		SiteName:    toTitle(project),
		Host:        host,
	}, nil
}

func runNew(module string) error {
	data, err := newScaffoldData(module, os.Getenv("PUBLICATION_HOST"))
	if err != nil {
		return err
	}
	dir := data.ProjectName
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("directory %q already exists", dir)
	}

	fmt.Printf("Creating %s (%s) for %s\n", dir, data.ModuleName, data.Host)
	if err := writeScaffold(dir, data); err != nil {
		return err
	}

	if _, err := exec.LookPath("go"); err != nil {
		fmt.Fprintf(os.Stderr, "go not found in PATH; run 'go mod tidy' in %s yourself\n", dir)
	} else {
		tidy := exec.Command("go", "mod", "tidy")
		tidy.Dir = dir
		tidy.Stdout = os.Stdout
		tidy.Stderr = os.Stderr
		if err := tidy.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "go mod tidy failed: %v\n", err)
		}
	}

	fmt.Printf(`
Next steps:
  cd %s
  cp .env.example .env    # set SESSION_SECRET
  go run .

Themes live in themes.yaml.
`, dir)
	return nil
}

// outputName maps a scaffold template to the file it produces.
func outputName(tmpl string) string {
	name := strings.TrimSuffix(tmpl, ".tmpl")
	if name == "dotenv" {
		return ".env.example"
	}
	return name
}

// writeScaffold renders every embedded template into dir.
func writeScaffold(dir string, data scaffoldData) error {
	tmpls, err := template.ParseFS(scaffold.Templates, "templates/*.tmpl")
	if err != nil {
		return fmt.Errorf("parse scaffold templates: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, t := range tmpls.Templates() {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return fmt.Errorf("render %s: %w", t.Name(), err)
		}
		out := filepath.Join(dir, outputName(t.Name()))
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Printf("  created %s\n", out)
	}
	return nil
}

// toTitle turns "my-blog" or "my_blog" into "My Blog".
func toTitle(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

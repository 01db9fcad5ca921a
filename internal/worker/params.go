package worker

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"dqmon/internal/queuedir"
)

//go:embed worker.par.tmpl
var defaultParamTemplate string

const (
	queueDriver   = "disk"
	interchange   = "serifxml"
	unlimitedDsts = 0
)

// Params are the values substituted into a worker parameter file.
type Params struct {
	WorkerDir    string
	QueueDriver  string
	SrcDir       string
	DstDir       string
	TimerFile    string
	QuitFile     string
	MaxDstFiles  int
	WorkerExt    string
	MasterParams string
	StartStage   string
	EndStage     string
	SourceFormat string
	OutputFormat string
}

func buildParams(root string, id int, opts Options, src, dst string, isFinal bool) Params {
	dir := Dir(root, id)
	p := Params{
		WorkerDir:    dir,
		QueueDriver:  queueDriver,
		SrcDir:       queuedir.Open(root, src).Dir,
		DstDir:       queuedir.Open(root, dst).Dir,
		TimerFile:    timesPath(dir),
		QuitFile:     quitPath(dir),
		MaxDstFiles:  opts.MaxDstFiles,
		WorkerExt:    queuedir.WorkerExt(id),
		MasterParams: opts.MasterParams,
		StartStage:   src + "+1",
		EndStage:     dst,
		SourceFormat: interchange,
		OutputFormat: interchange,
	}
	if isFinal {
		p.MaxDstFiles = unlimitedDsts
	}
	if src == opts.StartQueue && opts.SourceFormat != "" {
		p.SourceFormat = opts.SourceFormat
	}
	return p
}

func loadTemplate(path string) (*template.Template, error) {
	text := defaultParamTemplate
	name := "worker.par"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read parameter template: %w", err)
		}
		text = string(data)
		name = path
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse parameter template: %w", err)
	}
	return tmpl, nil
}

// RenderParams renders the worker parameter file for p using the template
// at templatePath, or the built-in template when templatePath is empty.
func RenderParams(templatePath string, p Params) ([]byte, error) {
	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render parameter file: %w", err)
	}
	return buf.Bytes(), nil
}

package main

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"dishlist-workers/pkg/registry"
)

// WorkerData is what the scaffold templates render from.
type WorkerData struct {
	Module       string
	PackageName  string
	TaskType     string
	DisplayName  string
	Description  string
	TimeoutExpr  string
	InputFields  string
	OutputFields string
	Sentinels    []Sentinel
}

type Sentinel struct {
	Name string
	Code string
}

func newWorkerData(module string, a *registry.Activity) (WorkerData, error) {
	d, err := a.TimeoutDuration()
	if err != nil {
		return WorkerData{}, fmt.Errorf("activity %s: %w", a.ID, err)
	}
	return WorkerData{
		Module:       module,
		PackageName:  packageName(a.ID),
		TaskType:     a.TaskType,
		DisplayName:  a.DisplayName,
		Description:  a.Description,
		TimeoutExpr:  timeoutExpr(d),
		InputFields:  structFields(a.InputSchema),
		OutputFields: structFields(a.OutputSchema),
		Sentinels:    sentinels(a.ErrorCodes),
	}, nil
}

func packageName(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

// workerDir maps a registry category onto the internal/workers layout.
func workerDir(root string, a *registry.Activity) string {
	dir := strings.ToLower(a.Category)
	switch dir {
	case "ingestion":
		dir = "restaurants"
	case "":
		dir = "misc"
	}
	return filepath.Join(root, dir, a.ID)
}

func timeoutExpr(d time.Duration) string {
	if d%time.Second != 0 {
		return fmt.Sprintf("%d * time.Millisecond", d.Milliseconds())
	}
	return fmt.Sprintf("%d * time.Second", int64(d/time.Second))
}

// sentinels always include INVALID_INPUT since the generated handler maps
// parse and validation failures onto it.
func sentinels(codes []string) []Sentinel {
	out := []Sentinel{{Name: "ErrInvalidInput", Code: "INVALID_INPUT"}}
	seen := map[string]bool{"INVALID_INPUT": true}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, Sentinel{Name: "Err" + camel(c), Code: c})
	}
	return out
}

func camel(code string) string {
	var b strings.Builder
	for _, part := range strings.Split(strings.ToLower(code), "_") {
		b.WriteString(upperFirst(part))
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fieldName(prop string) string {
	name := upperFirst(prop)
	switch {
	case strings.HasSuffix(name, "Ids"):
		return strings.TrimSuffix(name, "Ids") + "IDs"
	case strings.HasSuffix(name, "Id"):
		return strings.TrimSuffix(name, "Id") + "ID"
	}
	return name
}

func goType(prop map[string]interface{}) string {
	switch prop["type"] {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		if items, ok := prop["items"].(map[string]interface{}); ok {
			return "[]" + goType(items)
		}
		return "[]interface{}"
	}
	return "interface{}"
}

// structFields renders schema properties as struct fields, sorted by name.
// Properties outside "required" get omitempty.
func structFields(schema map[string]interface{}) string {
	props, _ := schema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return ""
	}

	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		tag := name
		if !required[name] {
			tag += ",omitempty"
		}
		lines = append(lines, fmt.Sprintf("\t%s %s `json:\"%s\"`", fieldName(name), goType(details), tag))
	}
	return strings.Join(lines, "\n")
}

var scaffold = map[string]string{
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
}

// Render executes every scaffold template and gofmts the result.
func Render(data WorkerData) (map[string][]byte, error) {
	files := make(map[string][]byte, len(scaffold))
	for name, text := range scaffold {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		files[name] = src
	}
	return files, nil
}

const configTemplate = `package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: {{ .TimeoutExpr }},
	}
}
`

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
{{ .InputFields }}
}

type Output struct {
{{ .OutputFields }}
}
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "{{ .Module }}/internal/common/errors"
	"{{ .Module }}/internal/common/logger"
)

// TaskType {{ .DisplayName }}: {{ .Description }}
const TaskType = "{{ .TaskType }}"

var (
{{- range .Sentinels }}
	{{ .Name }} = errors.New("{{ .Code }}")
{{- end }}
)

type Handler struct {
	config       *Config
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, apperrors.NewInvalidInputError("parse input", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, toStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	// TODO: implement {{ .TaskType }}
	return &Output{}, nil
}

func toStandardError(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return apperrors.NewInvalidInputError(err.Error(), err)
	}
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"{{ .Module }}/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(createTestConfig(), createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.NotNil(t, out)
}
`

package views

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates
var embedded embed.FS

const extension = ".html"

// Engine renders pongo2 templates and satisfies fiber.Views.
type Engine struct {
	files fs.FS
	set   *pongo2.TemplateSet
}

var _ fiber.Views = (*Engine)(nil)

// New returns an engine over the embedded page templates.
func New() *Engine {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Sprintf("views: embedded templates: %v", err))
	}
	return NewFromFS(sub)
}

// NewFromFS returns an engine loading templates from files.
func NewFromFS(files fs.FS) *Engine {
	return &Engine{
		files: files,
		set:   pongo2.NewSet("esign", pongo2.NewFSLoader(files)),
	}
}

// Load compiles every template once so syntax errors surface at startup.
func (e *Engine) Load() error {
	return fs.WalkDir(e.files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, extension) {
			return err
		}
		if _, err := e.set.FromCache(path); err != nil {
			return fmt.Errorf("views: compile %s: %w", path, err)
		}
		return nil
	})
}

// Render executes the named template with bind. When a layout is given the
// rendered page is exposed to it as "embed".
func (e *Engine) Render(w io.Writer, name string, bind interface{}, layouts ...string) error {
	ctx, err := toContext(bind)
	if err != nil {
		return err
	}

	page, err := e.execute(name, ctx)
	if err != nil {
		return err
	}
	if len(layouts) == 0 || layouts[0] == "" {
		_, err = io.WriteString(w, page)
		return err
	}

	ctx["embed"] = pongo2.AsSafeValue(page)
	out, err := e.execute(layouts[0], ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (e *Engine) execute(name string, ctx pongo2.Context) (string, error) {
	if !strings.HasSuffix(name, extension) {
		name += extension
	}
	tpl, err := e.set.FromCache(name)
	if err != nil {
		return "", fmt.Errorf("views: load %s: %w", name, err)
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("views: execute %s: %w", name, err)
	}
	return out, nil
}

func toContext(bind interface{}) (pongo2.Context, error) {
	ctx := pongo2.Context{}
	var src map[string]interface{}
	switch b := bind.(type) {
	case nil:
		return ctx, nil
	case fiber.Map:
		src = b
	case pongo2.Context:
		src = b
	case map[string]interface{}:
		src = b
	default:
		return nil, fmt.Errorf("views: unsupported bind type %T", bind)
	}
	for k, v := range src {
		ctx[k] = v
	}
	return ctx, nil
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// SanitizeHTML reduces s to user-generated-content safe markup so it can be
// rendered with the safe filter.
func SanitizeHTML(s string) string {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
	})
	return policy.Sanitize(s)
}

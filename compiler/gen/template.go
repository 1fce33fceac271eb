package gen

import (
	"text/template"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/compiler/naming"
)

// graphData is the data of the graph-level templates.
type graphData struct {
	Header  string
	Package string
	Models  []modelData
}

type modelData struct {
	Name  string
	Route string
}

func newGraphData(g *load.Graph, cfg *Config) *graphData {
	d := &graphData{Header: cfg.Header, Package: cfg.Name()}
	for _, name := range names(g) {
		s, _ := g.Spec(name)
		d.Models = append(d.Models, modelData{Name: s.Name, Route: naming.RouteName(s.Table)})
	}
	return d
}

// GraphTemplate renders a file from the whole graph.
type GraphTemplate struct {
	Name   string
	Format string
	*template.Template
}

// GraphTemplates are the graph-level templates, rendered once per run.
var GraphTemplates = []*GraphTemplate{
	{Name: "registry", Format: "registry.go", Template: template.Must(template.New("registry").Parse(registryTmpl))},
	{Name: "routes", Format: "routes.go", Template: template.Must(template.New("routes").Parse(routesTmpl))},
}

const registryTmpl = `{{ with .Header }}// {{ . }}
{{ end }}
package {{ .Package }}

import "github.com/syssam/ormapi"

// Registry returns a registry holding every model of the package.
func Registry() *ormapi.Registry {
	r := ormapi.NewRegistry()
	r.MustRegister(
	{{- range .Models }}
		{{ .Name }}{},
	{{- end }}
	)
	return r
}
`

const routesTmpl = `{{ with .Header }}// {{ . }}
{{ end }}
package {{ .Package }}

import (
	"net/http"

	"github.com/syssam/ormapi/api"
)

// Routes mounts the resources of every model under prefix.
func Routes(mux *http.ServeMux, h *api.Handler, prefix string) {
{{- range .Models }}
	h.Mount(mux, prefix+"/{{ .Route }}", {{ .Name }}{})
{{- end }}
}
`

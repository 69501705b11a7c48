package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/apibuilder/pkg/capture"
	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/types"
)

// OpenAPI renders the tree as an OpenAPI 3.0.3 document, YAML by default or
// JSON when Options.Format is "json".
type OpenAPI struct{}

func (OpenAPI) Generate(root *doc.Group, opts doc.Options) (string, error) {
	spec, err := BuildOpenAPI(root, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", err
	}
	if strings.EqualFold(opts.Format, "json") {
		return string(data) + "\n", nil
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// BuildOpenAPI converts the tree into an openapi3 document. Every group below
// the root becomes a tag; actions become operations tagged with their group.
func BuildOpenAPI(root *doc.Group, opts doc.Options) (*openapi3.T, error) {
	d := root.Docs()
	title := opts.Title
	if title == "" {
		title = d.Title
	}
	if title == "" {
		title = "API"
	}
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       title,
			Description: strings.Join(d.Descriptions, "\n\n"),
			Version:     version,
		},
		Paths: openapi3.NewPaths(),
	}
	if d.Host != "" {
		schemes := d.Schemes
		if len(schemes) == 0 {
			schemes = []string{"https"}
		}
		for _, s := range schemes {
			u := s + "://" + d.Host
			if d.BasePath != "" {
				u += "/" + d.BasePath
			}
			spec.Servers = append(spec.Servers, &openapi3.Server{URL: u})
		}
	}

	b := &openapiBuilder{spec: spec, opts: opts}
	var err error
	root.Walk(func(g *doc.Group) {
		if err != nil {
			return
		}
		tag := ""
		if g.Depth() > 0 {
			tag = tagName(g)
			gd := g.Docs()
			spec.Tags = append(spec.Tags, &openapi3.Tag{Name: tag, Description: strings.Join(gd.Descriptions, "\n\n")})
		}
		for _, a := range g.Actions() {
			if err = b.action(a, tag); err != nil {
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ValidateOpenAPI loads an OpenAPI document (YAML or JSON) and validates it.
// Example values are not checked against their schemas.
func ValidateOpenAPI(ctx context.Context, data []byte) error {
	loaded, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return fmt.Errorf("load openapi: %w", err)
	}
	return loaded.Validate(ctx, openapi3.DisableExamplesValidation())
}

type openapiBuilder struct {
	spec *openapi3.T
	opts doc.Options
}

func tagName(g *doc.Group) string {
	var parts []string
	for n := g; n != nil && n.Depth() > 0; n = n.Parent() {
		parts = append([]string{n.Docs().Title}, parts...)
	}
	return strings.Join(parts, " / ")
}

func (b *openapiBuilder) action(a *doc.Action, tag string) error {
	route, err := a.Route()
	if err != nil {
		return err
	}
	ad := a.Docs()
	op := &openapi3.Operation{
		Summary:     ad.Title,
		Description: strings.Join(ad.Descriptions, "\n\n"),
		OperationID: operationID(route),
	}
	if tag != "" {
		op.Tags = []string{tag}
	}

	for _, name := range route.PathParams {
		op.Parameters = append(op.Parameters, parameter(name, openapi3.ParameterInPath, a.ParamSample(name)))
	}
	for _, name := range route.QueryParams {
		op.Parameters = append(op.Parameters, parameter(name, openapi3.ParameterInQuery, a.QuerySample(name)))
	}

	ct := b.opts.ContentType
	if ct == "" {
		ct = "application/json"
	}
	op.RequestBody = requestBody(a.Examples(), ct)
	op.Responses = responses(a.Examples(), ct)

	item := b.spec.Paths.Value(route.Path)
	if item == nil {
		item = &openapi3.PathItem{}
	}
	if existing := item.GetOperation(route.Method); existing != nil {
		if b.opts.Logger != nil {
			b.opts.Logger.Warn("duplicate operation skipped", "method", route.Method, "path", route.Path, "title", ad.Title)
		}
		return nil
	}
	switch route.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodConnect:
		item.SetOperation(route.Method, op)
	default:
		if b.opts.Logger != nil {
			b.opts.Logger.Warn("method has no openapi operation", "method", route.Method, "path", route.Path)
		}
		return nil
	}
	b.spec.Paths.Set(route.Path, item)
	return nil
}

func operationID(r doc.Route) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(r.Method))
	for _, seg := range strings.Split(r.Path, "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return sb.String()
}

func parameter(name, in string, sample *capture.Value) *openapi3.ParameterRef {
	p := &openapi3.Parameter{
		Name:     name,
		In:       in,
		Required: in == openapi3.ParameterInPath,
		Schema:   &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
	}
	if sample != nil {
		p.Description = sample.Description()
		p.Schema = &openapi3.SchemaRef{Value: Schema(sample)}
		if !sample.IsEmpty() {
			p.Example = sample.Plain()
		}
	}
	return &openapi3.ParameterRef{Value: p}
}

func requestBody(examples []*types.Example, ct string) *openapi3.RequestBodyRef {
	var (
		media *openapi3.MediaType
		rb    *openapi3.RequestBody
	)
	for i, ex := range examples {
		if ex.RequestBody == nil {
			continue
		}
		if media == nil {
			media = &openapi3.MediaType{
				Schema:   &openapi3.SchemaRef{Value: Schema(ex.RequestBody)},
				Examples: openapi3.Examples{},
			}
			rb = &openapi3.RequestBody{
				Description: ex.RequestBody.Description(),
				Required:    true,
				Content:     openapi3.Content{ct: media},
			}
		}
		media.Examples[exampleName(i)] = &openapi3.ExampleRef{Value: openapi3.NewExample(ex.RequestBody.Plain())}
	}
	if rb == nil {
		return nil
	}
	return &openapi3.RequestBodyRef{Value: rb}
}

func responses(examples []*types.Example, ct string) *openapi3.Responses {
	byStatus := map[int]*openapi3.Response{}
	var order []int
	for i, ex := range examples {
		if ex.ResponseBody == nil && ex.Status == 0 {
			continue
		}
		status := ex.Status
		if status == 0 {
			status = http.StatusOK
		}
		resp, ok := byStatus[status]
		if !ok {
			desc := http.StatusText(status)
			if ex.ResponseBody != nil && ex.ResponseBody.Description() != "" {
				desc = ex.ResponseBody.Description()
			}
			if desc == "" {
				desc = "Status " + strconv.Itoa(status)
			}
			resp = &openapi3.Response{Description: &desc}
			byStatus[status] = resp
			order = append(order, status)
		}
		if ex.ResponseBody == nil {
			continue
		}
		if resp.Content == nil {
			resp.Content = openapi3.Content{ct: &openapi3.MediaType{
				Schema:   &openapi3.SchemaRef{Value: Schema(ex.ResponseBody)},
				Examples: openapi3.Examples{},
			}}
		}
		resp.Content[ct].Examples[exampleName(i)] = &openapi3.ExampleRef{Value: openapi3.NewExample(ex.ResponseBody.Plain())}
	}
	if len(order) == 0 {
		desc := "Default response"
		return openapi3.NewResponses(openapi3.WithName("default", &openapi3.Response{Description: &desc}))
	}
	opts := make([]openapi3.NewResponsesOption, 0, len(order))
	for _, status := range order {
		opts = append(opts, openapi3.WithStatus(status, &openapi3.ResponseRef{Value: byStatus[status]}))
	}
	return openapi3.NewResponses(opts...)
}

func exampleName(i int) string {
	return "example" + strconv.Itoa(i+1)
}

// Schema infers an OpenAPI schema from a captured value. Descriptions become
// schema descriptions; lists take the schema of their first element.
func Schema(v *capture.Value) *openapi3.Schema {
	var s *openapi3.Schema
	switch v.Kind() {
	case capture.Mapping:
		s = openapi3.NewObjectSchema()
		if s.Properties == nil {
			s.Properties = openapi3.Schemas{}
		}
		for _, k := range v.Keys() {
			f, _ := v.Get(k)
			s.Properties[k] = &openapi3.SchemaRef{Value: Schema(f)}
		}
	case capture.List:
		s = openapi3.NewArraySchema()
		items := openapi3.NewSchema()
		if v.Len() > 0 {
			items = Schema(v.Items()[0])
		}
		s.Items = &openapi3.SchemaRef{Value: items}
	default:
		switch v.JSONType() {
		case "integer":
			s = openapi3.NewIntegerSchema()
		case "number":
			s = openapi3.NewFloat64Schema()
		case "boolean":
			s = openapi3.NewBoolSchema()
		case "string":
			s = openapi3.NewStringSchema()
		case "null":
			s = &openapi3.Schema{Nullable: true}
		default:
			s = openapi3.NewObjectSchema()
		}
	}
	s.Description = v.Description()
	return s
}

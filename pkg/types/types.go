package types

import "github.com/yourorg/apibuilder/pkg/capture"

// GroupDocs is the documentation header of a group.
type GroupDocs struct {
	Title        string   `json:"title"`
	Descriptions []string `json:"descriptions,omitempty"`
	Schemes      []string `json:"schemes,omitempty"`
	Host         string   `json:"host,omitempty"`
	BasePath     string   `json:"base_path,omitempty"`
}

// ActionDocs is the documentation header of one endpoint operation.
type ActionDocs struct {
	Method       string   `json:"method"`
	Title        string   `json:"title"`
	Descriptions []string `json:"descriptions,omitempty"`
	URL          string   `json:"url"`
}

// Example is one worked instance of an action.
type Example struct {
	Parameters   *capture.Value `json:"parameters,omitempty"`
	Query        *capture.Value `json:"query,omitempty"`
	RequestBody  *capture.Value `json:"request_body,omitempty"`
	ResponseBody *capture.Value `json:"response_body,omitempty"`
	Status       int            `json:"status,omitempty"`
}

// IsEmpty reports whether nothing was captured into the example.
func (e *Example) IsEmpty() bool {
	return e == nil || (e.Parameters == nil && e.Query == nil && e.RequestBody == nil && e.ResponseBody == nil && e.Status == 0)
}

// GroupNode is the serialized form of a group and its subtree.
type GroupNode struct {
	Docs       GroupDocs      `json:"docs"`
	Parameters *capture.Value `json:"parameters,omitempty"`
	Queries    *capture.Value `json:"queries,omitempty"`
	Children   []GroupNode    `json:"children,omitempty"`
	Actions    []ActionNode   `json:"actions,omitempty"`
}

// ActionNode is the serialized form of an action.
type ActionNode struct {
	Docs     ActionDocs `json:"docs"`
	Examples []Example  `json:"examples"`
}

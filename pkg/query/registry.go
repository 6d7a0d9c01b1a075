package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// FieldKind is the storage type of a declared field.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldNumber
	FieldBool
	FieldDate
	FieldObject
)

// IDField is the storage name of the document identifier. "id" is accepted as an alias.
const IDField = "_id"

// IsIDField reports whether name addresses the document identifier.
func IsIDField(name string) bool {
	return name == "id" || name == IDField
}

// Field describes one queryable path of a collection. Dotted names address sub-documents.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Hidden fields are stored but never returned or queried.
	Hidden bool
	// Unique fields are backed by a unique index; Indexed ones by a plain index.
	Unique  bool
	Indexed bool
}

// Index is a single-field index the store should maintain.
type Index struct {
	Field  string
	Unique bool
}

// Collection is a resolved query target.
type Collection struct {
	Name        string
	StorageName string
	Fields      []Field

	index  map[string]Field
	schema *jsonschema.Resolved
}

// Field returns the declared field called name.
func (c *Collection) Field(name string) (Field, bool) {
	f, ok := c.index[name]
	return f, ok
}

// HiddenFields lists the fields that must not leave the engine.
func (c *Collection) HiddenFields() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Hidden {
			out = append(out, f.Name)
		}
	}
	return out
}

// Indexes lists the indexes declared by the collection's fields.
func (c *Collection) Indexes() []Index {
	var out []Index
	for _, f := range c.Fields {
		if f.Unique || f.Indexed {
			out = append(out, Index{Field: f.Name, Unique: f.Unique})
		}
	}
	return out
}

// CheckField validates a caller-supplied field name against the collection
// allow-list. The empty name is accepted and means the parameter is unused.
func (c *Collection) CheckField(name string) error {
	if name == "" || IsIDField(name) {
		return nil
	}
	if strings.ContainsAny(name, "$\x00") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("field %q is not a valid field name", name)
	}
	f, ok := c.index[name]
	if !ok {
		return fmt.Errorf("field %q is not defined on collection %q", name, c.Name)
	}
	if f.Hidden {
		return fmt.Errorf("field %q of collection %q is not queryable", name, c.Name)
	}
	return nil
}

// ValidateDocument checks doc against the collection schema before insertion.
func (c *Collection) ValidateDocument(doc map[string]interface{}) error {
	for key := range doc {
		if strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
			return fmt.Errorf("document key %q is not allowed", key)
		}
	}
	if c.schema == nil {
		return nil
	}
	return c.schema.Validate(doc)
}

func (c *Collection) init() error {
	if c.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if c.StorageName == "" {
		c.StorageName = c.Name
	}
	c.index = make(map[string]Field, len(c.Fields))
	props := map[string]*jsonschema.Schema{}
	var required []string
	for _, f := range c.Fields {
		if f.Name == "" || strings.Contains(f.Name, "$") {
			return fmt.Errorf("collection %q: invalid field name %q", c.Name, f.Name)
		}
		c.index[f.Name] = f
		if strings.Contains(f.Name, ".") {
			continue
		}
		props[f.Name] = &jsonschema.Schema{Types: kindTypes(f.Kind)}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)
	resolved, err := (&jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}).Resolve(nil)
	if err != nil {
		return fmt.Errorf("collection %q: build schema: %w", c.Name, err)
	}
	c.schema = resolved
	return nil
}

func kindTypes(k FieldKind) []string {
	switch k {
	case FieldNumber:
		return []string{"number", "null"}
	case FieldBool:
		return []string{"boolean", "null"}
	case FieldObject:
		return []string{"object", "array", "null"}
	default:
		// dates travel as ISO-8601 strings
		return []string{"string", "null"}
	}
}

// RegistryOptions controls name resolution.
type RegistryOptions struct {
	// DefaultCollection receives unknown names unless Strict is set.
	DefaultCollection string
	// Strict turns unknown names into UnknownCollection errors.
	Strict bool
}

// Registry maps collection names to targets. It is immutable after construction.
type Registry struct {
	byName   map[string]*Collection
	names    []string
	fallback *Collection
	strict   bool
}

// NewRegistry indexes collections. DefaultCollection must be one of them unless Strict is set.
func NewRegistry(collections []Collection, opts RegistryOptions) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Collection, len(collections)), strict: opts.Strict}
	for i := range collections {
		c := collections[i]
		if err := c.init(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("collection %q registered twice", c.Name)
		}
		r.byName[c.Name] = &c
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)

	if opts.DefaultCollection != "" {
		fb, ok := r.byName[opts.DefaultCollection]
		if !ok {
			return nil, fmt.Errorf("default collection %q is not registered", opts.DefaultCollection)
		}
		r.fallback = fb
	}
	if r.fallback == nil && !r.strict {
		return nil, fmt.Errorf("a default collection is required when strict resolution is disabled")
	}
	return r, nil
}

// Resolve returns the collection called name. Unknown names, including the
// empty string, resolve to the default collection; fellBack reports it.
func (r *Registry) Resolve(name string) (c *Collection, fellBack bool, err error) {
	if c, ok := r.byName[name]; ok {
		return c, false, nil
	}
	if r.strict {
		return nil, false, &Error{Kind: KindUnknownCollection, Param: ParamCollection, Err: fmt.Errorf("collection %q", name)}
	}
	return r.fallback, true, nil
}

// Lookup returns a registered collection without fallback.
func (r *Registry) Lookup(name string) (*Collection, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names lists registered collections in ascending order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// DefaultCollections is the closed set of ERP collections served by the engine.
func DefaultCollections() []Collection {
	return []Collection{
		{Name: "appcollectionfields", Fields: []Field{
			{Name: "collectionName", Required: true},
			{Name: "fieldName", Required: true},
			{Name: "fieldShortDescription", Required: true},
			{Name: "filterable", Kind: FieldBool, Required: true},
			{Name: "searchable", Kind: FieldBool, Required: true},
			{Name: "orderable", Kind: FieldBool, Required: true},
		}},
		{Name: "brands", Fields: []Field{
			{Name: "brandName", Required: true, Unique: true},
			{Name: "companyName", Required: true},
			{Name: "logo", Required: true},
			{Name: "web", Required: true},
		}},
		{Name: "menuoptions", Fields: []Field{
			{Name: "userRole", Required: true},
			{Name: "label"},
			{Name: "path"},
		}},
		{Name: "permissions", Fields: []Field{
			{Name: "userEmail", Required: true},
			{Name: "collectionName"},
			{Name: "permission"},
			{Name: "active", Kind: FieldBool},
		}},
		{Name: "productmovements", Fields: []Field{
			{Name: "productSku", Required: true, Indexed: true},
			{Name: "batch"},
			{Name: "date"},
			{Name: "type"},
			{Name: "typeId"},
			{Name: "store"},
			{Name: "units", Kind: FieldNumber},
			{Name: "costPerUnit", Kind: FieldNumber},
			{Name: "pricePerUnit", Kind: FieldNumber},
		}},
		{Name: "products", Fields: []Field{
			{Name: "sku", Required: true, Unique: true},
			{Name: "shortDescription", Required: true},
			{Name: "longDescription"},
			{Name: "ean"},
			{Name: "brand"},
			{Name: "image"},
			{Name: "userCreatorEmail"},
			{Name: "costPerUnit", Kind: FieldNumber},
			{Name: "pricePerUnit", Kind: FieldNumber},
		}},
		{Name: "reqresps", Fields: []Field{
			{Name: "date", Kind: FieldDate},
			{Name: "userEmail"},
			{Name: "userToken", Hidden: true},
			{Name: "request"},
			{Name: "response"},
			{Name: "effort"},
		}},
		{Name: "requestlogs", StorageName: "requestlog", Fields: []Field{
			{Name: "timeStamp", Kind: FieldDate, Required: true},
			{Name: "userLoggedToken", Hidden: true},
			{Name: "userHost"},
			{Name: "method"},
			{Name: "url"},
			{Name: "statusCode", Kind: FieldNumber},
			{Name: "responseLength", Kind: FieldNumber},
			{Name: "responseTimeMs", Kind: FieldNumber},
		}},
		{Name: "translations", Fields: []Field{
			{Name: "inputText", Required: true, Unique: true},
			{Name: "inputContext"},
			{Name: "outputTexts", Kind: FieldObject},
			{Name: "outputTexts.isoCode"},
			{Name: "outputTexts.outputText"},
		}},
		{Name: "users", Fields: []Field{
			{Name: "email", Required: true},
			{Name: "passwd", Hidden: true},
			{Name: "firstName"},
			{Name: "lastName"},
			{Name: "role"},
			{Name: "language"},
		}},
	}
}

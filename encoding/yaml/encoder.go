package yaml

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/effective-security/toolbridge/utils"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// CommentStyle places the field descriptions in the rendered YAML
type CommentStyle int

const (
	NoComment CommentStyle = iota
	HeadComment
	LineComment
	FootComment
)

// Encoder is the YAML encoder,
// with an optional comment for each field taken from the `comment` or `jsonschema` tags.
type Encoder struct {
	reqType      reflect.Type
	commentStyle CommentStyle
}

func NewEncoder(req any) *Encoder {
	t := reflect.TypeOf(req)
	return &Encoder{
		reqType:      t,
		commentStyle: NoComment,
	}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	if e.commentStyle == NoComment {
		return yaml.Marshal(v)
	}
	node, err := e.structToYAMLWithComments(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := utils.BytesTrimBackticks(bs)
	return yaml.Unmarshal(data, ret)
}

// Validate checks the `validate` tags of the decoded struct
func (e *Encoder) Validate(req any) error {
	return validate.Struct(req)
}

func (e *Encoder) WithCommentStyle(style CommentStyle) *Encoder {
	e.commentStyle = style
	return e
}

func (e *Encoder) GetFormatInstructions() string {
	instance := schema.Example(e.reqType)
	if instance == nil {
		return ""
	}
	bs, err := e.Marshal(instance)
	if err != nil {
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with YAML in the following YAML schema without comments:\n")
	b.WriteString("```yaml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the YAML, not the schema itself.\n")
	return b.String()
}

// Parse struct and convert it to a YAML Node with comments
func (e *Encoder) structToYAMLWithComments(v any) (*yaml.Node, error) {
	val := reflect.ValueOf(v)

	val = dereference(val)
	if !val.IsValid() {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: "null", Tag: "!!null"}, nil
	}

	typ := val.Type()

	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", val.Kind())
	}

	root := &yaml.Node{Kind: yaml.MappingNode}

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)

		if !field.IsExported() {
			continue
		}
		yamlKey, omitEmpty := parseTag(field.Tag.Get("yaml"))
		if yamlKey == "-" {
			continue
		}
		if yamlKey == "" {
			yamlKey = strings.ToLower(field.Name)
		}
		if omitEmpty && val.Field(i).IsZero() {
			continue
		}

		comment := field.Tag.Get("comment")
		if comment == "" {
			comment = extractDescription(field.Tag.Get("jsonschema"))
		}

		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: yamlKey}
		if comment != "" {
			switch e.commentStyle {
			case HeadComment:
				keyNode.HeadComment = comment
			case LineComment:
				keyNode.LineComment = comment
			case FootComment:
				keyNode.FootComment = comment
			}
		}

		valueNode := e.getValueNode(val.Field(i))
		root.Content = append(root.Content, keyNode, valueNode)
	}

	return root, nil
}

// Recursively parse values, supporting pointers and interfaces
func (e *Encoder) getValueNode(v reflect.Value) *yaml.Node {
	// Handle pointers
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return &yaml.Node{Kind: yaml.ScalarNode, Value: "null", Tag: "!!null"}
		}
		v = v.Elem()
	}

	// Handle interfaces
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return &yaml.Node{Kind: yaml.ScalarNode, Value: "null", Tag: "!!null"}
		}
		v = reflect.ValueOf(v.Interface()) // Get the actual value
	}

	var node *yaml.Node
	switch v.Kind() {
	case reflect.String:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: v.String()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatInt(v.Int(), 10), Tag: "!!int"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatUint(v.Uint(), 10), Tag: "!!int"}
	case reflect.Float32, reflect.Float64:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v.Float(), 'g', -1, 64), Tag: "!!float"}
	case reflect.Bool:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatBool(v.Bool()), Tag: "!!bool"}
	case reflect.Map:
		node = e.mapToYAMLNode(v)
	case reflect.Struct:
		node, _ = e.structToYAMLWithComments(v.Interface()) // Recursively parse struct
	case reflect.Slice, reflect.Array:
		node = e.sliceToYAMLNode(v)
	default:
		node = &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%v", v.Interface())}
	}
	return node
}

// mapToYAMLNode renders the map sorted by key
func (e *Encoder) mapToYAMLNode(v reflect.Value) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, key := range keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%v", key.Interface())}
		valueNode := e.getValueNode(v.MapIndex(key))
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node
}

// sliceToYAMLNode renders slices and arrays
func (e *Encoder) sliceToYAMLNode(v reflect.Value) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for i := 0; i < v.Len(); i++ {
		node.Content = append(node.Content, e.getValueNode(v.Index(i)))
	}
	return node
}

var descriptionRegex = regexp.MustCompile(`description=([^,]+)`)

func extractDescription(tag string) string {
	matches := descriptionRegex.FindStringSubmatch(tag)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

func parseTag(tag string) (name string, omitEmpty bool) {
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty
}

// Recursively dereference pointers until `v` is not a pointer type
func dereference(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{} // Return an empty value to prevent nil pointer dereference
		}
		v = v.Elem()
	}
	return v
}

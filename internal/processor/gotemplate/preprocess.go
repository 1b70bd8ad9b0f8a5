package gotemplate

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"git.home.luguber.info/inful/tplgen/internal/processor"
)

// generateSource emits a Go source file encapsulating the include-expanded
// template, for later compilation instead of direct text output. The
// generated type renders with text/template at runtime; parameter values
// default to the generation-time ones and can be overridden per render.
func generateSource(req processor.Request, body string) ([]byte, error) {
	pkg := packageName(req.Namespace)
	ident := typeIdent(req.InputFile)
	if ident == "" {
		return nil, fmt.Errorf("cannot derive a type name from %q", req.InputFile)
	}

	params := make(map[string]string)
	for _, p := range req.Globals.Parameters {
		if _, exists := params[p.Name]; !exists || (p.ProcessorScope == "" && p.DirectiveScope == "") {
			params[p.Name] = p.Value
		}
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by tplgen. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "//\n")
	fmt.Fprintf(&b, "// Source: %s\n", req.InputFile)
	fmt.Fprintf(&b, "// Namespace: %s\n", req.Namespace)
	if req.Globals.TargetRuntimeIdentifier != "" {
		fmt.Fprintf(&b, "// Target runtime: %s\n", req.Globals.TargetRuntimeIdentifier)
	}
	fmt.Fprintf(&b, "\npackage %s\n\n", pkg)
	fmt.Fprintf(&b, "import (\n\t\"fmt\"\n\t\"io\"\n\t\"text/template\"\n)\n\n")

	fmt.Fprintf(&b, "// %sTemplate renders the %s template.\n", ident, req.InputFile)
	fmt.Fprintf(&b, "type %sTemplate struct {\n", ident)
	fmt.Fprintf(&b, "\t// Parameters overrides the build-time parameter values.\n")
	fmt.Fprintf(&b, "\tParameters map[string]string\n")
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "const %sSource = %s\n\n", unexport(ident), strconv.Quote(body))

	fmt.Fprintf(&b, "// Render executes the template and writes the result to w.\n")
	fmt.Fprintf(&b, "func (t %sTemplate) Render(w io.Writer) error {\n", ident)
	fmt.Fprintf(&b, "\tparams := map[string]string{\n")
	for _, name := range sortedKeys(params) {
		fmt.Fprintf(&b, "\t\t%s: %s,\n", strconv.Quote(name), strconv.Quote(params[name]))
	}
	fmt.Fprintf(&b, "\t}\n")
	fmt.Fprintf(&b, "\tfor k, v := range t.Parameters {\n\t\tparams[k] = v\n\t}\n")
	fmt.Fprintf(&b, "\ttpl, err := template.New(%s).Funcs(template.FuncMap{\n", strconv.Quote(ident))
	fmt.Fprintf(&b, "\t\t\"param\": func(name string) (string, error) {\n")
	fmt.Fprintf(&b, "\t\t\tif v, ok := params[name]; ok {\n\t\t\t\treturn v, nil\n\t\t\t}\n")
	fmt.Fprintf(&b, "\t\t\treturn \"\", fmt.Errorf(\"parameter %%q is not declared\", name)\n")
	fmt.Fprintf(&b, "\t\t},\n")
	fmt.Fprintf(&b, "\t}).Parse(%sSource)\n", unexport(ident))
	fmt.Fprintf(&b, "\tif err != nil {\n\t\treturn err\n\t}\n")
	fmt.Fprintf(&b, "\treturn tpl.Execute(w, nil)\n")
	fmt.Fprintf(&b, "}\n")

	return b.Bytes(), nil
}

// packageName derives a Go package name from the last namespace segment.
func packageName(namespace string) string {
	segments := strings.Split(namespace, ".")
	last := segments[len(segments)-1]

	var b strings.Builder
	for _, r := range strings.ToLower(last) {
		if unicode.IsLetter(r) || (b.Len() > 0 && unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "generated"
	}
	return b.String()
}

// typeIdent derives an exported identifier from the template file name.
func typeIdent(inputFile string) string {
	base := inputFile
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}

	var b strings.Builder
	upper := true
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || (b.Len() > 0 && unicode.IsDigit(r)):
			if upper {
				b.WriteRune(unicode.ToUpper(r))
				upper = false
			} else {
				b.WriteRune(r)
			}
		default:
			upper = true
		}
	}
	return b.String()
}

func unexport(ident string) string {
	if ident == "" {
		return ident
	}
	return strings.ToLower(ident[:1]) + ident[1:]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

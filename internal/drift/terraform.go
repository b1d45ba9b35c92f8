package drift

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/parse"
)

// DetectTerraform diffs every .tf/.tfvars file present on either side at the
// block-attribute level. drift_v1.py's _file_type only tags these files as
// "infra" and folds them into the generic code-hunk path; this detector adds
// the structural, key-level diff the distilled pipeline never implemented,
// following the same flatten-then-compare shape as DetectSpringProfiles.
func DetectTerraform(goldenRoot, candidateRoot string) []models.Delta {
	g := collectTerraformFiles(goldenRoot)
	c := collectTerraformFiles(candidateRoot)

	var out []models.Delta
	for _, rel := range unionSortedFileKeys(terraformMapAny(g), terraformMapAny(c)) {
		gf := g[rel]
		cf := c[rel]

		for _, k := range sortedKeys(cf) {
			if _, ok := gf[k]; !ok {
				out = append(out, newDelta("tf+"+rel+"."+k, models.CategoryTerraform, rel, parse.KeyLocator(rel, k), nil, cf[k]))
			}
		}
		for _, k := range sortedKeys(gf) {
			if _, ok := cf[k]; !ok {
				out = append(out, newDelta("tf-"+rel+"."+k, models.CategoryTerraform, rel, parse.KeyLocator(rel, k), gf[k], nil))
			}
		}
		for _, k := range sortedKeys(gf) {
			cv, ok := cf[k]
			if ok && !valuesEqual(gf[k], cv) {
				out = append(out, newDelta("tf~"+rel+"."+k, models.CategoryTerraform, rel, parse.KeyLocator(rel, k), gf[k], cv))
			}
		}
	}

	for i := range out {
		attachLineStart(&out[i], goldenRoot, candidateRoot)
	}
	return out
}

func terraformMapAny(m map[string]map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// collectTerraformFiles walks root for .tf/.tfvars files and flattens each
// one into a dotted-keypath map: resource blocks key as
// "<type>.<labels...>.<attr>", nested blocks append their own type to the
// path the same way.
func collectTerraformFiles(root string) map[string]map[string]interface{} {
	out := map[string]map[string]interface{}{}
	parser := hclparse.NewParser()

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".tf" && ext != ".tfvars" {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() || file == nil {
			return nil
		}
		body, ok := file.Body.(*hclsyntax.Body)
		if !ok {
			return nil
		}

		flat := map[string]interface{}{}
		flattenHCLBody(body, "", flat)
		out[rel] = flat
		return nil
	})
	return out
}

func flattenHCLBody(body *hclsyntax.Body, prefix string, out map[string]interface{}) {
	for name, attr := range body.Attributes {
		key := joinKeyPath(prefix, name)
		out[key] = hclAttributeValue(attr)
	}
	for _, block := range body.Blocks {
		segs := append([]string{block.Type}, block.Labels...)
		blockPrefix := joinKeyPath(prefix, strings.Join(segs, "."))
		flattenHCLBody(block.Body, blockPrefix, out)
	}
}

func joinKeyPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// hclAttributeValue evaluates an attribute's expression with an empty
// context. References to resources, variables, locals, or functions cannot
// resolve this way; for those the raw source text of the expression is used
// instead, which still lets value changes surface as deltas even though the
// delta's old/new values are the unresolved expression text rather than the
// value Terraform would apply.
func hclAttributeValue(attr *hclsyntax.Attribute) interface{} {
	val, diags := attr.Expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() {
		return strings.TrimSpace(string(attr.Expr.Range().SliceBytes(sourceBytes(attr))))
	}
	return ctyToPlain(val)
}

// sourceBytes recovers the original file bytes an expression's range can be
// sliced from. hclsyntax ranges carry the filename but not the bytes, so this
// re-reads the file; detector-level callers never hit this on the common
// path (bare literals resolve above) and terraform files are small.
func sourceBytes(attr *hclsyntax.Attribute) []byte {
	data, err := os.ReadFile(attr.Expr.Range().Filename)
	if err != nil {
		return nil
	}
	return data
}

func ctyToPlain(val cty.Value) interface{} {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString()
	case ty == cty.Number:
		bf := val.AsBigFloat()
		f, _ := bf.Float64()
		return f
	case ty == cty.Bool:
		return val.True()
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var out []interface{}
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			out = append(out, ctyToPlain(elem))
		}
		return out
	case ty.IsMapType() || ty.IsObjectType():
		out := map[string]interface{}{}
		for it := val.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			out[key.AsString()] = ctyToPlain(elem)
		}
		return out
	default:
		return fmt.Sprintf("<%s>", ty.FriendlyName())
	}
}

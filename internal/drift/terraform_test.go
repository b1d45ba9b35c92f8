package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/certguard/internal/models"
)

func TestDetectTerraformFindsChangedAttribute(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "main.tf", `resource "aws_instance" "web" {
  instance_type = "t3.medium"
  ami           = "ami-0123456789"
}
`)
	writeFile(t, candidate, "main.tf", `resource "aws_instance" "web" {
  instance_type = "t3.large"
  ami           = "ami-0123456789"
}
`)

	deltas := DetectTerraform(golden, candidate)
	require.NotEmpty(t, deltas)

	var found bool
	for _, d := range deltas {
		if d.Category == models.CategoryTerraform && d.File == "main.tf" {
			if d.StringOld() == "t3.medium" && d.StringNew() == "t3.large" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected a terraform delta for instance_type t3.medium -> t3.large")
}

func TestDetectTerraformFindsAddedAttribute(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "main.tf", `resource "aws_instance" "web" {
  instance_type = "t3.medium"
}
`)
	writeFile(t, candidate, "main.tf", `resource "aws_instance" "web" {
  instance_type = "t3.medium"
  monitoring    = true
}
`)

	deltas := DetectTerraform(golden, candidate)

	var found bool
	for _, d := range deltas {
		if d.Category == models.CategoryTerraform && d.Old == nil && d.New == true {
			found = true
		}
	}
	assert.True(t, found, "expected an added monitoring=true delta")
}

func TestDetectTerraformHandlesUnresolvableReferenceAsText(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "main.tf", `resource "aws_instance" "web" {
  subnet_id = var.subnet_a
}
`)
	writeFile(t, candidate, "main.tf", `resource "aws_instance" "web" {
  subnet_id = var.subnet_b
}
`)

	deltas := DetectTerraform(golden, candidate)

	var found bool
	for _, d := range deltas {
		if d.Category == models.CategoryTerraform && d.StringOld() == "var.subnet_a" && d.StringNew() == "var.subnet_b" {
			found = true
		}
	}
	assert.True(t, found, "expected the unresolved expression text to surface as the delta value")
}

func TestDetectTerraformIgnoresNonTerraformFiles(t *testing.T) {
	golden := t.TempDir()
	candidate := t.TempDir()

	writeFile(t, golden, "notes.md", "# hello\n")
	writeFile(t, candidate, "notes.md", "# goodbye\n")

	deltas := DetectTerraform(golden, candidate)
	assert.Empty(t, deltas)
}

func TestCollectTerraformFilesFlattensNestedBlocks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "variables.tf", `variable "region" {
  default = "us-east-1"
}
`)

	files := collectTerraformFiles(root)
	flat, ok := files["variables.tf"]
	require.True(t, ok)
	assert.Equal(t, "us-east-1", flat["variable.region.default"])
}

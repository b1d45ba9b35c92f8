// Package models re-exports the drift-pipeline wire types for external
// callers (the CLI, the optional HTTP front end, and any future consumer
// outside the module) without requiring them to import internal/models.
package models

import "github.com/catherinevee/certguard/internal/models"

type (
	Delta             = models.Delta
	DeltaCategory     = models.DeltaCategory
	Locator           = models.Locator
	LocatorType       = models.LocatorType
	Policy            = models.Policy
	PolicyTag         = models.PolicyTag
	IntentGuard       = models.IntentGuard
	IntentFinding     = models.IntentFinding
	ContextBundle     = models.ContextBundle
	StructuralDiff    = models.StructuralDiff
	SemanticDiff      = models.SemanticDiff
	DependencyDiffs   = models.DependencyDiffs
	PolicyValidation  = models.PolicyValidation
	LLMOutput         = models.LLMOutput
	TriageItem        = models.TriageItem
	Certification     = models.Certification
	Decision          = models.Decision
	Service           = models.Service
	GoldenBranch      = models.GoldenBranch
	ValidationRun     = models.ValidationRun
	BranchType        = models.BranchType
	RunStatus         = models.RunStatus
)

const (
	DecisionAutoMerge   = models.DecisionAutoMerge
	DecisionHumanReview = models.DecisionHumanReview
	DecisionBlockMerge  = models.DecisionBlockMerge
)

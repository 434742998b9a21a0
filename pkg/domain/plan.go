package domain

import (
	"sort"
	"time"
)

type Action int

const (
	ActionNone Action = iota
	ActionRotateTruncate
	ActionRotateCompress
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRotateTruncate:
		return "rotate-truncate"
	case ActionRotateCompress:
		return "rotate-compress"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

func (a Action) IsRotation() bool {
	return a == ActionRotateTruncate || a == ActionRotateCompress
}

type Reason string

const (
	ReasonSize            Reason = "size"
	ReasonAge             Reason = "age"
	ReasonRetention       Reason = "retention"
	ReasonRecentlyRotated Reason = "recently-rotated"
)

type Plan struct {
	Rule   Rule
	Target FileRecord
	Action Action
	Reason Reason

	// Generation paths of the target once a rotation has been applied,
	// most recent first.
	ResultingGenerations []string
}

// Decide maps a record to the action it needs at the given moment. Size is
// checked before age, so a file over both thresholds is always reported with
// ReasonSize.
func Decide(rule Rule, record FileRecord, now time.Time) Plan {
	plan := Plan{Rule: rule, Target: record, Action: ActionNone}

	if index, ok := record.Generation(); ok {
		// Generation MaxGenerations itself is kept at rest, the executor
		// drops it right before a shift would push it past retention.
		if index > rule.MaxGenerations {
			plan.Action = ActionDelete
			plan.Reason = ReasonRetention
		}
		return plan
	}

	if rule.SkipEmpty && record.SizeBytes == 0 {
		return plan
	}

	if rule.MaxSizeBytes != nil && record.SizeBytes >= *rule.MaxSizeBytes {
		plan.Action = rotateAction(rule)
		plan.Reason = ReasonSize
		return plan
	}

	if maxAge, ok := rule.MaxAge(); ok && now.Sub(record.ModifiedAt) >= maxAge {
		plan.Action = rotateAction(rule)
		plan.Reason = ReasonAge
		return plan
	}

	return plan
}

func rotateAction(rule Rule) Action {
	if rule.Compress {
		return ActionRotateCompress
	}
	return ActionRotateTruncate
}

// PlanTarget decides every record of a rule and orders the plans the way the
// executor must apply them: generations first, highest index first, then the
// live files. The order depends only on the records, not on scan order.
func PlanTarget(rule Rule, records []FileRecord, now time.Time) []Plan {
	generations := make(map[string][]FileRecord)
	for _, r := range records {
		if r.IsGeneration() {
			generations[r.Base] = append(generations[r.Base], r)
		}
	}

	plans := make([]Plan, 0, len(records))
	for _, r := range records {
		plan := Decide(rule, r, now)
		if plan.Action.IsRotation() {
			plan.ResultingGenerations = resultingGenerations(rule, r.Path, generations[r.Path])
		}
		plans = append(plans, plan)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		a, aok := plans[i].Target.Generation()
		b, bok := plans[j].Target.Generation()

		switch {
		case aok && !bok:
			return true
		case !aok && bok:
			return false
		case aok && bok && a != b:
			return a > b
		}

		return plans[i].Target.Path < plans[j].Target.Path
	})

	return plans
}

func resultingGenerations(rule Rule, base string, existing []FileRecord) []string {
	first := GenerationPath(base, 1, "")
	if rule.Compress {
		first = GenerationPath(base, 1, rule.Archive.Extension())
	}

	shifted := make([]FileRecord, 0, len(existing))
	for _, g := range existing {
		if index, _ := g.Generation(); index < rule.MaxGenerations {
			shifted = append(shifted, g)
		}
	}

	sort.Slice(shifted, func(i, j int) bool {
		return *shifted[i].GenerationIndex < *shifted[j].GenerationIndex
	})

	result := []string{first}
	for _, g := range shifted {
		result = append(result, GenerationPath(base, *g.GenerationIndex+1, g.Archive))
	}

	return result
}

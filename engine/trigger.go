package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/mohitkumar/flowup/logger"
	"github.com/mohitkumar/flowup/metadata"
	"github.com/mohitkumar/flowup/model"
	"github.com/mohitkumar/flowup/persistence"
	"go.uber.org/zap"
)

// TriggerEvaluator auto-enrolls prospects matching a business rule into the
// first active sequence sharing the rule's trigger event. A prospect with
// any open enrollment in a sequence of that event is skipped.
type TriggerEvaluator struct {
	storage   persistence.Storage
	sequences metadata.SequenceService
	lifecycle *LifecycleService
	rules     []model.TriggerRule
	clock     Clock
}

func NewTriggerEvaluator(storage persistence.Storage, sequences metadata.SequenceService, lifecycle *LifecycleService,
	rules []model.TriggerRule, clock Clock) *TriggerEvaluator {
	return &TriggerEvaluator{
		storage:   storage,
		sequences: sequences,
		lifecycle: lifecycle,
		rules:     rules,
		clock:     clock,
	}
}

func (t *TriggerEvaluator) RunAutoEnroll() []model.ItemResult {
	var results []model.ItemResult
	for _, rule := range t.rules {
		results = append(results, t.runRule(rule)...)
	}
	return results
}

func (t *TriggerEvaluator) runRule(rule model.TriggerRule) []model.ItemResult {
	var results []model.ItemResult
	sequences, err := t.sequences.ListSequencesByTrigger(rule.TriggerEvent)
	if err != nil {
		logger.Error("error listing sequences for trigger", zap.String("rule", rule.Name), zap.Error(err))
		return []model.ItemResult{{Error: err.Error()}}
	}
	eventSequences := make(map[string]bool)
	var target *model.Sequence
	for _, seq := range sequences {
		if !seq.Active {
			continue
		}
		eventSequences[seq.Id] = true
		if target == nil {
			target = seq
		}
	}
	if target == nil {
		return results
	}
	threshold := t.clock.Now().Add(-time.Duration(rule.DaysSinceLastContact) * 24 * time.Hour)
	prospects, err := t.storage.ListNotContactedSince(rule.ProspectStatus, threshold)
	if err != nil {
		logger.Error("error listing prospects for trigger", zap.String("rule", rule.Name), zap.Error(err))
		return []model.ItemResult{{Error: err.Error()}}
	}
	for _, prospect := range prospects {
		results = append(results, t.enrollProspect(rule, prospect, target, eventSequences))
	}
	return results
}

func (t *TriggerEvaluator) enrollProspect(rule model.TriggerRule, prospect *model.Prospect, target *model.Sequence,
	eventSequences map[string]bool) model.ItemResult {
	result := model.ItemResult{
		ProspectId: prospect.Id,
		SequenceId: target.Id,
	}
	if len(rule.Expression) != 0 {
		matched, err := evalRuleExpression(rule.Expression, prospect)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if !matched {
			result.Ok = true
			result.Skipped = true
			return result
		}
	}
	open, err := t.storage.ListActiveOrPausedByProspect(prospect.Id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	for _, e := range open {
		if eventSequences[e.SequenceId] {
			result.Ok = true
			result.Skipped = true
			return result
		}
	}
	enrollment, err := t.lifecycle.Enroll(prospect.Id, target.Id, true)
	if err != nil {
		// losing an enroll race to a concurrent run is expected
		if errors.As(err, &model.DuplicateEnrollmentError{}) {
			result.Ok = true
			result.Skipped = true
			return result
		}
		logger.Error("error auto enrolling prospect", zap.String("rule", rule.Name), zap.String("prospect", prospect.Id), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.EnrollmentId = enrollment.Id
	result.Ok = true
	return result
}

// evalRuleExpression runs a javascript predicate with the prospect document
// bound to $.
func evalRuleExpression(expression string, prospect *model.Prospect) (bool, error) {
	doc := map[string]any{
		"email":  prospect.Email,
		"phone":  prospect.Phone,
		"status": string(prospect.Status),
	}
	for k, v := range prospect.Attributes {
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	script := fmt.Sprintf("var $ = %s;\n%s", data, expression)
	val, err := vm.RunString(script)
	if err != nil {
		return false, fmt.Errorf("error executing trigger expression %w", err)
	}
	return val.ToBoolean(), nil
}

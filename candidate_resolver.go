/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

/**
Simple resolver checks only the autowire candidate flag of the definition
*/

type SimpleAutowireCandidateResolver struct {
}

func (t *SimpleAutowireCandidateResolver) IsAutowireCandidate(candidate *BeanDefinitionHolder, descriptor *DependencyDescriptor) bool {
	return !candidate.Definition.ExcludeFromAutowiring
}

func (t *SimpleAutowireCandidateResolver) IsRequired(descriptor *DependencyDescriptor) bool {
	return descriptor.Required
}

func (t *SimpleAutowireCandidateResolver) HasQualifier(descriptor *DependencyDescriptor) bool {
	return false
}

func (t *SimpleAutowireCandidateResolver) GetSuggestedValue(descriptor *DependencyDescriptor) (interface{}, bool) {
	return nil, false
}

/**
Qualifier resolver matches qualifiers of injection points against qualifiers of definitions.
A default qualifier also matches the bean name or an alias of the candidate.
Value expressions of injection points are suggested values.
*/

type QualifierAutowireCandidateResolver struct {
	SimpleAutowireCandidateResolver
}

func (t *QualifierAutowireCandidateResolver) IsAutowireCandidate(candidate *BeanDefinitionHolder, descriptor *DependencyDescriptor) bool {
	if !t.SimpleAutowireCandidateResolver.IsAutowireCandidate(candidate, descriptor) {
		return false
	}
	for _, q := range descriptor.Qualifiers {
		if !t.checkQualifier(candidate, q) {
			return false
		}
	}
	return true
}

func (t *QualifierAutowireCandidateResolver) checkQualifier(candidate *BeanDefinitionHolder, q *Qualifier) bool {
	if dq, ok := candidate.Definition.Qualifier(q.TypeName); ok {
		if dq.Value != q.Value {
			return false
		}
		for k, v := range q.Attributes {
			if dq.Attributes[k] != v {
				return false
			}
		}
		return true
	}
	if q.TypeName == DefaultQualifierType && len(q.Attributes) == 0 {
		return candidate.MatchesName(q.Value)
	}
	return false
}

func (t *QualifierAutowireCandidateResolver) HasQualifier(descriptor *DependencyDescriptor) bool {
	return len(descriptor.Qualifiers) > 0
}

func (t *QualifierAutowireCandidateResolver) GetSuggestedValue(descriptor *DependencyDescriptor) (interface{}, bool) {
	if descriptor.Value != "" {
		return descriptor.Value, true
	}
	return nil, false
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"math"
	"sort"
)

const (
	HighestPrecedence = math.MinInt32
	LowestPrecedence  = math.MaxInt32
)

/**
Order comparator is the default dependency comparator.
Priority ordered beans go first, then ordered beans by their order, then the rest keeping the original order.
*/

type OrderComparator struct {
}

func (t OrderComparator) Compare(a, b interface{}) int {
	_, p1 := a.(PriorityOrderedBean)
	_, p2 := b.(PriorityOrderedBean)
	if p1 && !p2 {
		return -1
	}
	if p2 && !p1 {
		return 1
	}
	i1, i2 := orderOf(a), orderOf(b)
	switch {
	case i1 < i2:
		return -1
	case i1 > i2:
		return 1
	default:
		return 0
	}
}

func (t OrderComparator) Priority(obj interface{}) (int, bool) {
	if p, ok := obj.(PrioritizedBean); ok {
		return p.BeanPriority(), true
	}
	return 0, false
}

func orderOf(obj interface{}) int {
	if o, ok := obj.(OrderedBean); ok {
		return o.BeanOrder()
	}
	return LowestPrecedence
}

/**
	Order beans, all or partially, stable for equal orders
 */
func orderBeans(candidates []interface{}, comparator DependencyComparator) {
	if comparator == nil || len(candidates) < 2 {
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return comparator.Compare(candidates[i], candidates[j]) < 0
	})
}

/**
	Order named beans by the comparator, keeping names aligned
 */
func orderNamedBeans(names []string, beans []interface{}, comparator DependencyComparator) {
	if comparator == nil || len(beans) < 2 {
		return
	}
	idx := make([]int, len(beans))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return comparator.Compare(beans[idx[i]], beans[idx[j]]) < 0
	})
	sortedNames := make([]string, len(names))
	sortedBeans := make([]interface{}, len(beans))
	for i, k := range idx {
		sortedNames[i] = names[k]
		sortedBeans[i] = beans[k]
	}
	copy(names, sortedNames)
	copy(beans, sortedBeans)
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"go.uber.org/zap"
	"reflect"
)

/**
Autowire candidate found for the injection point, the instance is nil until resolved
*/

type candidate struct {
	name       string
	instance   interface{}
	resolved   bool
	resolvable bool
}

func candidateNames(list []*candidate) []string {
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.name
	}
	return names
}

/**
Resolves the injection point to a bean, beans of multi-element types, an optional, a provider or a lazy function.
Names of beans used are appended to autowiredNames.
*/
func (t *beanFactory) resolveDependency(c *creation, desc *DependencyDescriptor, beanName string, autowiredNames *[]string) (interface{}, error) {
	typ := desc.Type
	if typ == nil {
		return nil, newBeanError(ErrNoMatchingBean, beanName, "injection point %v has no type", desc)
	}
	switch {
	case isOptionalShape(typ):
		return t.resolveOptional(c, desc, beanName, autowiredNames)
	case isProviderShape(typ):
		pv := reflect.New(typ)
		target := pv.Interface().(providerValue)
		target.bind(newBeanProvider(t, desc.forNested(target.elemType(), false), beanName))
		return pv.Elem().Interface(), nil
	case isLazyShape(typ):
		return t.resolveLazy(desc, beanName), nil
	default:
		return t.doResolveDependency(c, desc, beanName, autowiredNames)
	}
}

func (t *beanFactory) resolveOptional(c *creation, desc *DependencyDescriptor, beanName string, autowiredNames *[]string) (interface{}, error) {
	opt := reflect.New(desc.Type)
	ov := opt.Interface().(optionalValue)
	obj, err := t.doResolveDependency(c, desc.forNested(ov.elemType(), false), beanName, autowiredNames)
	if err != nil {
		return nil, err
	}
	ov.set(obj)
	return opt.Elem().Interface(), nil
}

/**
Returns the function resolving the dependency on every call, on the chain of the bean if it is still in creation
*/
func (t *beanFactory) resolveLazy(desc *DependencyDescriptor, beanName string) interface{} {
	fnType := desc.Type
	nested := desc.forNested(fnType.Out(0), desc.Required)
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		c, leave := t.enterChain(beanName)
		defer leave()
		var names []string
		obj, err := t.doResolveDependency(c, nested, beanName, &names)
		return funcResults(fnType, obj, err)
	}).Interface()
}

func (t *beanFactory) doResolveDependency(c *creation, desc *DependencyDescriptor, beanName string, autowiredNames *[]string) (interface{}, error) {

	if desc.shortcut != "" {
		bean, err := t.doGetBean(c, desc.shortcut, desc.Type, nil, false)
		if err == nil {
			*autowiredNames = append(*autowiredNames, desc.shortcut)
			return bean, nil
		}
		if !hasKind(err, ErrNoSuchDefinition) {
			return nil, err
		}
		logger().Debug("shortcut bean is gone, resolving again", zap.String("bean", beanName), zap.String("shortcut", desc.shortcut))
	}

	if desc.BeanName != "" {
		return t.resolveNamedBean(c, desc, autowiredNames)
	}

	typ := desc.Type
	if value, ok := t.autowireCandidateResolver().GetSuggestedValue(desc); ok {
		return t.resolveSuggestedValue(beanName, desc, value)
	}

	if multiple, ok, err := t.resolveMultipleBeans(c, desc, beanName, autowiredNames); ok || err != nil {
		return multiple, err
	}

	candidates, err := t.findAutowireCandidates(c, beanName, typ, desc)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		if t.autowireCandidateResolver().IsRequired(desc) {
			return nil, noMatchingBean(typ, fmt.Sprintf("expected at least 1 bean which qualifies as autowire candidate for %v", desc)).withResource(beanName)
		}
		return nil, nil
	}

	var chosen *candidate
	if len(candidates) > 1 {
		name, err := t.determineAutowireCandidate(candidates, desc)
		if err != nil {
			return nil, err
		}
		if name == "" {
			if t.autowireCandidateResolver().IsRequired(desc) || !indicatesMultipleBeans(typ) {
				return nil, desc.resolveNotUnique(typ, candidateNames(candidates))
			}
			return nil, nil
		}
		for _, cand := range candidates {
			if cand.name == name {
				chosen = cand
				break
			}
		}
	} else {
		chosen = candidates[0]
	}

	if !chosen.resolvable {
		*autowiredNames = append(*autowiredNames, chosen.name)
	}
	instance := chosen.instance
	if !chosen.resolved {
		if instance, err = t.doGetBean(c, chosen.name, nil, nil, false); err != nil {
			return nil, err
		}
	}
	if instance == nil {
		if t.autowireCandidateResolver().IsRequired(desc) {
			return nil, noMatchingBean(typ, fmt.Sprintf("bean '%s' resolved to nil for %v", chosen.name, desc))
		}
		return nil, nil
	}
	if actual := reflect.TypeOf(instance); !actual.AssignableTo(typ) {
		return nil, notOfRequiredType(chosen.name, typ, actual)
	}
	return instance, nil
}

/**
Resolves the bean by the exact name of the injection point, an absent optional bean is nil
*/
func (t *beanFactory) resolveNamedBean(c *creation, desc *DependencyDescriptor, autowiredNames *[]string) (interface{}, error) {
	if !t.ContainsBean(desc.BeanName) {
		if t.autowireCandidateResolver().IsRequired(desc) {
			return nil, noMatchingBean(desc.Type, fmt.Sprintf("no bean named '%s' available for %v", desc.BeanName, desc))
		}
		return nil, nil
	}
	bean, err := t.doGetBean(c, desc.BeanName, desc.Type, nil, false)
	if err != nil {
		return nil, err
	}
	*autowiredNames = append(*autowiredNames, desc.BeanName)
	return bean, nil
}

func (t *beanFactory) resolveSuggestedValue(beanName string, desc *DependencyDescriptor, value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		resolved, err := t.ResolveEmbeddedValue(s)
		if err != nil {
			return nil, newBeanError(ErrUnsatisfiedDependency, beanName, "cannot resolve value '%s' for %v", s, desc).withCause(err)
		}
		value = resolved
	}
	var v reflect.Value
	var err error
	if _, simple := t.converter().(*SimpleTypeConverter); simple && desc.Layout != "" {
		v, err = convertValue(value, desc.Type, desc.Layout)
	} else {
		v, err = t.converter().ConvertIfNecessary(value, desc.Type)
	}
	if err != nil {
		e := newBeanError(ErrTypeMismatch, beanName, "cannot convert value for %v", desc).withCause(err)
		e.RequiredType = desc.Type
		return nil, e
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

/**
Resolves slices, arrays and maps of beans, returns false if the type is not a multi-element one or no bean matches the element type.
Array elements after the matching beans stay zero.
*/
func (t *beanFactory) resolveMultipleBeans(c *creation, desc *DependencyDescriptor, beanName string, autowiredNames *[]string) (interface{}, bool, error) {
	typ := desc.Type
	switch typ.Kind() {

	case reflect.Slice:
		elemType := typ.Elem()
		candidates, err := t.findAutowireCandidates(c, beanName, elemType, desc.forElements(elemType))
		if err != nil || len(candidates) == 0 {
			return nil, false, err
		}
		names, beans := t.candidateBeans(candidates, autowiredNames)
		orderNamedBeans(names, beans, t.comparator())
		slice := reflect.MakeSlice(typ, 0, len(beans))
		for i, bean := range beans {
			v, err := argumentOf(bean, elemType, t.converter())
			if err != nil {
				return nil, true, notOfRequiredType(names[i], elemType, reflect.TypeOf(bean))
			}
			slice = reflect.Append(slice, v)
		}
		return slice.Interface(), true, nil

	case reflect.Array:
		elemType := typ.Elem()
		candidates, err := t.findAutowireCandidates(c, beanName, elemType, desc.forElements(elemType))
		if err != nil || len(candidates) == 0 {
			return nil, false, err
		}
		names, beans := t.candidateBeans(candidates, autowiredNames)
		if len(beans) > typ.Len() {
			return nil, true, noMatchingBean(typ, fmt.Sprintf("array of length %d can not hold %d matching beans %v", typ.Len(), len(beans), names))
		}
		orderNamedBeans(names, beans, t.comparator())
		array := reflect.New(typ).Elem()
		for i, bean := range beans {
			v, err := argumentOf(bean, elemType, t.converter())
			if err != nil {
				return nil, true, notOfRequiredType(names[i], elemType, reflect.TypeOf(bean))
			}
			array.Index(i).Set(v)
		}
		return array.Interface(), true, nil

	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, false, nil
		}
		elemType := typ.Elem()
		candidates, err := t.findAutowireCandidates(c, beanName, elemType, desc.forElements(elemType))
		if err != nil || len(candidates) == 0 {
			return nil, false, err
		}
		names, beans := t.candidateBeans(candidates, autowiredNames)
		m := reflect.MakeMapWithSize(typ, len(beans))
		for i, bean := range beans {
			v, err := argumentOf(bean, elemType, t.converter())
			if err != nil {
				return nil, true, notOfRequiredType(names[i], elemType, reflect.TypeOf(bean))
			}
			m.SetMapIndex(reflect.ValueOf(names[i]).Convert(typ.Key()), v)
		}
		return m.Interface(), true, nil
	}
	return nil, false, nil
}

func (t *beanFactory) candidateBeans(candidates []*candidate, autowiredNames *[]string) ([]string, []interface{}) {
	names := make([]string, 0, len(candidates))
	beans := make([]interface{}, 0, len(candidates))
	for _, cand := range candidates {
		names = append(names, cand.name)
		beans = append(beans, cand.instance)
		if !cand.resolvable {
			*autowiredNames = append(*autowiredNames, cand.name)
		}
	}
	return names, beans
}

func indicatesMultipleBeans(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

/**
Finds beans matching the type and qualifying as autowire candidates, including resolvable dependencies.
Self references are the last resort.
*/
func (t *beanFactory) findAutowireCandidates(c *creation, beanName string, requiredType reflect.Type, desc *DependencyDescriptor) ([]*candidate, error) {
	names := t.beanNamesIncludingAncestors(c, requiredType, desc.Eager)
	resolver := t.autowireCandidateResolver()
	var result []*candidate

	for _, rd := range t.resolvableDependencyList() {
		if rd.value == nil || !(rd.typ == requiredType || requiredType.AssignableTo(rd.typ)) {
			continue
		}
		value, err := autowiringValue(rd.value, requiredType)
		if err != nil {
			return nil, err
		}
		if value != nil && reflect.TypeOf(value).AssignableTo(requiredType) {
			result = append(result, &candidate{name: fmt.Sprintf("(resolvable %v)", rd.typ), instance: value, resolved: true, resolvable: true})
		}
	}

	for _, name := range names {
		if !t.isSelfReference(beanName, name) && t.isCandidate(name, desc, resolver) {
			if err := t.addCandidateEntry(c, &result, name, desc); err != nil {
				return nil, err
			}
		}
	}

	if len(result) == 0 {
		multiple := indicatesMultipleBeans(requiredType)
		fallback := desc.forFallbackMatch()
		if !desc.Eager {
			names = t.beanNamesIncludingAncestors(c, requiredType, true)
		}
		for _, name := range names {
			if !t.isSelfReference(beanName, name) && t.isCandidate(name, fallback, resolver) && (!multiple || resolver.HasQualifier(desc)) {
				if err := t.addCandidateEntry(c, &result, name, desc); err != nil {
					return nil, err
				}
			}
		}
		if len(result) == 0 && !multiple {
			for _, name := range names {
				if t.isSelfReference(beanName, name) && (!desc.multiElement || beanName != name) && t.isCandidate(name, fallback, resolver) {
					if err := t.addCandidateEntry(c, &result, name, desc); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return result, nil
}

/**
Calls the object factory registered as resolvable dependency, unless the factory itself is required
*/
func autowiringValue(value interface{}, requiredType reflect.Type) (interface{}, error) {
	if factory, ok := value.(ObjectFactory); ok && !reflect.TypeOf(value).AssignableTo(requiredType) {
		return factory()
	}
	return value, nil
}

func (t *beanFactory) isCandidate(name string, desc *DependencyDescriptor, resolver AutowireCandidateResolver) bool {
	ok, err := t.isAutowireCandidate(name, desc, resolver)
	if err != nil {
		logger().Debug("skip autowire candidate", zap.String("bean", name), zap.Error(err))
		return false
	}
	return ok
}

/**
Adds the candidate, elements of multi-element injection points and finished singletons are resolved right away
*/
func (t *beanFactory) addCandidateEntry(c *creation, result *[]*candidate, name string, desc *DependencyDescriptor) error {
	if desc.multiElement || t.ContainsSingleton(name) {
		bean, err := t.doGetBean(c, name, nil, nil, false)
		if err != nil {
			return err
		}
		if bean == nil && desc.multiElement {
			return nil
		}
		*result = append(*result, &candidate{name: name, instance: bean, resolved: true})
		return nil
	}
	*result = append(*result, &candidate{name: name})
	return nil
}

/**
A bean never autowires into itself or into the bean whose factory it is
*/
func (t *beanFactory) isSelfReference(beanName, candidateName string) bool {
	if beanName == "" || candidateName == "" {
		return false
	}
	if beanName == candidateName {
		return true
	}
	bd, ok := t.localDefinition(candidateName)
	if !ok {
		return false
	}
	return bd.FactoryBeanName == beanName
}

/**
Returns names of beans of the type in this factory and in the ancestors, local names first
*/
func (t *beanFactory) beanNamesIncludingAncestors(c *creation, typ reflect.Type, eager bool) []string {
	names := t.beanNamesForType(c, typ, true, eager)
	parent, ok := t.parentFactory().(ListableBeanFactory)
	if !ok {
		return names
	}
	local := make(map[string]bool, len(names))
	for _, name := range names {
		local[name] = true
	}
	for _, name := range parent.GetBeanNamesForType(typ, true, eager) {
		if !local[name] && !t.ContainsLocalBean(name) {
			names = append(names, name)
		}
	}
	return names
}

/**
Chooses among several candidates: the primary one, then the one with the highest priority, then the one
matching the name of the injection point. Returns empty name if none wins.
*/
func (t *beanFactory) determineAutowireCandidate(candidates []*candidate, desc *DependencyDescriptor) (string, error) {
	primary, err := t.determinePrimaryCandidate(candidates, desc.Type)
	if err != nil || primary != "" {
		return primary, err
	}
	priority, err := t.determineHighestPriorityCandidate(candidates, desc.Type)
	if err != nil || priority != "" {
		return priority, err
	}
	for _, cand := range candidates {
		if cand.resolvable || t.matchesBeanName(cand.name, desc.Name) {
			return cand.name, nil
		}
	}
	return "", nil
}

/**
Returns the primary candidate, local primary beans win over ones of the parent factory
*/
func (t *beanFactory) determinePrimaryCandidate(candidates []*candidate, requiredType reflect.Type) (string, error) {
	primary := ""
	for _, cand := range candidates {
		if cand.resolvable || !t.isPrimary(cand.name) {
			continue
		}
		if primary == "" {
			primary = cand.name
			continue
		}
		candidateLocal := t.ContainsBeanDefinition(transformedBeanName(cand.name))
		primaryLocal := t.ContainsBeanDefinition(transformedBeanName(primary))
		switch {
		case candidateLocal && primaryLocal:
			return "", notUnique(ErrAmbiguousPrimary, requiredType, candidateNames(candidates), "more than one 'primary' bean found among candidates")
		case candidateLocal:
			primary = cand.name
		}
	}
	return primary, nil
}

func (t *beanFactory) isPrimary(name string) bool {
	beanName := transformedBeanName(name)
	if t.ContainsBeanDefinition(beanName) {
		mbd, err := t.getMergedLocalBeanDefinition(beanName)
		return err == nil && mbd.Primary
	}
	if parent, ok := t.parentFactory().(*beanFactory); ok {
		return parent.isPrimary(name)
	}
	return false
}

/**
Returns the candidate with the lowest priority value, fails if two candidates share it
*/
func (t *beanFactory) determineHighestPriorityCandidate(candidates []*candidate, requiredType reflect.Type) (string, error) {
	highestName := ""
	highest := 0
	for _, cand := range candidates {
		priority, ok := t.priorityOf(cand)
		if !ok {
			continue
		}
		switch {
		case highestName == "":
			highestName, highest = cand.name, priority
		case priority == highest:
			return "", notUnique(ErrAmbiguousPriority, requiredType, candidateNames(candidates), fmt.Sprintf("multiple beans found with the same priority ('%d') among candidates", priority))
		case priority < highest:
			highestName, highest = cand.name, priority
		}
	}
	return highestName, nil
}

func (t *beanFactory) priorityOf(cand *candidate) (int, bool) {
	if bd, ok := t.localDefinition(transformedBeanName(cand.name)); ok && bd.Priority != nil {
		return *bd.Priority, true
	}
	if cand.instance != nil {
		if comparator := t.comparator(); comparator != nil {
			return comparator.Priority(cand.instance)
		}
	}
	return 0, false
}

func (t *beanFactory) matchesBeanName(beanName, candidateName string) bool {
	if candidateName == "" {
		return false
	}
	if candidateName == beanName {
		return true
	}
	for _, alias := range t.GetAliases(beanName) {
		if alias == candidateName {
			return true
		}
	}
	return false
}

/**
Resolves the single bean of the type by the primary and priority tie-breaks, the parent factory is asked
if no local bean matches. Returns empty name without error if no bean matches, or if several match
and nonUniqueAsNull is set.
*/
func (t *beanFactory) resolveBeanByType(c *creation, requiredType reflect.Type, args []interface{}, nonUniqueAsNull bool) (interface{}, string, error) {
	if requiredType == nil {
		return nil, "", newBeanError(ErrNoMatchingBean, "", "required type must not be nil")
	}

	names := t.beanNamesForType(c, requiredType, true, true)
	if len(names) > 1 {
		var autowireCandidates []string
		for _, name := range names {
			if !t.ContainsBeanDefinition(name) {
				autowireCandidates = append(autowireCandidates, name)
				continue
			}
			if mbd, err := t.getMergedLocalBeanDefinition(name); err == nil && !mbd.ExcludeFromAutowiring {
				autowireCandidates = append(autowireCandidates, name)
			}
		}
		if len(autowireCandidates) > 0 {
			names = autowireCandidates
		}
	}

	switch {
	case len(names) == 1:
		bean, err := t.doGetBean(c, names[0], requiredType, args, false)
		return bean, names[0], err

	case len(names) > 1:
		candidates := make([]*candidate, 0, len(names))
		for _, name := range names {
			if len(args) == 0 && t.ContainsSingleton(name) {
				bean, err := t.doGetBean(c, name, nil, nil, false)
				if err != nil {
					return nil, "", err
				}
				candidates = append(candidates, &candidate{name: name, instance: bean, resolved: true})
			} else {
				candidates = append(candidates, &candidate{name: name})
			}
		}
		chosen, err := t.determinePrimaryCandidate(candidates, requiredType)
		if err == nil && chosen == "" {
			chosen, err = t.determineHighestPriorityCandidate(candidates, requiredType)
		}
		if err != nil {
			return nil, "", err
		}
		if chosen != "" {
			bean, err := t.doGetBean(c, chosen, requiredType, args, false)
			return bean, chosen, err
		}
		if !nonUniqueAsNull {
			return nil, "", notUnique(ErrNoUniqueBean, requiredType, names, fmt.Sprintf("expected single matching bean but found %d", len(names)))
		}
		return nil, "", nil
	}

	switch parent := t.parentFactory().(type) {
	case nil:
		return nil, "", nil
	case *beanFactory:
		c, leave := parent.enterChain("")
		defer leave()
		return parent.resolveBeanByType(c, requiredType, args, nonUniqueAsNull)
	default:
		bean, err := parent.GetBeanByType(requiredType, args...)
		if err != nil {
			if hasKind(err, ErrNoMatchingBean) {
				return nil, "", nil
			}
			if nonUniqueAsNull && hasKind(err, ErrNoUniqueBean) {
				return nil, "", nil
			}
			return nil, "", err
		}
		return bean, fmt.Sprintf("(parent %v)", requiredType), nil
	}
}

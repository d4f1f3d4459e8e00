/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"reflect"
)

func (t *beanFactory) RegisterBeanDefinition(name string, definition *BeanDefinition) error {
	if name == "" {
		return errors.New("bean name must not be empty")
	}
	if definition == nil {
		return errors.Errorf("bean definition of '%s' must not be nil", name)
	}
	if err := definition.Validate(); err != nil {
		return newBeanError(ErrValidationFailed, name, "validation of bean definition failed").withCause(err).withResource(definition.ResourceDescription)
	}

	t.definitionMu.Lock()
	existing, exists := t.definitionMap[name]
	if exists {
		if !t.allowBeanDefinitionOverriding.Load() {
			t.definitionMu.Unlock()
			return newBeanError(ErrOverrideNotAllowed, name, "cannot register bean definition [%v] for bean '%s': there is already [%v] bound", definition, name, existing).withResource(definition.ResourceDescription)
		}
		if existing.Role < definition.Role {
			logger().Info("overriding user-defined bean definition with a framework-generated bean definition", zap.String("bean", name))
		} else {
			logger().Debug("overriding bean definition", zap.String("bean", name), zap.Stringer("definition", definition))
		}
		t.definitionMap[name] = definition
	} else {
		if t.IsAlias(name) {
			if !t.allowBeanDefinitionOverriding.Load() {
				t.definitionMu.Unlock()
				return newBeanError(ErrOverrideNotAllowed, name, "cannot register bean definition for bean '%s' since there is already an alias bound to '%s'", name, t.canonicalName(name))
			}
			if err := t.aliases.RemoveAlias(name); err != nil {
				t.definitionMu.Unlock()
				return err
			}
		}
		t.definitionMap[name] = definition
		names := make([]string, 0, len(t.definitionNames)+1)
		names = append(names, t.definitionNames...)
		t.definitionNames = append(names, name)
		t.frozenNames = nil
	}
	t.definitionMu.Unlock()
	if !exists {
		t.removeManualSingletonName(name)
	}

	if exists || t.ContainsSingleton(name) {
		t.resetBeanDefinition(name)
	} else if t.IsConfigurationFrozen() {
		t.clearByTypeCache()
	}
	return nil
}

func (t *beanFactory) RemoveBeanDefinition(name string) error {
	t.definitionMu.Lock()
	if _, ok := t.definitionMap[name]; !ok {
		t.definitionMu.Unlock()
		return noSuchBean(name)
	}
	delete(t.definitionMap, name)
	names := make([]string, 0, len(t.definitionNames))
	for _, n := range t.definitionNames {
		if n != name {
			names = append(names, n)
		}
	}
	t.definitionNames = names
	t.frozenNames = nil
	t.definitionMu.Unlock()

	t.resetBeanDefinition(name)
	return nil
}

/**
Resets caches of the definition and of all definitions inheriting from it, the singleton is destroyed
*/
func (t *beanFactory) resetBeanDefinition(beanName string) {
	t.resetBeanDefinitionVisited(beanName, make(map[string]bool))
}

func (t *beanFactory) resetBeanDefinitionVisited(beanName string, visited map[string]bool) {
	if visited[beanName] {
		return
	}
	visited[beanName] = true

	t.clearMergedBeanDefinition(beanName)
	if err := t.destroyNamedSingleton(beanName); err != nil {
		logger().Warn("destruction of singleton on reset of bean definition failed", zap.String("bean", beanName), zap.Error(err))
	}
	for _, p := range t.postProcessors().mergedDefinition {
		p.ResetBeanDefinition(beanName)
	}

	for _, name := range t.GetBeanDefinitionNames() {
		if name == beanName {
			continue
		}
		if bd, ok := t.localDefinition(name); ok && bd.ParentName == beanName {
			t.resetBeanDefinitionVisited(name, visited)
		}
	}
}

func (t *beanFactory) clearMergedBeanDefinition(beanName string) {
	if v, ok := t.mergedDefinitions.Load(beanName); ok {
		v.(*RootBeanDefinition).markStale()
	}
}

func (t *beanFactory) localDefinition(name string) (*BeanDefinition, bool) {
	t.definitionMu.RLock()
	defer t.definitionMu.RUnlock()
	bd, ok := t.definitionMap[name]
	return bd, ok
}

func (t *beanFactory) GetBeanDefinition(name string) (*BeanDefinition, error) {
	if bd, ok := t.localDefinition(name); ok {
		return bd, nil
	}
	logger().Debug("no bean named found in factory", zap.String("bean", name), zap.Stringer("factory", t))
	return nil, noSuchBean(name)
}

func (t *beanFactory) ContainsBeanDefinition(name string) bool {
	_, ok := t.localDefinition(name)
	return ok
}

func (t *beanFactory) GetBeanDefinitionCount() int {
	t.definitionMu.RLock()
	defer t.definitionMu.RUnlock()
	return len(t.definitionMap)
}

/**
Names in registration order, a snapshot once the configuration is frozen
*/
func (t *beanFactory) GetBeanDefinitionNames() []string {
	t.definitionMu.RLock()
	defer t.definitionMu.RUnlock()
	if t.frozenNames != nil {
		return append([]string(nil), t.frozenNames...)
	}
	return append([]string(nil), t.definitionNames...)
}

func (t *beanFactory) manualSingletons() []string {
	t.definitionMu.RLock()
	defer t.definitionMu.RUnlock()
	return t.manualSingletonNames
}

func (t *beanFactory) IsBeanNameInUse(name string) bool {
	return t.IsAlias(name) || t.ContainsLocalBean(name) || t.hasDependentBean(name)
}

func (t *beanFactory) FreezeConfiguration() {
	t.definitionMu.Lock()
	t.frozen = true
	t.frozenNames = append([]string(nil), t.definitionNames...)
	t.definitionMu.Unlock()
}

func (t *beanFactory) IsConfigurationFrozen() bool {
	t.definitionMu.RLock()
	defer t.definitionMu.RUnlock()
	return t.frozen
}

func (t *beanFactory) GetMergedBeanDefinition(name string) (*RootBeanDefinition, error) {
	beanName := t.canonicalName(transformedBeanName(name))
	if !t.ContainsBeanDefinition(beanName) {
		if parent, ok := t.parentFactory().(ConfigurableBeanFactory); ok {
			return parent.GetMergedBeanDefinition(beanName)
		}
	}
	return t.getMergedLocalBeanDefinition(beanName)
}

/**
Returns the merged definition of the local bean, cached until it gets stale
*/
func (t *beanFactory) getMergedLocalBeanDefinition(beanName string) (*RootBeanDefinition, error) {
	if v, ok := t.mergedDefinitions.Load(beanName); ok {
		if mbd := v.(*RootBeanDefinition); !mbd.IsStale() {
			return mbd, nil
		}
	}
	bd, ok := t.localDefinition(beanName)
	if !ok {
		return nil, noSuchBean(beanName)
	}
	return t.getMergedDefinitionWithContaining(beanName, bd, nil, make(map[string]bool))
}

/**
Merges the definition with its parents. Definitions of inner beans take the scope of the containing bean
and are never cached.
*/
func (t *beanFactory) getMergedDefinitionWithContaining(beanName string, bd *BeanDefinition, containing *RootBeanDefinition, visited map[string]bool) (*RootBeanDefinition, error) {
	t.mergeMu.Lock()
	defer t.mergeMu.Unlock()
	return t.mergeLocked(beanName, bd, containing, visited)
}

func (t *beanFactory) mergeLocked(beanName string, bd *BeanDefinition, containing *RootBeanDefinition, visited map[string]bool) (*RootBeanDefinition, error) {
	var previous *RootBeanDefinition
	if containing == nil {
		if v, ok := t.mergedDefinitions.Load(beanName); ok {
			previous = v.(*RootBeanDefinition)
			if !previous.IsStale() {
				return previous, nil
			}
		}
	}

	if visited[beanName] {
		return nil, newBeanError(ErrCircularDefinition, beanName, "circular parent relationship of bean definition '%s'", beanName).withResource(bd.ResourceDescription)
	}
	visited[beanName] = true
	defer delete(visited, beanName)

	var mbd *RootBeanDefinition
	if bd.ParentName == "" {
		mbd = newRootBeanDefinition(bd)
	} else {
		parentName := t.canonicalName(transformedBeanName(bd.ParentName))
		var pbd *RootBeanDefinition
		var err error
		if beanName != parentName {
			pbd, err = t.mergedParentLocked(parentName, visited)
		} else if parent, ok := t.parentFactory().(ConfigurableBeanFactory); ok {
			pbd, err = parent.GetMergedBeanDefinition(parentName)
		} else {
			return nil, newBeanError(ErrNoSuchParent, beanName, "parent name '%s' is equal to bean name '%s': cannot be resolved without a configurable parent factory", parentName, beanName).withResource(bd.ResourceDescription)
		}
		if err != nil {
			if hasKind(err, ErrNoSuchDefinition) {
				return nil, newBeanError(ErrNoSuchParent, beanName, "could not resolve parent bean definition '%s'", bd.ParentName).withCause(err).withResource(bd.ResourceDescription)
			}
			return nil, err
		}
		mbd = newRootBeanDefinition(&pbd.BeanDefinition)
		mbd.overrideFrom(bd)
	}

	if mbd.Scope == ScopeDefault {
		mbd.Scope = ScopeSingleton
	}
	// an inner bean of a non-singleton bean can not be a singleton itself
	if containing != nil && !containing.IsSingleton() && mbd.IsSingleton() {
		mbd.Scope = containing.Scope
	}

	if containing == nil {
		if previous != nil {
			mbd.copyRelevantCaches(previous)
		}
		t.mergedDefinitions.Store(beanName, mbd)
	}
	return mbd, nil
}

func (t *beanFactory) mergedParentLocked(parentName string, visited map[string]bool) (*RootBeanDefinition, error) {
	if bd, ok := t.localDefinition(parentName); ok {
		return t.mergeLocked(parentName, bd, nil, visited)
	}
	if parent, ok := t.parentFactory().(ConfigurableBeanFactory); ok {
		return parent.GetMergedBeanDefinition(parentName)
	}
	return nil, noSuchBean(parentName)
}

func (t *beanFactory) GetBeanNamesForType(typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) []string {
	c, leave := t.enterChain("")
	defer leave()
	return t.beanNamesForType(c, typ, includeNonSingletons, allowEagerInit)
}

/**
Returns names matching the type, cached by type once the configuration is frozen
*/
func (t *beanFactory) beanNamesForType(c *creation, typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) []string {
	if !t.IsConfigurationFrozen() || typ == nil || !allowEagerInit {
		return t.doGetBeanNamesForType(c, typ, includeNonSingletons, allowEagerInit)
	}
	cache := &t.singletonBeanNamesByType
	if includeNonSingletons {
		cache = &t.allBeanNamesByType
	}
	if v, ok := cache.Load(typ); ok {
		return append([]string(nil), v.([]string)...)
	}
	names := t.doGetBeanNamesForType(c, typ, includeNonSingletons, true)
	cache.Store(typ, names)
	return append([]string(nil), names...)
}

func (t *beanFactory) doGetBeanNamesForType(c *creation, typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) []string {
	var result []string

	for _, beanName := range t.GetBeanDefinitionNames() {
		if t.IsAlias(beanName) {
			continue
		}
		mbd, err := t.getMergedLocalBeanDefinition(beanName)
		if err != nil {
			logger().Debug("ignoring bean definition for type check", zap.String("bean", beanName), zap.Error(err))
			c.onSuppressed(err)
			continue
		}
		if mbd.Abstract {
			continue
		}
		if !allowEagerInit && (!(mbd.beanClass() != nil || !mbd.IsLazyInit() || t.allowEagerClassLoading.Load()) || t.requiresEagerInitForType(mbd.FactoryBeanName)) {
			continue
		}

		isFactoryBean := t.isFactoryBeanDef(c, beanName, mbd)
		allowFactoryBeanInit := allowEagerInit || t.ContainsSingleton(beanName)
		matchFound := false

		if !isFactoryBean {
			if includeNonSingletons || mbd.IsSingleton() {
				matchFound = t.typeMatchSuppressed(c, beanName, typ, allowFactoryBeanInit)
			}
		} else {
			if includeNonSingletons || (allowFactoryBeanInit && t.isSingletonSuppressed(beanName)) {
				matchFound = t.typeMatchSuppressed(c, beanName, typ, allowFactoryBeanInit)
			}
			if !matchFound {
				beanName = FactoryBeanPrefix + beanName
				if includeNonSingletons || mbd.IsSingleton() {
					matchFound = t.typeMatchSuppressed(c, beanName, typ, allowFactoryBeanInit)
				}
			}
		}
		if matchFound {
			result = append(result, beanName)
		}
	}

	for _, beanName := range t.manualSingletons() {
		instance, ok := t.GetSingleton(beanName)
		if ok {
			if fb, isFactory := instance.(FactoryBean); isFactory {
				if (includeNonSingletons || fb.Singleton()) && t.typeMatchSuppressed(c, beanName, typ, true) {
					result = append(result, beanName)
					continue
				}
				beanName = FactoryBeanPrefix + beanName
			}
		}
		if t.typeMatchSuppressed(c, beanName, typ, true) {
			result = append(result, beanName)
		}
	}
	return result
}

func (t *beanFactory) typeMatchSuppressed(c *creation, name string, typ reflect.Type, allowFactoryBeanInit bool) bool {
	if typ == nil {
		return true
	}
	match, err := t.isTypeMatch(c, name, typ, allowFactoryBeanInit)
	if err != nil {
		logger().Debug("ignoring bean on type check", zap.String("bean", name), zap.Error(err))
		c.onSuppressed(err)
		return false
	}
	return match
}

func (t *beanFactory) isSingletonSuppressed(name string) bool {
	singleton, err := t.IsSingleton(name)
	return err == nil && singleton
}

/**
Returns true if the factory bean of the definition has to be created to determine the type
*/
func (t *beanFactory) requiresEagerInitForType(factoryBeanName string) bool {
	if factoryBeanName == "" || t.ContainsSingleton(factoryBeanName) {
		return false
	}
	isFactory, err := t.IsFactoryBean(factoryBeanName)
	return err == nil && isFactory
}

func (t *beanFactory) GetBeansOfType(typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) (map[string]interface{}, error) {
	c, leave := t.enterChain("")
	defer leave()
	names := t.beanNamesForType(c, typ, includeNonSingletons, allowEagerInit)
	result := make(map[string]interface{}, len(names))
	for _, name := range names {
		bean, err := t.doGetBean(c, name, nil, nil, false)
		if err != nil {
			if hasKind(err, ErrCurrentlyInCreation) {
				logger().Debug("ignoring match to currently created bean", zap.String("bean", name), zap.Error(err))
				continue
			}
			return nil, err
		}
		if bean != nil {
			result[name] = bean
		}
	}
	return result, nil
}

func (t *beanFactory) GetBeanNamesForAnnotation(annotation string) []string {
	c, leave := t.enterChain("")
	defer leave()
	var result []string
	for _, name := range t.GetBeanDefinitionNames() {
		mbd, err := t.getMergedLocalBeanDefinition(name)
		if err != nil || mbd.Abstract {
			continue
		}
		if t.hasAnnotation(c, name, annotation) {
			result = append(result, name)
		}
	}
	for _, name := range t.GetSingletonNames() {
		if !t.ContainsBeanDefinition(name) && t.hasAnnotation(c, name, annotation) {
			result = append(result, name)
		}
	}
	return result
}

func (t *beanFactory) GetBeansWithAnnotation(annotation string) (map[string]interface{}, error) {
	names := t.GetBeanNamesForAnnotation(annotation)
	result := make(map[string]interface{}, len(names))
	for _, name := range names {
		bean, err := t.GetBean(name)
		if err != nil {
			return nil, err
		}
		if bean != nil {
			result[name] = bean
		}
	}
	return result, nil
}

func (t *beanFactory) hasAnnotation(c *creation, beanName string, annotation string) bool {
	loader := t.ClassLoader()
	if loader == nil {
		return false
	}
	typ, err := t.typeOf(c, beanName, true)
	if err != nil || typ == nil {
		return false
	}
	for _, a := range loader.Annotations(typ) {
		if a == annotation {
			return true
		}
	}
	return false
}

/**
Eagerly creates all non-lazy singletons in registration order, then notifies smart initializing singletons
*/
func (t *beanFactory) PreInstantiateSingletons() error {
	logger().Debug("pre-instantiating singletons", zap.Stringer("factory", t))

	c, leave := t.enterChain("")
	defer leave()

	names := t.GetBeanDefinitionNames()
	for _, name := range names {
		mbd, err := t.getMergedLocalBeanDefinition(name)
		if err != nil {
			return err
		}
		if mbd.Abstract || !mbd.IsSingleton() || mbd.IsLazyInit() {
			continue
		}
		if !t.isFactoryBeanDef(c, name, mbd) {
			if _, err := t.doGetBean(c, name, nil, nil, false); err != nil {
				return err
			}
			continue
		}
		obj, err := t.doGetBean(c, FactoryBeanPrefix+name, nil, nil, false)
		if err != nil {
			return err
		}
		if smart, ok := obj.(SmartFactoryBean); ok && smart.EagerInit() {
			if _, err := t.doGetBean(c, name, nil, nil, false); err != nil {
				return err
			}
		}
	}

	for _, name := range names {
		instance, ok := t.GetSingleton(name)
		if !ok {
			continue
		}
		if smart, ok := instance.(SmartInitializingSingleton); ok {
			if err := smart.AfterSingletonsInstantiated(); err != nil {
				return errors.Wrapf(err, "AfterSingletonsInstantiated() of bean '%s'", name)
			}
		}
	}
	return nil
}

func (t *beanFactory) IsAutowireCandidate(beanName string, descriptor *DependencyDescriptor) (bool, error) {
	return t.isAutowireCandidate(beanName, descriptor, t.autowireCandidateResolver())
}

func (t *beanFactory) isAutowireCandidate(beanName string, descriptor *DependencyDescriptor, resolver AutowireCandidateResolver) (bool, error) {
	name := transformedBeanName(beanName)
	if t.ContainsBeanDefinition(name) {
		mbd, err := t.getMergedLocalBeanDefinition(name)
		if err != nil {
			return false, err
		}
		return t.isAutowireCandidateDefinition(beanName, mbd, descriptor, resolver), nil
	}
	if instance, ok := t.GetSingleton(name); ok {
		var class reflect.Type
		if instance != nil {
			class = reflect.TypeOf(instance)
		}
		return t.isAutowireCandidateDefinition(beanName, newRootBeanDefinition(NewBeanDefinition(class)), descriptor, resolver), nil
	}
	if parent, ok := t.parentFactory().(ConfigurableListableBeanFactory); ok {
		return parent.IsAutowireCandidate(beanName, descriptor)
	}
	return true, nil
}

func (t *beanFactory) isAutowireCandidateDefinition(beanName string, mbd *RootBeanDefinition, descriptor *DependencyDescriptor, resolver AutowireCandidateResolver) bool {
	name := transformedBeanName(beanName)
	holder := &BeanDefinitionHolder{
		Name:       name,
		Aliases:    t.aliases.GetAliases(name),
		Definition: &mbd.BeanDefinition,
	}
	return resolver.IsAutowireCandidate(holder, descriptor)
}

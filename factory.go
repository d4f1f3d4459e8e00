/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

/**
Post-processors sorted into buckets once at registration
*/

type processorCache struct {
	all                     []interface{}
	instantiationAware      []InstantiationAwareBeanPostProcessor
	smartInstantiationAware []SmartInstantiationAwareBeanPostProcessor
	destructionAware        []DestructionAwareBeanPostProcessor
	mergedDefinition        []MergedBeanDefinitionPostProcessor
	beanPostProcessors      []BeanPostProcessor
}

func newProcessorCache(list []interface{}) *processorCache {
	t := &processorCache{all: list}
	for _, p := range list {
		if pp, ok := p.(InstantiationAwareBeanPostProcessor); ok {
			t.instantiationAware = append(t.instantiationAware, pp)
		}
		if pp, ok := p.(SmartInstantiationAwareBeanPostProcessor); ok {
			t.smartInstantiationAware = append(t.smartInstantiationAware, pp)
		}
		if pp, ok := p.(DestructionAwareBeanPostProcessor); ok {
			t.destructionAware = append(t.destructionAware, pp)
		}
		if pp, ok := p.(MergedBeanDefinitionPostProcessor); ok {
			t.mergedDefinition = append(t.mergedDefinition, pp)
		}
		if pp, ok := p.(BeanPostProcessor); ok {
			t.beanPostProcessors = append(t.beanPostProcessors, pp)
		}
	}
	return t
}

func isPostProcessor(p interface{}) bool {
	switch p.(type) {
	case InstantiationAwareBeanPostProcessor, SmartInstantiationAwareBeanPostProcessor, DestructionAwareBeanPostProcessor, MergedBeanDefinitionPostProcessor, BeanPostProcessor:
		return true
	default:
		return false
	}
}

type beanFactory struct {
	*singletonRegistry

	aliases *aliasRegistry

	/**
	Guards configuration of the factory
	*/
	configMu                    sync.RWMutex
	parent                      BeanFactory
	classLoader                 ClassLoader
	typeConverter               TypeConverter
	embeddedValueResolvers      []StringValueResolver
	scopes                      map[string]Scope
	ignoredDependencyTypes      map[reflect.Type]bool
	ignoredDependencyInterfaces map[reflect.Type]bool
	resolvableTypes             []reflect.Type
	resolvableDependencies      map[reflect.Type]interface{}
	dependencyComparator        DependencyComparator
	candidateResolver           AutowireCandidateResolver

	/**
	Serializes registration of post-processors, readers load the snapshot
	*/
	processorMu sync.Mutex
	processors  atomic.Value

	allowBeanDefinitionOverriding    atomic.Bool
	allowEagerClassLoading           atomic.Bool
	allowCircularReferences          atomic.Bool
	allowRawInjectionDespiteWrapping atomic.Bool

	/**
	Guards definitions, names are replaced copy-on-write
	*/
	definitionMu         sync.RWMutex
	definitionMap        map[string]*BeanDefinition
	definitionNames      []string
	manualSingletonNames []string
	frozen               bool
	frozenNames          []string

	/**
	Guards merging of definitions, merged ones are readable without the lock
	*/
	mergeMu           sync.Mutex
	mergedDefinitions sync.Map

	/**
	Names of beans created at least once
	*/
	alreadyCreated sync.Map

	/**
	Objects of singleton factory beans, name -> object
	*/
	factoryBeanObjectCache sync.Map

	/**
	Unfinished factory bean instances created to determine the object type, name -> instance
	*/
	factoryBeanInstanceCache sync.Map

	allBeanNamesByType       sync.Map
	singletonBeanNamesByType sync.Map

	innerBeanSeq atomic.Uint64

	/**
	Creation chains of beans in population, name -> stack of chains
	*/
	bindMu   sync.Mutex
	bindings map[string][]*creation

	/**
	Creation chains of goroutines inside of the factory, goroutine id -> chain
	*/
	chains sync.Map

	directory       *FactoryDirectory
	serializationId string
}

/**
Creates the bean factory with the default settings: overriding of definitions, eager class loading
and circular references allowed, qualifier aware autowiring, order comparator.
*/
func New() ConfigurableListableBeanFactory {
	return newBeanFactory()
}

func newBeanFactory() *beanFactory {
	t := &beanFactory{
		singletonRegistry:           newSingletonRegistry(),
		classLoader:                 NewTypeRegistry(),
		typeConverter:               &SimpleTypeConverter{},
		scopes:                      make(map[string]Scope),
		ignoredDependencyTypes:      make(map[reflect.Type]bool),
		ignoredDependencyInterfaces: make(map[reflect.Type]bool),
		resolvableDependencies:      make(map[reflect.Type]interface{}),
		dependencyComparator:        OrderComparator{},
		candidateResolver:           &QualifierAutowireCandidateResolver{},
		definitionMap:               make(map[string]*BeanDefinition),
		bindings:                    make(map[string][]*creation),
	}
	t.aliases = newAliasRegistry(t.allowBeanDefinitionOverriding.Load)
	t.processors.Store(newProcessorCache(nil))
	t.allowBeanDefinitionOverriding.Store(true)
	t.allowEagerClassLoading.Store(true)
	t.allowCircularReferences.Store(true)
	t.ignoredDependencyInterfaces[BeanNameAwareClass] = true
	t.ignoredDependencyInterfaces[BeanFactoryAwareClass] = true
	t.ignoredDependencyInterfaces[ClassLoaderAwareClass] = true
	return t
}

func (t *beanFactory) SetParentBeanFactory(parent BeanFactory) error {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	if parent == BeanFactory(t) {
		return errors.New("bean factory can not be the parent of itself")
	}
	if t.parent != nil && t.parent != parent {
		return errors.Errorf("already associated with parent bean factory '%v'", t.parent)
	}
	t.parent = parent
	return nil
}

func (t *beanFactory) ParentBeanFactory() (BeanFactory, bool) {
	parent := t.parentFactory()
	return parent, parent != nil
}

func (t *beanFactory) parentFactory() BeanFactory {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.parent
}

func (t *beanFactory) SetClassLoader(loader ClassLoader) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.classLoader = loader
}

func (t *beanFactory) ClassLoader() ClassLoader {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.classLoader
}

func (t *beanFactory) SetTypeConverter(converter TypeConverter) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.typeConverter = converter
}

func (t *beanFactory) converter() TypeConverter {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.typeConverter
}

func (t *beanFactory) AddEmbeddedValueResolver(resolver StringValueResolver) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.embeddedValueResolvers = append(t.embeddedValueResolvers, resolver)
}

/**
Resolves placeholders of the value by every embedded value resolver in registration order
*/
func (t *beanFactory) ResolveEmbeddedValue(value string) (string, error) {
	t.configMu.RLock()
	resolvers := t.embeddedValueResolvers
	t.configMu.RUnlock()
	var err error
	for _, r := range resolvers {
		value, err = r.ResolveStringValue(value)
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

func (t *beanFactory) AddBeanPostProcessor(processor interface{}) error {
	if !isPostProcessor(processor) {
		return errors.Errorf("object of type '%T' does not implement any post-processor interface", processor)
	}
	t.processorMu.Lock()
	defer t.processorMu.Unlock()
	current := t.postProcessors().all
	list := make([]interface{}, 0, len(current)+1)
	for _, p := range current {
		if p != processor {
			list = append(list, p)
		}
	}
	list = append(list, processor)
	t.processors.Store(newProcessorCache(list))
	return nil
}

func (t *beanFactory) postProcessors() *processorCache {
	return t.processors.Load().(*processorCache)
}

func (t *beanFactory) GetBeanPostProcessorCount() int {
	return len(t.postProcessors().all)
}

func (t *beanFactory) RegisterScope(name string, scope Scope) error {
	if name == ScopeSingleton || name == ScopePrototype || name == ScopeDefault {
		return newBeanError(ErrAlreadyRegistered, "", "cannot replace existing scope '%s'", name)
	}
	if scope == nil {
		return errors.Errorf("scope '%s' must not be nil", name)
	}
	t.configMu.Lock()
	defer t.configMu.Unlock()
	if old, ok := t.scopes[name]; ok && old != scope {
		logger().Debug("replacing scope", zap.String("scope", name))
	}
	t.scopes[name] = scope
	return nil
}

func (t *beanFactory) GetRegisteredScope(name string) (Scope, bool) {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	scope, ok := t.scopes[name]
	return scope, ok
}

func (t *beanFactory) GetRegisteredScopeNames() []string {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	var list []string
	for name := range t.scopes {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func (t *beanFactory) SetAllowBeanDefinitionOverriding(allow bool) {
	t.allowBeanDefinitionOverriding.Store(allow)
}

func (t *beanFactory) SetAllowEagerClassLoading(allow bool) {
	t.allowEagerClassLoading.Store(allow)
}

func (t *beanFactory) SetAllowCircularReferences(allow bool) {
	t.allowCircularReferences.Store(allow)
}

func (t *beanFactory) SetAllowRawInjectionDespiteWrapping(allow bool) {
	t.allowRawInjectionDespiteWrapping.Store(allow)
}

func (t *beanFactory) IgnoreDependencyType(typ reflect.Type) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.ignoredDependencyTypes[typ] = true
}

func (t *beanFactory) IgnoreDependencyInterface(ifaceType reflect.Type) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.ignoredDependencyInterfaces[ifaceType] = true
}

func (t *beanFactory) isIgnoredDependencyType(typ reflect.Type) bool {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.ignoredDependencyTypes[typ]
}

/**
Returns true if the setter of the property is declared by one of ignored interfaces, like SetBeanName of BeanNameAware
*/
func (t *beanFactory) isSetterDefinedInIgnoredInterface(class reflect.Type, pd *propertyDescriptor) bool {
	if pd.setter == "" {
		return false
	}
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	for iface := range t.ignoredDependencyInterfaces {
		if !class.Implements(iface) {
			continue
		}
		if _, ok := iface.MethodByName(pd.setter); ok {
			return true
		}
	}
	return false
}

/**
Registers the fixed value injected into every injection point of the type, the value could be an ObjectFactory
*/
func (t *beanFactory) RegisterResolvableDependency(dependencyType reflect.Type, autowiredValue interface{}) error {
	if dependencyType == nil {
		return errors.New("dependency type must not be nil")
	}
	if autowiredValue != nil {
		_, isFactory := autowiredValue.(ObjectFactory)
		if !isFactory && !reflect.TypeOf(autowiredValue).AssignableTo(dependencyType) {
			return errors.Errorf("value '%T' does not implement the specified dependency type '%v'", autowiredValue, dependencyType)
		}
	}
	t.configMu.Lock()
	defer t.configMu.Unlock()
	if _, ok := t.resolvableDependencies[dependencyType]; !ok {
		t.resolvableTypes = append(t.resolvableTypes, dependencyType)
	}
	t.resolvableDependencies[dependencyType] = autowiredValue
	return nil
}

type resolvableDependency struct {
	typ   reflect.Type
	value interface{}
}

func (t *beanFactory) resolvableDependencyList() []resolvableDependency {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	list := make([]resolvableDependency, 0, len(t.resolvableTypes))
	for _, typ := range t.resolvableTypes {
		list = append(list, resolvableDependency{typ: typ, value: t.resolvableDependencies[typ]})
	}
	return list
}

func (t *beanFactory) SetDependencyComparator(comparator DependencyComparator) {
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.dependencyComparator = comparator
}

func (t *beanFactory) comparator() DependencyComparator {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.dependencyComparator
}

func (t *beanFactory) SetAutowireCandidateResolver(resolver AutowireCandidateResolver) {
	if resolver == nil {
		resolver = &SimpleAutowireCandidateResolver{}
	}
	t.configMu.Lock()
	defer t.configMu.Unlock()
	t.candidateResolver = resolver
}

func (t *beanFactory) autowireCandidateResolver() AutowireCandidateResolver {
	t.configMu.RLock()
	defer t.configMu.RUnlock()
	return t.candidateResolver
}

func (t *beanFactory) RegisterAlias(name, alias string) error {
	return t.aliases.RegisterAlias(name, alias)
}

func (t *beanFactory) RemoveAlias(alias string) error {
	return t.aliases.RemoveAlias(alias)
}

func (t *beanFactory) IsAlias(name string) bool {
	return t.aliases.IsAlias(name)
}

func (t *beanFactory) canonicalName(name string) string {
	return t.aliases.canonicalName(name)
}

/**
Returns aliases of the bean, the canonical name is included if the name is an alias.
Aliases of the parent factory are included for beans not defined locally.
*/
func (t *beanFactory) GetAliases(name string) []string {
	beanName := transformedBeanName(name)
	fullName := originalBeanName(beanName, name)
	canonical := t.canonicalName(beanName)

	var list []string
	if canonical != beanName {
		list = append(list, originalBeanName(canonical, name))
	}
	for _, alias := range t.aliases.GetAliases(canonical) {
		if prefixed := originalBeanName(alias, name); prefixed != fullName {
			list = append(list, prefixed)
		}
	}
	if !t.ContainsSingleton(canonical) && !t.ContainsBeanDefinition(canonical) {
		if parent := t.parentFactory(); parent != nil {
			list = append(list, parent.GetAliases(fullName)...)
		}
	}
	return list
}

/**
Binds the creation chain to the bean in population, nested requests of post-processors join it
*/
func (t *beanFactory) bind(beanName string, c *creation) {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	t.bindings[beanName] = append(t.bindings[beanName], c)
}

func (t *beanFactory) unbind(beanName string, c *creation) {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	list := t.bindings[beanName]
	for j := len(list) - 1; j >= 0; j-- {
		if list[j] == c {
			list = append(list[:j], list[j+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.bindings, beanName)
	} else {
		t.bindings[beanName] = list
	}
}

/**
Returns the chain of the calling goroutine if it is already inside of the factory, otherwise
the chain bound to the bean or a new chain, registered for the goroutine until leave is called.
Requests made by post construct methods, post processors and factory beans join the chain
of the bean in creation instead of waiting for it.
*/
func (t *beanFactory) enterChain(beanName string) (c *creation, leave func()) {
	id := goroutineId()
	if active, ok := t.chains.Load(id); ok {
		return active.(*creation), func() {}
	}
	c = t.boundChain(beanName)
	t.chains.Store(id, c)
	return c, func() { t.chains.Delete(id) }
}

func (t *beanFactory) boundChain(beanName string) *creation {
	if beanName != "" {
		t.bindMu.Lock()
		list := t.bindings[beanName]
		t.bindMu.Unlock()
		if n := len(list); n > 0 {
			return list[n-1]
		}
	}
	return newCreation()
}

func (t *beanFactory) GetBean(name string) (interface{}, error) {
	c, leave := t.enterChain("")
	defer leave()
	return t.doGetBean(c, name, nil, nil, false)
}

func (t *beanFactory) GetBeanWithArgs(name string, args ...interface{}) (interface{}, error) {
	c, leave := t.enterChain("")
	defer leave()
	return t.doGetBean(c, name, nil, args, false)
}

func (t *beanFactory) GetTypedBean(name string, requiredType reflect.Type) (interface{}, error) {
	c, leave := t.enterChain("")
	defer leave()
	return t.doGetBean(c, name, requiredType, nil, false)
}

func (t *beanFactory) GetBeanByType(requiredType reflect.Type, args ...interface{}) (interface{}, error) {
	c, leave := t.enterChain("")
	defer leave()
	bean, name, err := t.resolveBeanByType(c, requiredType, args, false)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, noMatchingBean(requiredType, "")
	}
	return bean, nil
}

func (t *beanFactory) GetBeanProvider(requiredType reflect.Type) ObjectProvider {
	return newBeanProvider(t, NewDependencyDescriptor(requiredType, "", true), "")
}

func (t *beanFactory) ContainsBean(name string) bool {
	beanName := t.canonicalName(transformedBeanName(name))
	if t.ContainsSingleton(beanName) || t.ContainsBeanDefinition(beanName) {
		if !isFactoryDereference(name) {
			return true
		}
		isFactory, err := t.IsFactoryBean(name)
		return err == nil && isFactory
	}
	if parent := t.parentFactory(); parent != nil {
		return parent.ContainsBean(originalBeanName(beanName, name))
	}
	return false
}

func (t *beanFactory) ContainsLocalBean(name string) bool {
	beanName := t.canonicalName(transformedBeanName(name))
	if !t.ContainsSingleton(beanName) && !t.ContainsBeanDefinition(beanName) {
		return false
	}
	if !isFactoryDereference(name) {
		return true
	}
	isFactory, err := t.IsFactoryBean(beanName)
	return err == nil && isFactory
}

func (t *beanFactory) RegisterDependentBean(beanName, dependentBeanName string) {
	t.registerDependentBean(t.canonicalName(beanName), dependentBeanName)
}

func (t *beanFactory) GetDependentBeans(beanName string) []string {
	return t.dependentBeans(beanName)
}

func (t *beanFactory) GetDependenciesForBean(beanName string) []string {
	return t.dependenciesForBean(beanName)
}

/**
Returns true if the singleton or the prototype of the name is in creation by any chain
*/
func (t *beanFactory) IsCurrentlyInCreation(name string) bool {
	beanName := t.canonicalName(name)
	if t.isSingletonCurrentlyInCreation(beanName) {
		return true
	}
	t.bindMu.Lock()
	defer t.bindMu.Unlock()
	return len(t.bindings[beanName]) > 0
}

func (t *beanFactory) DestroySingletons() error {
	logger().Debug("destroying singletons", zap.Int("count", t.GetSingletonCount()))
	err := t.destroySingletons()

	t.definitionMu.Lock()
	t.manualSingletonNames = nil
	t.definitionMu.Unlock()

	t.factoryBeanObjectCache.Range(func(key, value interface{}) bool {
		t.factoryBeanObjectCache.Delete(key)
		return true
	})
	t.factoryBeanInstanceCache.Range(func(key, value interface{}) bool {
		t.factoryBeanInstanceCache.Delete(key)
		return true
	})
	t.clearByTypeCache()
	return err
}

/**
Destroys the singleton, removing it from caches of factory beans and from manual singletons
*/
func (t *beanFactory) destroyNamedSingleton(name string) error {
	err := t.destroySingleton(name)
	t.factoryBeanObjectCache.Delete(name)
	t.factoryBeanInstanceCache.Delete(name)
	t.removeManualSingletonName(name)
	t.clearByTypeCache()
	return err
}

func (t *beanFactory) RegisterSingleton(name string, obj interface{}) error {
	if err := t.singletonRegistry.RegisterSingleton(name, obj); err != nil {
		return err
	}
	t.definitionMu.Lock()
	if _, ok := t.definitionMap[name]; !ok {
		exists := false
		for _, n := range t.manualSingletonNames {
			if n == name {
				exists = true
				break
			}
		}
		if !exists {
			names := make([]string, 0, len(t.manualSingletonNames)+1)
			names = append(names, t.manualSingletonNames...)
			t.manualSingletonNames = append(names, name)
		}
	}
	t.definitionMu.Unlock()
	t.clearByTypeCache()
	return nil
}

func (t *beanFactory) removeManualSingletonName(name string) {
	t.definitionMu.Lock()
	defer t.definitionMu.Unlock()
	for i, n := range t.manualSingletonNames {
		if n == name {
			names := make([]string, 0, len(t.manualSingletonNames)-1)
			names = append(names, t.manualSingletonNames[:i]...)
			t.manualSingletonNames = append(names, t.manualSingletonNames[i+1:]...)
			return
		}
	}
}

func (t *beanFactory) clearByTypeCache() {
	t.allBeanNamesByType.Range(func(key, value interface{}) bool {
		t.allBeanNamesByType.Delete(key)
		return true
	})
	t.singletonBeanNamesByType.Range(func(key, value interface{}) bool {
		t.singletonBeanNamesByType.Delete(key)
		return true
	})
}

/**
Returns the unique name of the inner bean, a counter suffix is added to names in use
*/
func (t *beanFactory) adaptInnerBeanName(innerName string) string {
	actualName := innerName
	for counter := 1; t.IsBeanNameInUse(actualName); counter++ {
		actualName = innerName + "#" + strconv.Itoa(counter)
	}
	return actualName
}

func (t *beanFactory) String() string {
	var out strings.Builder
	out.WriteString("beanFactory: defining beans [")
	out.WriteString(strings.Join(t.GetBeanDefinitionNames(), ","))
	out.WriteString("]")
	if parent := t.parentFactory(); parent != nil {
		out.WriteString("; parent: ")
		if s, ok := parent.(interface{ String() string }); ok {
			out.WriteString(s.String())
		} else {
			out.WriteString(reflect.TypeOf(parent).String())
		}
	}
	return out.String()
}

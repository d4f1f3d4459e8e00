/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"sync"
)

/**
	Holds singleton instances in three tiers, finished, early raw references and early factories,
	together with creation-in-progress owners, dependency edges and disposable beans.
 */

type singletonRegistry struct {

	/**
	Guards tiers mutations, the factory tier, creation owners and registration order
	*/
	mu   sync.Mutex
	cond *sync.Cond

	/**
	Finished singletons, readable without the lock
	*/
	singletonObjects sync.Map

	/**
	Early raw references, readable without the lock by the owner chain
	*/
	earlySingletonObjects sync.Map

	/**
	Early reference factories, under the lock
	*/
	singletonFactories map[string]ObjectFactory

	/**
	Chains creating singletons, name -> *creation, mutated under the lock
	*/
	singletonsCurrentlyInCreation sync.Map

	/**
	Names excluded from the in-creation check
	*/
	inCreationCheckExclusions map[string]bool

	/**
	Chain -> name of the singleton the chain waits for
	*/
	waitingFor map[*creation]string

	registeredSingletons nameSet

	singletonsCurrentlyInDestruction bool

	/**
	Disposable beans in registration order, guarded by its own lock
	*/
	disposableMu    sync.Mutex
	disposableBeans map[string]disposable
	disposableNames nameSet

	/**
	Dependency edges, guarded by its own lock
	*/
	dependentMu            sync.Mutex
	containedBeanMap       map[string]*nameSet
	dependentBeanMap       map[string]*nameSet
	dependenciesForBeanMap map[string]*nameSet
}

/**
Disposable bean of the registry
*/
type disposable interface {
	destroy() error
}

func newSingletonRegistry() *singletonRegistry {
	t := &singletonRegistry{
		singletonFactories:        make(map[string]ObjectFactory),
		inCreationCheckExclusions: make(map[string]bool),
		waitingFor:                make(map[*creation]string),
		disposableBeans:           make(map[string]disposable),
		containedBeanMap:          make(map[string]*nameSet),
		dependentBeanMap:          make(map[string]*nameSet),
		dependenciesForBeanMap:    make(map[string]*nameSet),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *singletonRegistry) RegisterSingleton(name string, obj interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.singletonObjects.Load(name); ok {
		return newBeanError(ErrAlreadyRegistered, name, "could not register object [%v] under bean name '%s': there is already object [%v] bound", obj, name, old)
	}
	t.addSingletonLocked(name, obj)
	return nil
}

func (t *singletonRegistry) addSingletonLocked(name string, obj interface{}) {
	if obj == nil {
		obj = nullBean
	}
	t.singletonObjects.Store(name, obj)
	delete(t.singletonFactories, name)
	t.earlySingletonObjects.Delete(name)
	t.registeredSingletons.add(name)
	t.cond.Broadcast()
}

/**
Registers the early reference factory of the singleton, unless it is finished already
*/
func (t *singletonRegistry) addSingletonFactory(name string, factory ObjectFactory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.singletonObjects.Load(name); !ok {
		t.singletonFactories[name] = factory
		t.earlySingletonObjects.Delete(name)
		t.registeredSingletons.add(name)
	}
}

/**
Returns the finished singleton, or the early reference if the chain is creating it.
Returns nil if not available yet.
*/
func (t *singletonRegistry) getSingleton(c *creation, name string, allowEarlyReference bool) (interface{}, error) {
	if obj, ok := t.singletonObjects.Load(name); ok {
		return obj, nil
	}
	if c == nil || !t.isOwner(c, name) {
		return nil, nil
	}
	if obj, ok := t.earlySingletonObjects.Load(name); ok {
		return obj, nil
	}
	if !allowEarlyReference {
		return nil, nil
	}
	return t.earlyReference(name)
}

/**
Returns the early reference of the singleton in creation, calling its early factory once.
Returns nil if the singleton exposes no early reference.
*/
func (t *singletonRegistry) earlyReference(name string) (interface{}, error) {
	t.mu.Lock()
	if obj, ok := t.singletonObjects.Load(name); ok {
		t.mu.Unlock()
		return obj, nil
	}
	if obj, ok := t.earlySingletonObjects.Load(name); ok {
		t.mu.Unlock()
		return obj, nil
	}
	factory, ok := t.singletonFactories[name]
	if !ok {
		t.mu.Unlock()
		return nil, nil
	}
	delete(t.singletonFactories, name)
	t.mu.Unlock()

	// the owner chain is either the caller or parked in a wait cycle, the factory runs outside the lock
	obj, err := factory()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.singletonFactories[name] = factory
		return nil, err
	}
	if obj == nil {
		obj = nullBean
	}
	t.earlySingletonObjects.Store(name, obj)
	return obj, nil
}

func (t *singletonRegistry) isOwner(c *creation, name string) bool {
	owner, ok := t.singletonsCurrentlyInCreation.Load(name)
	return ok && owner.(*creation) == c
}

/**
Returns the finished singleton or creates it with the factory. Concurrent chains requesting
the same singleton wait for the owner, re-entrant requests of the owner chain fail.
A chain closing a wait cycle gets the early reference of the parked owner.
*/
func (t *singletonRegistry) getOrCreateSingleton(c *creation, name string, factory func() (interface{}, error)) (interface{}, error) {

	t.mu.Lock()
	for {
		if obj, ok := t.singletonObjects.Load(name); ok {
			t.mu.Unlock()
			return obj, nil
		}
		if t.singletonsCurrentlyInDestruction {
			t.mu.Unlock()
			return nil, newBeanError(ErrCreationNotAllowed, name, "singleton bean creation not allowed while singletons of this factory are in destruction")
		}
		value, busy := t.singletonsCurrentlyInCreation.Load(name)
		if !busy || t.inCreationCheckExclusions[name] {
			break
		}
		owner := value.(*creation)
		if owner == c {
			t.mu.Unlock()
			return nil, currentlyInCreation(name)
		}
		if t.waitCycle(c, owner) {
			// the owner is parked until this chain finishes, its early reference closes the cycle
			t.mu.Unlock()
			obj, err := t.earlyReference(name)
			if err != nil {
				return nil, err
			}
			if obj == nil {
				return nil, currentlyInCreation(name)
			}
			logger().Debug("using early reference of singleton created by waiting chain", zap.String("bean", name))
			return obj, nil
		}
		t.waitingFor[c] = name
		t.cond.Wait()
		delete(t.waitingFor, c)
	}
	t.singletonsCurrentlyInCreation.Store(name, c)
	t.mu.Unlock()

	logger().Debug("creating shared instance of singleton bean", zap.String("bean", name))

	outermost := c.beginSuppress()
	obj, err := func() (obj interface{}, err error) {
		defer func() {
			t.mu.Lock()
			t.singletonsCurrentlyInCreation.Delete(name)
			if err == nil {
				t.addSingletonLocked(name, obj)
			}
			t.cond.Broadcast()
			t.mu.Unlock()
		}()
		return factory()
	}()
	if err != nil && hasKind(err, ErrImplicitlyAppearedSingleton) {
		if existing, ok := t.singletonObjects.Load(name); ok {
			c.endSuppress(outermost)
			return existing, nil
		}
	}
	if err != nil && outermost {
		err = c.attachSuppressed(err)
	}
	c.endSuppress(outermost)
	return obj, err
}

/**
Returns true if the owner chain waits, directly or transitively, for a singleton the chain creates
*/
func (t *singletonRegistry) waitCycle(c *creation, owner *creation) bool {
	visited := make(map[*creation]bool)
	for o := owner; o != nil && !visited[o]; {
		visited[o] = true
		name, waiting := t.waitingFor[o]
		if !waiting {
			return false
		}
		next, ok := t.singletonsCurrentlyInCreation.Load(name)
		if !ok {
			return false
		}
		o = next.(*creation)
		if o == c {
			return true
		}
	}
	return false
}

func (t *singletonRegistry) setCurrentlyInCreation(name string, inCreation bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inCreation {
		delete(t.inCreationCheckExclusions, name)
	} else {
		t.inCreationCheckExclusions[name] = true
	}
}

/**
Marks the singleton in creation by the chain without creating it, fails if finished or owned by any chain
*/
func (t *singletonRegistry) tryBeginCreation(c *creation, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.singletonObjects.Load(name); ok {
		return false
	}
	if _, busy := t.singletonsCurrentlyInCreation.Load(name); busy {
		return false
	}
	t.singletonsCurrentlyInCreation.Store(name, c)
	return true
}

func (t *singletonRegistry) endCreation(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.singletonsCurrentlyInCreation.Delete(name)
	t.cond.Broadcast()
}

func (t *singletonRegistry) isSingletonCurrentlyInCreation(name string) bool {
	_, ok := t.singletonsCurrentlyInCreation.Load(name)
	return ok
}

func (t *singletonRegistry) removeSingleton(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.singletonObjects.Delete(name)
	delete(t.singletonFactories, name)
	t.earlySingletonObjects.Delete(name)
	t.registeredSingletons.remove(name)
}

/**
Returns the finished singleton
*/
func (t *singletonRegistry) GetSingleton(name string) (interface{}, bool) {
	obj, ok := t.singletonObjects.Load(name)
	if ok && obj == nullBean {
		return nil, true
	}
	return obj, ok
}

func (t *singletonRegistry) ContainsSingleton(name string) bool {
	_, ok := t.singletonObjects.Load(name)
	return ok
}

/**
Returns names of registered singletons in registration order
*/
func (t *singletonRegistry) GetSingletonNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registeredSingletons.list()
}

func (t *singletonRegistry) GetSingletonCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registeredSingletons.len()
}

func (t *singletonRegistry) registerDisposableBean(name string, bean disposable) {
	t.disposableMu.Lock()
	defer t.disposableMu.Unlock()
	t.disposableBeans[name] = bean
	t.disposableNames.add(name)
}

/**
Registers containment of the inner bean, which implies the dependency of the outer bean on it
*/
func (t *singletonRegistry) registerContainedBean(containedBeanName, containingBeanName string) {
	t.dependentMu.Lock()
	set, ok := t.containedBeanMap[containingBeanName]
	if !ok {
		set = &nameSet{}
		t.containedBeanMap[containingBeanName] = set
	}
	added := set.add(containedBeanName)
	t.dependentMu.Unlock()
	if added {
		t.registerDependentBean(containedBeanName, containingBeanName)
	}
}

/**
Registers the dependent bean, destroyed before the bean itself
*/
func (t *singletonRegistry) registerDependentBean(beanName, dependentBeanName string) {
	t.dependentMu.Lock()
	defer t.dependentMu.Unlock()
	dependents, ok := t.dependentBeanMap[beanName]
	if !ok {
		dependents = &nameSet{}
		t.dependentBeanMap[beanName] = dependents
	}
	if !dependents.add(dependentBeanName) {
		return
	}
	dependencies, ok := t.dependenciesForBeanMap[dependentBeanName]
	if !ok {
		dependencies = &nameSet{}
		t.dependenciesForBeanMap[dependentBeanName] = dependencies
	}
	dependencies.add(beanName)
}

/**
Returns true if the dependent bean depends on the bean, directly or transitively
*/
func (t *singletonRegistry) isDependent(beanName, dependentBeanName string) bool {
	t.dependentMu.Lock()
	defer t.dependentMu.Unlock()
	return t.isDependentLocked(beanName, dependentBeanName, make(map[string]bool))
}

func (t *singletonRegistry) isDependentLocked(beanName, dependentBeanName string, visited map[string]bool) bool {
	if visited[beanName] {
		return false
	}
	visited[beanName] = true
	dependents, ok := t.dependentBeanMap[beanName]
	if !ok {
		return false
	}
	if dependents.contains(dependentBeanName) {
		return true
	}
	for _, transitive := range dependents.list() {
		if t.isDependentLocked(transitive, dependentBeanName, visited) {
			return true
		}
	}
	return false
}

func (t *singletonRegistry) hasDependentBean(beanName string) bool {
	t.dependentMu.Lock()
	defer t.dependentMu.Unlock()
	_, ok := t.dependentBeanMap[beanName]
	return ok
}

func (t *singletonRegistry) dependentBeans(beanName string) []string {
	t.dependentMu.Lock()
	defer t.dependentMu.Unlock()
	if set, ok := t.dependentBeanMap[beanName]; ok {
		return set.list()
	}
	return nil
}

func (t *singletonRegistry) dependenciesForBean(beanName string) []string {
	t.dependentMu.Lock()
	defer t.dependentMu.Unlock()
	if set, ok := t.dependenciesForBeanMap[beanName]; ok {
		return set.list()
	}
	return nil
}

/**
Destroys all singletons in reverse registration order of disposable beans
*/
func (t *singletonRegistry) destroySingletons() error {

	t.mu.Lock()
	t.singletonsCurrentlyInDestruction = true
	t.mu.Unlock()

	t.disposableMu.Lock()
	names := t.disposableNames.list()
	t.disposableMu.Unlock()

	var err error
	visited := make(map[string]bool)
	for j := len(names) - 1; j >= 0; j-- {
		err = multierr.Append(err, t.destroySingletonVisited(names[j], visited))
	}

	t.dependentMu.Lock()
	t.containedBeanMap = make(map[string]*nameSet)
	t.dependentBeanMap = make(map[string]*nameSet)
	t.dependenciesForBeanMap = make(map[string]*nameSet)
	t.dependentMu.Unlock()

	t.mu.Lock()
	t.singletonObjects.Range(func(key, value interface{}) bool {
		t.singletonObjects.Delete(key)
		return true
	})
	t.earlySingletonObjects.Range(func(key, value interface{}) bool {
		t.earlySingletonObjects.Delete(key)
		return true
	})
	t.singletonFactories = make(map[string]ObjectFactory)
	t.registeredSingletons = nameSet{}
	t.singletonsCurrentlyInDestruction = false
	t.cond.Broadcast()
	t.mu.Unlock()

	return err
}

func (t *singletonRegistry) destroySingleton(name string) error {
	return t.destroySingletonVisited(name, make(map[string]bool))
}

func (t *singletonRegistry) destroySingletonVisited(name string, visited map[string]bool) error {
	if visited[name] {
		return nil
	}
	visited[name] = true

	t.removeSingleton(name)

	t.disposableMu.Lock()
	bean := t.disposableBeans[name]
	delete(t.disposableBeans, name)
	t.disposableNames.remove(name)
	t.disposableMu.Unlock()

	return t.destroyBean(name, bean, visited)
}

/**
Destroys dependents first, then the bean, then beans it contains
*/
func (t *singletonRegistry) destroyBean(name string, bean disposable, visited map[string]bool) error {

	t.dependentMu.Lock()
	var dependents []string
	if set, ok := t.dependentBeanMap[name]; ok {
		dependents = set.list()
		delete(t.dependentBeanMap, name)
	}
	t.dependentMu.Unlock()

	var err error
	for _, dependent := range dependents {
		err = multierr.Append(err, t.destroySingletonVisited(dependent, visited))
	}

	if bean != nil {
		if e := bean.destroy(); e != nil {
			logger().Warn("destruction of bean failed", zap.String("bean", name), zap.Error(e))
			err = multierr.Append(err, e)
		}
	}

	t.dependentMu.Lock()
	var contained []string
	if set, ok := t.containedBeanMap[name]; ok {
		contained = set.list()
		delete(t.containedBeanMap, name)
	}
	t.dependentMu.Unlock()

	for _, inner := range contained {
		err = multierr.Append(err, t.destroySingletonVisited(inner, visited))
	}

	t.dependentMu.Lock()
	for key, set := range t.dependentBeanMap {
		set.remove(name)
		if set.len() == 0 {
			delete(t.dependentBeanMap, key)
		}
	}
	delete(t.dependenciesForBeanMap, name)
	t.dependentMu.Unlock()

	return err
}

/**
Insertion ordered set of names
*/

type nameSet struct {
	names []string
	index map[string]int
}

func (t *nameSet) add(name string) bool {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[name]; ok {
		return false
	}
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	return true
}

func (t *nameSet) remove(name string) {
	i, ok := t.index[name]
	if !ok {
		return
	}
	t.names = append(t.names[:i], t.names[i+1:]...)
	delete(t.index, name)
	for j := i; j < len(t.names); j++ {
		t.index[t.names[j]] = j
	}
}

func (t *nameSet) contains(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *nameSet) len() int {
	return len(t.names)
}

func (t *nameSet) list() []string {
	return append([]string(nil), t.names...)
}

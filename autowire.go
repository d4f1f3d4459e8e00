/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"reflect"
	"strings"
)

/**
Creates the bean instance, populates it and applies post-processors. Entry point of every creation,
singletons come here through the registry, prototypes and custom scopes directly.
*/
func (t *beanFactory) createBean(c *creation, beanName string, mbd *RootBeanDefinition, args []interface{}) (interface{}, error) {
	logger().Debug("creating instance of bean", zap.String("bean", beanName))

	class, err := t.resolveBeanClass(mbd, beanName)
	if err != nil {
		return nil, err
	}

	if class != nil && mbd.MethodOverrides.Len() > 0 {
		if err := mbd.MethodOverrides.validate(class); err != nil {
			return nil, newBeanError(ErrValidationFailed, beanName, "validation of method overrides failed").withCause(err).withResource(mbd.ResourceDescription)
		}
	}

	bean, err := t.resolveBeforeInstantiation(c, beanName, mbd)
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "BeanPostProcessor before instantiation of bean failed", err)
	}
	if bean != nil {
		return bean, nil
	}

	bean, err = t.doCreateBean(c, beanName, mbd, args)
	if err != nil {
		return nil, err
	}
	logger().Debug("finished creating instance of bean", zap.String("bean", beanName))
	return bean, nil
}

/**
Gives instantiation aware post-processors the chance to return a surrogate instead of the bean
*/
func (t *beanFactory) resolveBeforeInstantiation(c *creation, beanName string, mbd *RootBeanDefinition) (interface{}, error) {
	mbd.postMu.Lock()
	resolved := mbd.beforeInstantiationResolved
	mbd.postMu.Unlock()
	if resolved != nil && !*resolved {
		return nil, nil
	}

	var bean interface{}
	processors := t.postProcessors().instantiationAware
	if !mbd.Synthetic && len(processors) > 0 {
		if targetType := t.determineTargetType(c, beanName, mbd); targetType != nil {
			for _, p := range processors {
				obj, err := p.PostProcessBeforeInstantiation(targetType, beanName)
				if err != nil {
					return nil, err
				}
				if obj != nil {
					bean = obj
					break
				}
			}
			if bean != nil {
				var err error
				if bean, err = t.applyBeanPostProcessorsAfterInitialization(bean, beanName); err != nil {
					return nil, err
				}
			}
		}
	}

	found := bean != nil
	mbd.postMu.Lock()
	mbd.beforeInstantiationResolved = &found
	mbd.postMu.Unlock()
	return bean, nil
}

func (t *beanFactory) doCreateBean(c *creation, beanName string, mbd *RootBeanDefinition, args []interface{}) (interface{}, error) {

	var instance interface{}
	if mbd.IsSingleton() {
		if cached, ok := t.factoryBeanInstanceCache.LoadAndDelete(beanName); ok {
			instance = cached
		}
	}
	if instance == nil {
		var err error
		if instance, err = t.createBeanInstance(c, beanName, mbd, args); err != nil {
			return nil, err
		}
	}
	if instance == nil {
		return nil, nil
	}
	mbd.setResolvedTargetType(reflect.TypeOf(instance))

	if err := t.applyMergedBeanDefinitionPostProcessors(mbd, reflect.TypeOf(instance), beanName); err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "post-processing of merged bean definition failed", err)
	}

	earlySingletonExposure := mbd.IsSingleton() && t.allowCircularReferences.Load() && t.isOwner(c, beanName)
	if earlySingletonExposure {
		logger().Debug("eagerly caching bean to allow for resolving potential circular references", zap.String("bean", beanName))
		raw := instance
		t.addSingletonFactory(beanName, func() (interface{}, error) {
			return t.getEarlyBeanReference(beanName, mbd, raw)
		})
	}

	exposed, err := func() (interface{}, error) {
		t.bind(beanName, c)
		defer t.unbind(beanName, c)
		if err := t.populateBean(c, beanName, mbd, newBeanWrapper(instance, t.converter())); err != nil {
			return nil, err
		}
		return t.initializeBean(beanName, instance, mbd)
	}()
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "initialization of bean failed", err)
	}

	if earlySingletonExposure {
		early, err := t.getSingleton(c, beanName, false)
		if err != nil {
			return nil, err
		}
		if early != nil {
			if sameObject(exposed, instance) {
				exposed = unwrapNull(early)
			} else if !t.allowRawInjectionDespiteWrapping.Load() && t.hasDependentBean(beanName) {
				var actualDependents []string
				for _, dependent := range t.dependentBeans(beanName) {
					if !t.removeSingletonIfCreatedForTypeCheckOnly(dependent) {
						actualDependents = append(actualDependents, dependent)
					}
				}
				if len(actualDependents) > 0 {
					e := newBeanError(ErrRawInjectionConflict, beanName, "bean with name '%s' has been injected into other beans [%s] in its raw version as part of a circular reference, but has eventually been wrapped: other beans do not use the final version of the bean", beanName, strings.Join(actualDependents, ","))
					e.CandidateNames = actualDependents
					return nil, e.withResource(mbd.ResourceDescription)
				}
			}
		}
	}

	if err := t.registerDisposableBeanIfNecessary(beanName, instance, mbd); err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "invalid destruction signature", err)
	}
	return exposed, nil
}

func (t *beanFactory) applyMergedBeanDefinitionPostProcessors(mbd *RootBeanDefinition, class reflect.Type, beanName string) error {
	mbd.postMu.Lock()
	defer mbd.postMu.Unlock()
	if mbd.postProcessed {
		return nil
	}
	for _, p := range t.postProcessors().mergedDefinition {
		if err := p.PostProcessMergedBeanDefinition(mbd, class, beanName); err != nil {
			return err
		}
	}
	mbd.postProcessed = true
	return nil
}

/**
Returns the reference exposed to beans requesting the singleton while it is in creation
*/
func (t *beanFactory) getEarlyBeanReference(beanName string, mbd *RootBeanDefinition, bean interface{}) (interface{}, error) {
	exposed := bean
	if mbd.Synthetic {
		return exposed, nil
	}
	for _, p := range t.postProcessors().smartInstantiationAware {
		obj, err := p.GetEarlyBeanReference(exposed, beanName)
		if err != nil {
			return nil, wrapCreation(beanName, mbd.ResourceDescription, "early bean reference post-processing failed", err)
		}
		if obj != nil {
			exposed = obj
		}
	}
	return exposed, nil
}

/**
Removes the singleton created only for a type check, returns false if the singleton is in real use
*/
func (t *beanFactory) removeSingletonIfCreatedForTypeCheckOnly(beanName string) bool {
	if _, ok := t.alreadyCreated.Load(beanName); ok {
		return false
	}
	t.removeSingleton(beanName)
	return true
}

/**
Creates the raw instance by the supplier, the factory method, the constructor resolution or the default constructor
*/
func (t *beanFactory) createBeanInstance(c *creation, beanName string, mbd *RootBeanDefinition, args []interface{}) (interface{}, error) {
	class, err := t.resolveBeanClass(mbd, beanName)
	if err != nil {
		return nil, err
	}

	if mbd.Supplier != nil {
		return t.obtainFromSupplier(c, beanName, mbd)
	}

	if mbd.FactoryMethodName != "" {
		return t.instantiateUsingFactoryMethod(c, beanName, mbd, args)
	}

	if class == nil {
		return nil, newBeanError(ErrBeanCreation, beanName, "bean definition has neither class, nor factory method, nor supplier").withResource(mbd.ResourceDescription)
	}

	if len(args) == 0 {
		if ex, resolved := mbd.resolvedConstructor(); ex != nil {
			if resolved {
				return t.autowireConstructor(c, beanName, mbd, nil, nil)
			}
			return t.instantiateBean(beanName, mbd, ex)
		}
	}

	ctors, err := t.determineConstructorsFromPostProcessors(class, beanName)
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "determination of candidate constructors failed", err)
	}
	if ctors != nil || mbd.AutowireMode == AutowireConstructor || !mbd.ConstructorArgs.IsEmpty() || len(args) > 0 {
		return t.autowireConstructor(c, beanName, mbd, ctors, args)
	}

	var defaultCtor *Executable
	var registered []*Executable
	for _, ctor := range t.constructorsOf(class) {
		if ctor.ParamCount() == 0 && defaultCtor == nil {
			defaultCtor = ctor
		}
		if !ctor.Default {
			registered = append(registered, ctor)
		}
	}

	// the only registered constructor is preferred over the implicit default one
	if len(registered) == 1 && registered[0].ParamCount() > 0 {
		return t.autowireConstructor(c, beanName, mbd, registered, nil)
	}

	if defaultCtor == nil {
		return nil, newBeanError(ErrNoUsableConstructor, beanName, "no default constructor found for class '%v'", class).withResource(mbd.ResourceDescription)
	}
	return t.instantiateBean(beanName, mbd, defaultCtor)
}

func (t *beanFactory) constructorsOf(class reflect.Type) []*Executable {
	loader := t.ClassLoader()
	if loader == nil {
		if ctor := defaultConstructor(class); ctor != nil {
			return []*Executable{ctor}
		}
		return nil
	}
	return loader.Constructors(class)
}

func (t *beanFactory) obtainFromSupplier(c *creation, beanName string, mbd *RootBeanDefinition) (obj interface{}, err error) {
	c.pushCreated(beanName)
	defer c.popCreated()

	defer func() {
		if r := recover(); r != nil {
			err = newBeanError(ErrBeanCreation, beanName, "instance supplier recovered with error %v", r).withResource(mbd.ResourceDescription)
		}
	}()

	obj, err = mbd.Supplier(&chainFactory{beanFactory: t, chain: c})
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "instantiation of supplied bean failed", err)
	}
	return obj, nil
}

/**
Instantiates the bean with the constructor without parameters
*/
func (t *beanFactory) instantiateBean(beanName string, mbd *RootBeanDefinition, ctor *Executable) (interface{}, error) {
	obj, err := t.instantiate(beanName, mbd, ctor, reflect.Value{}, nil)
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, "instantiation of bean failed", err)
	}
	mbd.argsMu.Lock()
	if mbd.resolvedConstructorOrFactoryMethod == nil {
		mbd.resolvedConstructorOrFactoryMethod = ctor
	}
	mbd.argsMu.Unlock()
	return obj, nil
}

func (t *beanFactory) determineConstructorsFromPostProcessors(class reflect.Type, beanName string) ([]*Executable, error) {
	for _, p := range t.postProcessors().smartInstantiationAware {
		ctors, err := p.DetermineCandidateConstructors(class, beanName)
		if err != nil {
			return nil, err
		}
		if ctors != nil {
			return ctors, nil
		}
	}
	return nil, nil
}

/**
Populates the bean instance with property values from the definition and autowiring
*/
func (t *beanFactory) populateBean(c *creation, beanName string, mbd *RootBeanDefinition, bw *beanWrapper) error {
	processors := t.postProcessors()

	if !mbd.Synthetic {
		for _, p := range processors.instantiationAware {
			proceed, err := p.PostProcessAfterInstantiation(bw.instance, beanName)
			if err != nil {
				return wrapCreation(beanName, mbd.ResourceDescription, "post-processing after instantiation failed", err)
			}
			if !proceed {
				return nil
			}
		}
	}

	// property values of the definition are shared, so conversion results cached on them survive the instance
	pvs := &PropertyValues{list: append([]*PropertyValue(nil), mbd.Properties.list...)}

	switch mbd.AutowireMode {
	case AutowireByName:
		if err := t.autowireByName(c, beanName, mbd, bw, pvs); err != nil {
			return err
		}
	case AutowireByType:
		if err := t.autowireByType(c, beanName, mbd, bw, pvs); err != nil {
			return err
		}
	}

	if !mbd.Synthetic {
		for _, p := range processors.instantiationAware {
			result, err := p.PostProcessProperties(pvs, bw.instance, beanName)
			if err != nil {
				return wrapCreation(beanName, mbd.ResourceDescription, "post-processing of properties failed", err)
			}
			if result == nil {
				return nil
			}
			pvs = result
		}
	}

	if mbd.DependencyCheck != DependencyCheckNone {
		if err := t.checkDependencies(beanName, mbd, bw, pvs); err != nil {
			return err
		}
	}

	return t.applyPropertyValues(c, beanName, mbd, bw, pvs)
}

func (t *beanFactory) autowireByName(c *creation, beanName string, mbd *RootBeanDefinition, bw *beanWrapper, pvs *PropertyValues) error {
	for _, pd := range t.unsatisfiedNonSimpleProperties(mbd, bw, pvs) {
		if !t.ContainsBean(pd.name) {
			logger().Debug("not autowiring property by name: no matching bean found", zap.String("bean", beanName), zap.String("property", pd.name))
			continue
		}
		bean, err := t.doGetBean(c, pd.name, nil, nil, false)
		if err != nil {
			return newBeanError(ErrUnsatisfiedDependency, beanName, "unsatisfied dependency expressed through bean property '%s'", pd.name).withCause(err).withResource(mbd.ResourceDescription)
		}
		pvs.Add(pd.name, bean)
		t.RegisterDependentBean(pd.name, beanName)
		logger().Debug("added autowiring by name", zap.String("bean", beanName), zap.String("property", pd.name))
	}
	return nil
}

func (t *beanFactory) autowireByType(c *creation, beanName string, mbd *RootBeanDefinition, bw *beanWrapper, pvs *PropertyValues) error {
	// priority ordered post-processors must not trigger eager creation of other beans
	_, priorityOrdered := bw.instance.(PriorityOrderedBean)
	for _, pd := range t.unsatisfiedNonSimpleProperties(mbd, bw, pvs) {
		if pd.typ == interfaceClass {
			continue
		}
		desc := &DependencyDescriptor{
			Type:           pd.typ,
			Name:           pd.name,
			DeclaringClass: bw.class(),
			ParameterIndex: -1,
			Eager:          !priorityOrdered,
		}
		var autowiredNames []string
		obj, err := t.resolveDependency(c, desc, beanName, &autowiredNames)
		if err != nil {
			return newBeanError(ErrUnsatisfiedDependency, beanName, "unsatisfied dependency expressed through bean property '%s'", pd.name).withCause(err).withResource(mbd.ResourceDescription)
		}
		if obj != nil {
			pvs.Add(pd.name, obj)
		}
		for _, name := range autowiredNames {
			t.RegisterDependentBean(name, beanName)
		}
	}
	return nil
}

/**
Returns writable properties that have no value yet, are not simple and not excluded from autowiring
*/
func (t *beanFactory) unsatisfiedNonSimpleProperties(mbd *RootBeanDefinition, bw *beanWrapper, pvs *PropertyValues) []*propertyDescriptor {
	var list []*propertyDescriptor
	for _, pd := range bw.properties() {
		if !pd.writable() || pd.tagged || isSimpleType(pd.typ) || pd.typ.Kind() == reflect.Func {
			continue
		}
		if pvs.Contains(pd.name) || (pd.fieldName != "" && pvs.Contains(pd.fieldName)) {
			continue
		}
		if t.isExcludedFromDependencyCheck(mbd, bw.class(), pd) || !bw.isUnset(pd) {
			continue
		}
		list = append(list, pd)
	}
	return list
}

func (t *beanFactory) isExcludedFromDependencyCheck(mbd *RootBeanDefinition, class reflect.Type, pd *propertyDescriptor) bool {
	if t.isIgnoredDependencyType(pd.typ) || t.isSetterDefinedInIgnoredInterface(class, pd) {
		return true
	}
	if pd.fieldName != "" {
		if _, ok := mbd.MethodOverrides.Get(pd.fieldName); ok {
			return true
		}
	}
	return false
}

/**
Fails on the first writable property left unset that the dependency check level covers
*/
func (t *beanFactory) checkDependencies(beanName string, mbd *RootBeanDefinition, bw *beanWrapper, pvs *PropertyValues) error {
	for _, pd := range bw.properties() {
		if !pd.writable() || pd.tagged || t.isExcludedFromDependencyCheck(mbd, bw.class(), pd) {
			continue
		}
		if pvs.Contains(pd.name) || (pd.fieldName != "" && pvs.Contains(pd.fieldName)) || !bw.isUnset(pd) {
			continue
		}
		simple := isSimpleType(pd.typ)
		unsatisfied := mbd.DependencyCheck == DependencyCheckAll ||
			(simple && mbd.DependencyCheck == DependencyCheckSimple) ||
			(!simple && mbd.DependencyCheck == DependencyCheckObjects)
		if unsatisfied {
			return newBeanError(ErrUnsatisfiedDependency, beanName, "unsatisfied dependency expressed through bean property '%s': set this property value or disable dependency checking for this bean", pd.name).withResource(mbd.ResourceDescription)
		}
	}
	return nil
}

/**
Resolves and applies property values. Values of the definition that convert to the same result
for every instance keep the converted value for the next instance.
*/
func (t *beanFactory) applyPropertyValues(c *creation, beanName string, mbd *RootBeanDefinition, bw *beanWrapper, pvs *PropertyValues) error {
	if pvs.IsEmpty() {
		return nil
	}

	resolver := newValueResolver(t, c, beanName, mbd)
	allConverted := true
	for _, pv := range pvs.List() {

		mbd.propsMu.Lock()
		converted, convertedValue := pv.converted, pv.convertedValue
		mbd.propsMu.Unlock()

		if converted {
			if err := bw.setConvertedValue(pv.Name, convertedValue); err != nil {
				return wrapCreation(beanName, mbd.ResourceDescription, "error setting property values", err)
			}
			continue
		}

		if !bw.isWritable(pv.Name) {
			if pv.Optional {
				logger().Debug("ignoring optional property that is not writable", zap.String("bean", beanName), zap.String("property", pv.Name))
				continue
			}
			_, _, err := bw.resolvePath(pv.Name)
			if err == nil {
				err = newBeanError(ErrInvalidProperty, beanName, "bean property '%s' is not writable", pv.Name)
			}
			return wrapCreation(beanName, mbd.ResourceDescription, "error setting property values", err)
		}

		original := pv.Value
		resolved, err := resolver.resolve(pv.String(), original)
		if err != nil {
			return wrapCreation(beanName, mbd.ResourceDescription, fmt.Sprintf("error resolving %v", pv), err)
		}

		v, err := bw.convertForProperty(resolved, pv.Name)
		if err != nil {
			return wrapCreation(beanName, mbd.ResourceDescription, "error setting property values", err)
		}

		if t.isStaticConversion(original, resolved) {
			mbd.propsMu.Lock()
			pv.setConverted(v)
			mbd.propsMu.Unlock()
		} else {
			allConverted = false
		}

		if err := bw.setConvertedValue(pv.Name, v); err != nil {
			return wrapCreation(beanName, mbd.ResourceDescription, "error setting property values", err)
		}
	}
	if allConverted {
		pvs.setConverted()
	}
	return nil
}

/**
Returns true if the conversion result does not depend on the instance: plain values resolved to themselves
and static typed strings
*/
func (t *beanFactory) isStaticConversion(original, resolved interface{}) bool {
	if isDynamicValue(original) {
		return false
	}
	if s, ok := original.(string); ok && strings.Contains(s, "${") {
		return false
	}
	if _, ok := original.(*TypedStringValue); ok {
		return true
	}
	if original != nil && isNillable(reflect.TypeOf(original)) {
		// shared mutable values are applied as is for every instance
		return false
	}
	return sameObject(original, resolved)
}

/**
Runs aware callbacks, post-processors and init methods
*/
func (t *beanFactory) initializeBean(beanName string, bean interface{}, mbd *RootBeanDefinition) (interface{}, error) {
	t.invokeAwareMethods(beanName, bean)

	synthetic := mbd != nil && mbd.Synthetic
	wrapped := bean
	var err error

	if !synthetic {
		if wrapped, err = t.applyBeanPostProcessorsBeforeInitialization(wrapped, beanName); err != nil {
			return nil, err
		}
	}

	if err := t.invokeInitMethods(beanName, wrapped, mbd); err != nil {
		resource := ""
		if mbd != nil {
			resource = mbd.ResourceDescription
		}
		return nil, wrapCreation(beanName, resource, "invocation of init method failed", err)
	}

	if !synthetic {
		if wrapped, err = t.applyBeanPostProcessorsAfterInitialization(wrapped, beanName); err != nil {
			return nil, err
		}
	}
	return wrapped, nil
}

func (t *beanFactory) invokeAwareMethods(beanName string, bean interface{}) {
	if aware, ok := bean.(BeanNameAware); ok {
		aware.SetBeanName(beanName)
	}
	if aware, ok := bean.(ClassLoaderAware); ok {
		aware.SetClassLoader(t.ClassLoader())
	}
	if aware, ok := bean.(BeanFactoryAware); ok {
		aware.SetBeanFactory(t)
	}
}

func (t *beanFactory) applyBeanPostProcessorsBeforeInitialization(existing interface{}, beanName string) (interface{}, error) {
	result := existing
	for _, p := range t.postProcessors().beanPostProcessors {
		current, err := p.PostProcessBeforeInitialization(result, beanName)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return result, nil
		}
		result = current
	}
	return result, nil
}

func (t *beanFactory) applyBeanPostProcessorsAfterInitialization(existing interface{}, beanName string) (interface{}, error) {
	result := existing
	for _, p := range t.postProcessors().beanPostProcessors {
		current, err := p.PostProcessAfterInitialization(result, beanName)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return result, nil
		}
		result = current
	}
	return result, nil
}

/**
Calls PostConstruct of InitializingBean, then the init method of the definition
*/
func (t *beanFactory) invokeInitMethods(beanName string, bean interface{}, mbd *RootBeanDefinition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("init of bean '%s' recovered with error %v", beanName, r)
		}
	}()

	initializing, isInitializing := bean.(InitializingBean)
	if isInitializing {
		logger().Debug("invoking PostConstruct() on bean", zap.String("bean", beanName))
		if err := initializing.PostConstruct(); err != nil {
			return errors.Wrapf(err, "PostConstruct() of bean '%s'", beanName)
		}
	}

	if mbd == nil || mbd.InitMethodName == "" || (isInitializing && mbd.InitMethodName == "PostConstruct") {
		return nil
	}

	m, ok := lifecycleMethodOf(bean, mbd.InitMethodName)
	if !ok {
		if mbd.InitMethodOptional {
			logger().Debug("no default init method found", zap.String("bean", beanName), zap.String("method", mbd.InitMethodName))
			return nil
		}
		return newBeanError(ErrNoSuchInitMethod, beanName, "could not find an init method named '%s' on bean with name '%s'", mbd.InitMethodName, beanName)
	}
	logger().Debug("invoking init method on bean", zap.String("bean", beanName), zap.String("method", mbd.InitMethodName))
	if err := invokeLifecycleMethod(m); err != nil {
		return errors.Wrapf(err, "init method '%s' of bean '%s'", mbd.InitMethodName, beanName)
	}
	return nil
}

/**
Registers destruction callbacks of singletons and beans of custom scopes, prototypes are never tracked
*/
func (t *beanFactory) registerDisposableBeanIfNecessary(beanName string, bean interface{}, mbd *RootBeanDefinition) error {
	if mbd.IsPrototype() || !t.requiresDestruction(bean, mbd) {
		return nil
	}
	adapter, err := newDisposableBeanAdapter(bean, beanName, mbd, t.postProcessors().destructionAware)
	if err != nil {
		return err
	}
	if mbd.IsSingleton() {
		t.registerDisposableBean(beanName, adapter)
		return nil
	}
	scope, ok := t.GetRegisteredScope(mbd.Scope)
	if !ok {
		return newBeanError(ErrNoSuchScope, beanName, "no scope registered for scope name '%s'", mbd.Scope)
	}
	scope.RegisterDestructionCallback(beanName, func() {
		if err := adapter.destroy(); err != nil {
			logger().Warn("destruction of scoped bean failed", zap.String("bean", beanName), zap.Error(err))
		}
	})
	return nil
}

func (t *beanFactory) requiresDestruction(bean interface{}, mbd *RootBeanDefinition) bool {
	if bean == nil {
		return false
	}
	if hasDestroyMethod(bean, mbd) {
		return true
	}
	for _, p := range t.postProcessors().destructionAware {
		if p.RequiresDestruction(bean) {
			return true
		}
	}
	return false
}

func (t *beanFactory) CreateBean(class reflect.Type) (interface{}, error) {
	if class == nil {
		return nil, errors.New("class must not be nil")
	}
	bd := NewBeanDefinition(class)
	bd.Scope = ScopePrototype
	c, leave := t.enterChain("")
	defer leave()
	obj, err := t.createBean(c, class.String(), newRootBeanDefinition(bd), nil)
	return unwrapNull(obj), err
}

func (t *beanFactory) AutowireBean(existing interface{}) error {
	if existing == nil {
		return errors.New("existing bean must not be nil")
	}
	class := reflect.TypeOf(existing)
	bd := NewBeanDefinition(class)
	bd.Scope = ScopePrototype
	return t.populateExisting(class.String(), newRootBeanDefinition(bd), existing)
}

func (t *beanFactory) AutowireBeanProperties(existing interface{}, mode AutowireMode, dependencyCheck bool) error {
	if existing == nil {
		return errors.New("existing bean must not be nil")
	}
	if mode == AutowireConstructor {
		return errors.New("autowire by constructor is not supported for existing bean instance")
	}
	class := reflect.TypeOf(existing)
	bd := NewBeanDefinition(class)
	bd.Scope = ScopePrototype
	bd.AutowireMode = mode
	if dependencyCheck {
		bd.DependencyCheck = DependencyCheckObjects
	}
	return t.populateExisting(class.String(), newRootBeanDefinition(bd), existing)
}

func (t *beanFactory) populateExisting(beanName string, mbd *RootBeanDefinition, existing interface{}) error {
	c, leave := t.enterChain("")
	defer leave()
	t.bind(beanName, c)
	defer t.unbind(beanName, c)
	return t.populateBean(c, beanName, mbd, newBeanWrapper(existing, t.converter()))
}

func (t *beanFactory) InitializeBean(existing interface{}, beanName string) (interface{}, error) {
	return t.initializeBean(beanName, existing, nil)
}

func (t *beanFactory) DestroyBean(existing interface{}) error {
	if existing == nil {
		return nil
	}
	return newObjectDisposableAdapter(existing, t.postProcessors().destructionAware).destroy()
}

/**
Destroys the bean of the custom scope, removing it from the scope
*/
func (t *beanFactory) DestroyScopedBean(beanName string) error {
	mbd, err := t.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return err
	}
	if mbd.IsSingleton() || mbd.IsPrototype() {
		return errors.Errorf("bean name '%s' does not correspond to an object in a mutable scope", beanName)
	}
	scope, ok := t.GetRegisteredScope(mbd.Scope)
	if !ok {
		return newBeanError(ErrNoSuchScope, beanName, "no scope registered for scope name '%s'", mbd.Scope)
	}
	bean, ok := scope.Remove(beanName)
	if !ok || bean == nil {
		return nil
	}
	adapter, err := newDisposableBeanAdapter(bean, beanName, mbd, t.postProcessors().destructionAware)
	if err != nil {
		return err
	}
	return adapter.destroy()
}

/**
Resolves the injection point on the creation chain of the requesting bean, if it is in creation
*/
func (t *beanFactory) ResolveDependency(descriptor *DependencyDescriptor, requestingBeanName string) (interface{}, []string, error) {
	c, leave := t.enterChain(requestingBeanName)
	defer leave()
	var autowiredNames []string
	obj, err := t.resolveDependency(c, descriptor, requestingBeanName, &autowiredNames)
	return obj, autowiredNames, err
}

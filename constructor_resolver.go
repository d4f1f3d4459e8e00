/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"go.uber.org/zap"
	"math"
	"reflect"
	"sort"
)

/**
Arguments prepared for one candidate constructor or factory method
*/

type argumentsHolder struct {
	raw       []interface{}
	arguments []reflect.Value

	/**
	Unresolved values cached on the definition when the arguments have to be resolved per instance
	*/
	prepared []interface{}

	resolveNecessary bool
}

func newArgumentsHolder(n int) *argumentsHolder {
	return &argumentsHolder{
		raw:       make([]interface{}, n),
		arguments: make([]reflect.Value, n),
		prepared:  make([]interface{}, n),
	}
}

/**
Weight of the match, the lower the better. Exact types weigh nothing, interface matches a little,
the empty interface more, converted values the most. Strict resolution only tells assignable raw values from converted ones.
*/
func (t *argumentsHolder) typeDifferenceWeight(paramTypes []reflect.Type, lenient bool) int {
	weight := 0
	for i, typ := range paramTypes {
		raw := t.raw[i]
		var diff int
		switch {
		case raw == nil:
			diff = 0
		case reflect.TypeOf(raw) == typ:
			diff = 0
		case reflect.TypeOf(raw).AssignableTo(typ):
			diff = 1
			if typ.Kind() == reflect.Interface && typ.NumMethod() == 0 {
				diff = 2
			}
		default:
			diff = 4
		}
		if !lenient {
			if diff == 4 {
				return math.MaxInt32 - 512
			}
			continue
		}
		weight += diff
	}
	if !lenient {
		return math.MaxInt32 - 1024
	}
	return weight
}

func (t *argumentsHolder) storeCache(mbd *RootBeanDefinition, ex *Executable) {
	mbd.argsMu.Lock()
	defer mbd.argsMu.Unlock()
	mbd.resolvedConstructorOrFactoryMethod = ex
	mbd.constructorArgumentsResolved = true
	if t.resolveNecessary {
		mbd.preparedConstructorArguments = t.prepared
		mbd.resolvedConstructorArguments = nil
	} else {
		mbd.resolvedConstructorArguments = t.arguments
		mbd.preparedConstructorArguments = nil
	}
}

/**
Sorts candidates with more parameters first
*/
func sortCandidates(candidates []*Executable) []*Executable {
	list := append([]*Executable(nil), candidates...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ParamCount() > list[j].ParamCount()
	})
	return list
}

/**
Instantiates the bean with the best matching constructor. Candidates are the ones chosen by post-processors
or all constructors of the class. Resolved constructor and arguments are cached on the definition.
*/
func (t *beanFactory) autowireConstructor(c *creation, beanName string, mbd *RootBeanDefinition, chosenCtors []*Executable, explicitArgs []interface{}) (interface{}, error) {

	if len(explicitArgs) == 0 {
		ex, args, err := t.cachedArguments(c, beanName, mbd)
		if err != nil {
			return nil, err
		}
		if ex != nil && !mbd.isFactoryMethod(ex) {
			return t.instantiateWith(beanName, mbd, ex, reflect.Value{}, args)
		}
	}

	candidates := chosenCtors
	if candidates == nil {
		class := mbd.beanClass()
		if class == nil {
			return nil, newBeanError(ErrNoUsableConstructor, beanName, "bean definition has no class to resolve constructors").withResource(mbd.ResourceDescription)
		}
		candidates = t.constructorsOf(class)
	}
	if len(candidates) == 0 {
		return nil, newBeanError(ErrNoUsableConstructor, beanName, "no constructors found for bean class").withResource(mbd.ResourceDescription)
	}

	if len(candidates) == 1 && len(explicitArgs) == 0 && mbd.ConstructorArgs.IsEmpty() && candidates[0].ParamCount() == 0 {
		holder := newArgumentsHolder(0)
		holder.storeCache(mbd, candidates[0])
		return t.instantiateWith(beanName, mbd, candidates[0], reflect.Value{}, nil)
	}

	autowiring := chosenCtors != nil || mbd.AutowireMode == AutowireConstructor
	ex, holder, err := t.selectExecutable(c, beanName, mbd, sortCandidates(candidates), explicitArgs, autowiring, "constructor")
	if err != nil {
		return nil, err
	}
	if len(explicitArgs) == 0 {
		holder.storeCache(mbd, ex)
	}
	return t.instantiateWith(beanName, mbd, ex, reflect.Value{}, holder.arguments)
}

/**
Instantiates the bean by the factory method: a factory function registered for the class,
or a method of the factory bean.
*/
func (t *beanFactory) instantiateUsingFactoryMethod(c *creation, beanName string, mbd *RootBeanDefinition, explicitArgs []interface{}) (interface{}, error) {

	var receiver reflect.Value
	var candidates []*Executable

	if mbd.FactoryBeanName != "" {
		if mbd.FactoryBeanName == beanName {
			return nil, newBeanError(ErrBeanCreation, beanName, "factory bean reference points back to the same bean definition").withResource(mbd.ResourceDescription)
		}
		factoryBean, err := t.doGetBean(c, mbd.FactoryBeanName, nil, nil, false)
		if err != nil {
			return nil, wrapCreation(beanName, mbd.ResourceDescription, fmt.Sprintf("cannot get factory bean '%s'", mbd.FactoryBeanName), err)
		}
		if factoryBean == nil {
			return nil, newBeanError(ErrBeanCreation, beanName, "factory bean '%s' is nil", mbd.FactoryBeanName).withResource(mbd.ResourceDescription)
		}
		if mbd.IsSingleton() && t.ContainsSingleton(beanName) {
			return nil, newBeanError(ErrImplicitlyAppearedSingleton, beanName, "singleton appeared during creation of its factory bean '%s'", mbd.FactoryBeanName)
		}
		t.RegisterDependentBean(mbd.FactoryBeanName, beanName)
		receiver = reflect.ValueOf(factoryBean)
		candidates = methodsOf(receiver.Type(), mbd.FactoryMethodName)
	} else {
		class := mbd.beanClass()
		if class == nil {
			return nil, newBeanError(ErrBeanCreation, beanName, "bean definition declares neither a bean class nor a factory bean reference").withResource(mbd.ResourceDescription)
		}
		if ex := mbd.ResolvedFactoryMethod(); ex != nil && !ex.Method {
			candidates = []*Executable{ex}
		} else {
			candidates = t.factoryFunctions(class, mbd.FactoryMethodName)
		}
	}

	if len(explicitArgs) == 0 {
		ex, args, err := t.cachedArguments(c, beanName, mbd)
		if err != nil {
			return nil, err
		}
		if ex != nil && mbd.isFactoryMethod(ex) && ex.Method == receiver.IsValid() {
			return t.instantiateWith(beanName, mbd, ex, receiver, args)
		}
	}

	if len(candidates) == 0 {
		return nil, newBeanError(ErrNoUsableConstructor, beanName, "no matching factory method found: factory bean '%s', factory method '%s'", mbd.FactoryBeanName, mbd.FactoryMethodName).withResource(mbd.ResourceDescription)
	}

	if len(candidates) == 1 && len(explicitArgs) == 0 && mbd.ConstructorArgs.IsEmpty() && candidates[0].ParamCount() == 0 {
		ex := candidates[0]
		mbd.setFactoryMethodIntrospection(ex, ex.ResultType(), true)
		newArgumentsHolder(0).storeCache(mbd, ex)
		return t.instantiateWith(beanName, mbd, ex, receiver, nil)
	}

	autowiring := mbd.AutowireMode == AutowireConstructor
	ex, holder, err := t.selectExecutable(c, beanName, mbd, sortCandidates(candidates), explicitArgs, autowiring, "factory method")
	if err != nil {
		return nil, err
	}
	mbd.setFactoryMethodIntrospection(ex, ex.ResultType(), len(candidates) == 1)
	if len(explicitArgs) == 0 {
		holder.storeCache(mbd, ex)
	}
	return t.instantiateWith(beanName, mbd, ex, receiver, holder.arguments)
}

/**
Chooses the candidate with the lowest type difference weight among the ones whose arguments resolve
*/
func (t *beanFactory) selectExecutable(c *creation, beanName string, mbd *RootBeanDefinition, candidates []*Executable, explicitArgs []interface{}, autowiring bool, what string) (*Executable, *argumentsHolder, error) {

	var resolvedValues *ConstructorArgumentValues
	minNrOfArgs := len(explicitArgs)
	if len(explicitArgs) == 0 {
		var err error
		resolvedValues, minNrOfArgs, err = t.resolveConstructorArguments(c, beanName, mbd)
		if err != nil {
			return nil, nil, err
		}
	}

	var exToUse *Executable
	var holderToUse *argumentsHolder
	bestWeight := math.MaxInt
	var ambiguous []*Executable
	var causes []error
	lenient := !mbd.StrictConstructorResolution

	for _, candidate := range candidates {
		n := candidate.ParamCount()
		if exToUse != nil && len(holderToUse.arguments) > n {
			// the greedy candidate already satisfied
			break
		}
		if n < minNrOfArgs {
			continue
		}

		var holder *argumentsHolder
		if len(explicitArgs) == 0 {
			var err error
			holder, err = t.createArgumentArray(c, beanName, mbd, resolvedValues, candidate, autowiring)
			if err != nil {
				logger().Debug("ignoring "+what+" candidate", zap.String("bean", beanName), zap.Stringer("candidate", candidate), zap.Error(err))
				causes = append(causes, err)
				continue
			}
		} else {
			if n != len(explicitArgs) {
				continue
			}
			var err error
			holder, err = t.explicitArgumentArray(candidate, explicitArgs)
			if err != nil {
				causes = append(causes, err)
				continue
			}
		}

		weight := holder.typeDifferenceWeight(candidate.ParamTypes(), lenient)
		switch {
		case weight < bestWeight:
			exToUse = candidate
			holderToUse = holder
			bestWeight = weight
			ambiguous = nil
		case exToUse != nil && weight == bestWeight && n == exToUse.ParamCount():
			if ambiguous == nil {
				ambiguous = append(ambiguous, exToUse)
			}
			ambiguous = append(ambiguous, candidate)
		}
	}

	if exToUse == nil {
		if len(causes) > 0 {
			last := causes[len(causes)-1]
			e := newBeanError(ErrUnsatisfiedDependency, beanName, "could not resolve matching %s", what).withCause(last).withResource(mbd.ResourceDescription)
			e.RelatedCauses = causes[:len(causes)-1]
			return nil, nil, e
		}
		return nil, nil, newBeanError(ErrNoUsableConstructor, beanName, "could not resolve matching %s: check if the %s has %d arguments", what, what, minNrOfArgs).withResource(mbd.ResourceDescription)
	}

	if len(ambiguous) > 0 && !lenient {
		return nil, nil, newBeanError(ErrAmbiguousConstructor, beanName, "ambiguous %s matches found: %v", what, ambiguous).withResource(mbd.ResourceDescription)
	}
	return exToUse, holderToUse, nil
}

/**
Resolves constructor argument values of the definition once for all candidates, returns the resolved copy
and the minimal number of parameters a candidate must have
*/
func (t *beanFactory) resolveConstructorArguments(c *creation, beanName string, mbd *RootBeanDefinition) (*ConstructorArgumentValues, int, error) {
	cargs := &mbd.ConstructorArgs
	resolved := &ConstructorArgumentValues{}
	minNrOfArgs := cargs.Count()
	resolver := newValueResolver(t, c, beanName, mbd)

	for _, index := range cargs.indexes() {
		if index < 0 {
			return nil, 0, newBeanError(ErrBeanCreation, beanName, "invalid constructor argument index: %d", index).withResource(mbd.ResourceDescription)
		}
		if index+1 > minNrOfArgs {
			minNrOfArgs = index + 1
		}
		h, _ := cargs.Indexed(index)
		value, err := resolver.resolve(fmt.Sprintf("constructor argument %d", index), h.Value)
		if err != nil {
			return nil, 0, err
		}
		resolved.AddIndexedHolder(index, &ValueHolder{Value: value, Type: h.Type, Name: h.Name, source: h})
	}

	for _, h := range cargs.Generic() {
		value, err := resolver.resolve("constructor argument", h.Value)
		if err != nil {
			return nil, 0, err
		}
		resolved.AddGenericHolder(&ValueHolder{Value: value, Type: h.Type, Name: h.Name, source: h})
	}
	return resolved, minNrOfArgs, nil
}

/**
Matches resolved values to parameters of the candidate, autowiring the rest if allowed
*/
func (t *beanFactory) createArgumentArray(c *creation, beanName string, mbd *RootBeanDefinition, resolvedValues *ConstructorArgumentValues, ex *Executable, autowiring bool) (*argumentsHolder, error) {
	paramTypes := ex.ParamTypes()
	holder := newArgumentsHolder(len(paramTypes))
	used := make(map[*ValueHolder]bool)
	converter := t.converter()
	var autowiredNames []string

	for i, paramType := range paramTypes {
		paramName := ex.ParamName(i)
		vh := resolvedValues.argumentValue(i, paramType, paramName, used)
		if vh == nil && (!autowiring || len(paramTypes) == resolvedValues.Count()) {
			vh = resolvedValues.genericValue(nil, "", used)
		}

		if vh != nil {
			used[vh] = true
			converted, err := converter.ConvertIfNecessary(vh.Value, paramType)
			if err != nil {
				return nil, newBeanError(ErrUnsatisfiedDependency, beanName, "could not convert argument value of type '%T' to required type '%v' for parameter %d of %v", vh.Value, paramType, i, ex).withCause(err)
			}
			holder.arguments[i] = converted
			holder.raw[i] = vh.Value
			original := vh.Value
			if vh.source != nil {
				original = vh.source.Value
			}
			holder.prepared[i] = original
			if isDynamicValue(original) || !t.isStaticConversion(original, vh.Value) {
				holder.resolveNecessary = true
			}
			continue
		}

		if !autowiring {
			return nil, newBeanError(ErrUnsatisfiedDependency, beanName, "ambiguous argument values for parameter %d of type '%v' of %v: did you specify the correct bean references as arguments?", i, paramType, ex)
		}

		desc := NewParameterDescriptor(ex, i, true)
		var names []string
		obj, err := t.resolveDependency(c, desc, beanName, &names)
		if err != nil {
			return nil, newBeanError(ErrUnsatisfiedDependency, beanName, "unsatisfied dependency expressed through %v", desc).withCause(err)
		}
		v, err := argumentOf(obj, paramType, converter)
		if err != nil {
			return nil, newBeanError(ErrUnsatisfiedDependency, beanName, "unsatisfied dependency expressed through %v", desc).withCause(err)
		}
		holder.arguments[i] = v
		holder.raw[i] = obj
		if len(names) == 1 {
			holder.prepared[i] = desc.withShortcut(names[0])
		} else {
			holder.prepared[i] = desc
		}
		holder.resolveNecessary = true
		autowiredNames = append(autowiredNames, names...)
	}

	for _, name := range autowiredNames {
		t.RegisterDependentBean(name, beanName)
		logger().Debug("autowiring by type through "+ex.String(), zap.String("bean", beanName), zap.String("dependency", name))
	}
	return holder, nil
}

func (t *beanFactory) explicitArgumentArray(ex *Executable, explicitArgs []interface{}) (*argumentsHolder, error) {
	converter := t.converter()
	holder := newArgumentsHolder(len(explicitArgs))
	for i, arg := range explicitArgs {
		v, err := converter.ConvertIfNecessary(arg, ex.ParamTypes()[i])
		if err != nil {
			return nil, err
		}
		holder.arguments[i] = v
		holder.raw[i] = arg
		holder.prepared[i] = arg
	}
	return holder, nil
}

/**
Returns the executable and arguments cached by a previous creation, prepared arguments are resolved again
*/
func (t *beanFactory) cachedArguments(c *creation, beanName string, mbd *RootBeanDefinition) (*Executable, []reflect.Value, error) {
	mbd.argsMu.Lock()
	ex := mbd.resolvedConstructorOrFactoryMethod
	resolved := mbd.constructorArgumentsResolved
	args := mbd.resolvedConstructorArguments
	prepared := mbd.preparedConstructorArguments
	mbd.argsMu.Unlock()

	if ex == nil || !resolved {
		return nil, nil, nil
	}
	if args != nil || prepared == nil {
		return ex, args, nil
	}

	resolver := newValueResolver(t, c, beanName, mbd)
	converter := t.converter()
	args = make([]reflect.Value, len(prepared))
	for i, p := range prepared {
		obj, err := resolver.resolve(fmt.Sprintf("argument %d of %v", i, ex), p)
		if err != nil {
			return nil, nil, newBeanError(ErrUnsatisfiedDependency, beanName, "could not resolve cached argument %d of %v", i, ex).withCause(err)
		}
		if args[i], err = argumentOf(obj, ex.ParamTypes()[i], converter); err != nil {
			return nil, nil, newBeanError(ErrUnsatisfiedDependency, beanName, "could not convert cached argument %d of %v", i, ex).withCause(err)
		}
	}
	return ex, args, nil
}

func argumentOf(obj interface{}, paramType reflect.Type, converter TypeConverter) (reflect.Value, error) {
	if obj == nil {
		return reflect.Zero(paramType), nil
	}
	if v, ok := asType(reflect.ValueOf(obj), paramType); ok {
		return v, nil
	}
	return converter.ConvertIfNecessary(obj, paramType)
}

func (t *beanFactory) instantiateWith(beanName string, mbd *RootBeanDefinition, ex *Executable, receiver reflect.Value, args []reflect.Value) (interface{}, error) {
	obj, err := t.instantiate(beanName, mbd, ex, receiver, args)
	if err != nil {
		return nil, wrapCreation(beanName, mbd.ResourceDescription, fmt.Sprintf("instantiation of bean through %v failed", ex), err)
	}
	return obj, nil
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"reflect"
)

/**
Prefix of the bean name that dereferences a factory bean, '&myFactory' returns the factory itself
*/
const FactoryBeanPrefix = "&"

var BeanFactoryClass = reflect.TypeOf((*BeanFactory)(nil)).Elem()

type BeanFactory interface {

	/**
	Returns an instance, which may be shared or independent, of the specified bean.
	Name could be an alias or carry the factory bean prefix.
	*/
	GetBean(name string) (interface{}, error)

	/**
	Returns an instance of the bean, using explicit arguments for the constructor or factory method.
	Explicit arguments are only allowed for prototype beans or singletons created for the first time.
	*/
	GetBeanWithArgs(name string, args ...interface{}) (interface{}, error)

	/**
	Returns an instance of the bean checked against the required type
	*/
	GetTypedBean(name string, requiredType reflect.Type) (interface{}, error)

	/**
	Returns the single bean matching the required type, that is a pointer to the structure or interface
	*/
	GetBeanByType(requiredType reflect.Type, args ...interface{}) (interface{}, error)

	/**
	Returns a lazy handle over beans of the required type
	*/
	GetBeanProvider(requiredType reflect.Type) ObjectProvider

	/**
	Returns true if the factory or one of its parents contains a bean definition or singleton with the name
	*/
	ContainsBean(name string) bool

	IsSingleton(name string) (bool, error)

	IsPrototype(name string) (bool, error)

	/**
	Checks whether the bean with the given name matches the type, without creating it if possible
	*/
	IsTypeMatch(name string, typeToMatch reflect.Type) (bool, error)

	/**
	Determines the type of the bean with the given name, nil if it is not determinable
	*/
	GetType(name string) (reflect.Type, error)

	GetAliases(name string) []string
}

type HierarchicalBeanFactory interface {
	BeanFactory

	ParentBeanFactory() (BeanFactory, bool)

	ContainsLocalBean(name string) bool
}

type ListableBeanFactory interface {
	BeanFactory

	ContainsBeanDefinition(name string) bool

	GetBeanDefinitionCount() int

	/**
	Returns bean definition names in registration order
	*/
	GetBeanDefinitionNames() []string

	/**
	Returns names of beans matching the type, judging from definitions or the object type of factory beans.
	allowEagerInit permits initialization of lazy beans and factory beans to answer the question.
	*/
	GetBeanNamesForType(typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) []string

	GetBeansOfType(typ reflect.Type, includeNonSingletons bool, allowEagerInit bool) (map[string]interface{}, error)

	/**
	Returns names of beans which class or definition carries the annotation
	*/
	GetBeanNamesForAnnotation(annotation string) []string

	GetBeansWithAnnotation(annotation string) (map[string]interface{}, error)
}

type AutowireCapableBeanFactory interface {
	BeanFactory

	/**
	Fully creates a new prototype instance of the class, running every post-processor
	*/
	CreateBean(class reflect.Type) (interface{}, error)

	/**
	Populates the existing instance by post-processors, for example inject tags
	*/
	AutowireBean(existing interface{}) error

	/**
	Autowires properties of the existing instance by name or by type
	*/
	AutowireBeanProperties(existing interface{}, mode AutowireMode, dependencyCheck bool) error

	/**
	Runs aware callbacks, post-processors and init methods on the existing instance
	*/
	InitializeBean(existing interface{}, beanName string) (interface{}, error)

	/**
	Resolves the injection point against the beans of this factory, returns names of beans used
	*/
	ResolveDependency(descriptor *DependencyDescriptor, requestingBeanName string) (interface{}, []string, error)

	/**
	Destroys the instance, calling destruction aware post-processors and disposable callbacks
	*/
	DestroyBean(existing interface{}) error
}

type AliasRegistry interface {
	RegisterAlias(name, alias string) error

	RemoveAlias(alias string) error

	IsAlias(name string) bool

	GetAliases(name string) []string
}

type BeanDefinitionRegistry interface {
	AliasRegistry

	RegisterBeanDefinition(name string, definition *BeanDefinition) error

	RemoveBeanDefinition(name string) error

	GetBeanDefinition(name string) (*BeanDefinition, error)

	ContainsBeanDefinition(name string) bool

	GetBeanDefinitionNames() []string

	GetBeanDefinitionCount() int

	IsBeanNameInUse(name string) bool
}

type SingletonBeanRegistry interface {
	RegisterSingleton(name string, obj interface{}) error

	GetSingleton(name string) (interface{}, bool)

	ContainsSingleton(name string) bool

	GetSingletonNames() []string

	GetSingletonCount() int
}

type ConfigurableBeanFactory interface {
	HierarchicalBeanFactory
	SingletonBeanRegistry

	SetParentBeanFactory(parent BeanFactory) error

	SetClassLoader(loader ClassLoader)
	ClassLoader() ClassLoader

	SetTypeConverter(converter TypeConverter)

	AddEmbeddedValueResolver(resolver StringValueResolver)
	ResolveEmbeddedValue(value string) (string, error)

	/**
	Registers post-processor, the value must implement at least one of post-processor interfaces
	*/
	AddBeanPostProcessor(processor interface{}) error
	GetBeanPostProcessorCount() int

	RegisterScope(name string, scope Scope) error
	GetRegisteredScope(name string) (Scope, bool)

	SetAllowBeanDefinitionOverriding(allow bool)
	SetAllowEagerClassLoading(allow bool)
	SetAllowCircularReferences(allow bool)
	SetAllowRawInjectionDespiteWrapping(allow bool)

	GetMergedBeanDefinition(name string) (*RootBeanDefinition, error)
	IsFactoryBean(name string) (bool, error)
	IsCurrentlyInCreation(name string) bool

	RegisterDependentBean(beanName, dependentBeanName string)
	GetDependentBeans(beanName string) []string
	GetDependenciesForBean(beanName string) []string

	DestroyScopedBean(beanName string) error
	DestroySingletons() error
}

type ConfigurableListableBeanFactory interface {
	ConfigurableBeanFactory
	ListableBeanFactory
	AutowireCapableBeanFactory
	BeanDefinitionRegistry

	IgnoreDependencyType(typ reflect.Type)
	IgnoreDependencyInterface(ifaceType reflect.Type)
	RegisterResolvableDependency(dependencyType reflect.Type, autowiredValue interface{}) error

	SetDependencyComparator(comparator DependencyComparator)
	SetAutowireCandidateResolver(resolver AutowireCandidateResolver)

	IsAutowireCandidate(beanName string, descriptor *DependencyDescriptor) (bool, error)

	FreezeConfiguration()
	IsConfigurationFrozen() bool

	/**
	Publishes the factory in the directory under the id, nil directory or empty id unpublishes it
	*/
	SetSerializationId(directory *FactoryDirectory, id string) error
	SerializationId() string

	/**
	Eagerly creates all non-lazy singletons in registration order,
	then calls AfterSingletonsInstantiated on every SmartInitializingSingleton
	*/
	PreInstantiateSingletons() error
}

/**
Supplier creates the bean instance instead of a constructor or factory method.
The factory passed in is bound to the current creation, beans requested through it
are registered as dependencies of the supplied bean.
*/

type Supplier func(factory BeanFactory) (interface{}, error)

/**
The bean object would be created after Object() function call.
ObjectType can be pointer to structure or interface.
*/

var FactoryBeanClass = reflect.TypeOf((*FactoryBean)(nil)).Elem()

type FactoryBean interface {

	/**
	returns an object produced by the factory, and this is the object that will be used in context
	*/
	Object() (interface{}, error)

	/**
	returns the type of object that this FactoryBean produces, nil if not known in advance
	*/
	ObjectType() reflect.Type

	/**
	denotes if the object produced by this FactoryBean is a singleton
	*/
	Singleton() bool
}

var SmartFactoryBeanClass = reflect.TypeOf((*SmartFactoryBean)(nil)).Elem()

type SmartFactoryBean interface {
	FactoryBean

	/**
	Returns true if the produced object is a prototype even when Singleton() is false
	*/
	Prototype() bool

	/**
	Returns true if the produced object has to be created during pre-instantiation of singletons
	*/
	EagerInit() bool
}

var InitializingBeanClass = reflect.TypeOf((*InitializingBean)(nil)).Elem()

type InitializingBean interface {

	/**
	Runs this method automatically after properties are populated
	*/
	PostConstruct() error
}

var DisposableBeanClass = reflect.TypeOf((*DisposableBean)(nil)).Elem()

type DisposableBean interface {

	/**
	Runs this method on destruction of the bean
	*/
	Destroy() error
}

var SmartInitializingSingletonClass = reflect.TypeOf((*SmartInitializingSingleton)(nil)).Elem()

type SmartInitializingSingleton interface {

	/**
	Invoked right at the end of the singleton pre-instantiation phase
	*/
	AfterSingletonsInstantiated() error
}

var BeanNameAwareClass = reflect.TypeOf((*BeanNameAware)(nil)).Elem()

type BeanNameAware interface {
	SetBeanName(name string)
}

var ClassLoaderAwareClass = reflect.TypeOf((*ClassLoaderAware)(nil)).Elem()

type ClassLoaderAware interface {
	SetClassLoader(loader ClassLoader)
}

var BeanFactoryAwareClass = reflect.TypeOf((*BeanFactoryAware)(nil)).Elem()

type BeanFactoryAware interface {
	SetBeanFactory(factory BeanFactory)
}

/**
This interface used to collect beans in list with specific order
*/
var OrderedBeanClass = reflect.TypeOf((*OrderedBean)(nil)).Elem()

type OrderedBean interface {

	/**
	Returns bean order, lower values go first
	*/
	BeanOrder() int
}

/**
Priority ordered beans go before all plain ordered beans
*/
var PriorityOrderedBeanClass = reflect.TypeOf((*PriorityOrderedBean)(nil)).Elem()

type PriorityOrderedBean interface {
	OrderedBean
	PriorityOrdered()
}

/**
Prioritized beans take part in the selection of a single autowire candidate, the lowest value wins
*/
var PrioritizedBeanClass = reflect.TypeOf((*PrioritizedBean)(nil)).Elem()

type PrioritizedBean interface {
	BeanPriority() int
}

/**
Post-processor invoked around initialization callbacks
*/
type BeanPostProcessor interface {
	PostProcessBeforeInitialization(bean interface{}, beanName string) (interface{}, error)

	PostProcessAfterInitialization(bean interface{}, beanName string) (interface{}, error)
}

/**
Post-processor invoked around instantiation and property population
*/
type InstantiationAwareBeanPostProcessor interface {

	/**
	Returns a surrogate object that short-circuits the default instantiation, or nil
	*/
	PostProcessBeforeInstantiation(class reflect.Type, beanName string) (interface{}, error)

	/**
	Returns false to skip property population
	*/
	PostProcessAfterInstantiation(bean interface{}, beanName string) (bool, error)

	/**
	Returns property values to apply, nil to skip property population
	*/
	PostProcessProperties(pvs *PropertyValues, bean interface{}, beanName string) (*PropertyValues, error)
}

type SmartInstantiationAwareBeanPostProcessor interface {

	/**
	Predicts the type of the bean to be returned from PostProcessBeforeInstantiation, nil if unknown
	*/
	PredictBeanType(class reflect.Type, beanName string) (reflect.Type, error)

	/**
	Determines candidate constructors to use for the bean, nil for the default handling
	*/
	DetermineCandidateConstructors(class reflect.Type, beanName string) ([]*Executable, error)

	/**
	Returns the reference exposed for circular references during creation
	*/
	GetEarlyBeanReference(bean interface{}, beanName string) (interface{}, error)
}

type MergedBeanDefinitionPostProcessor interface {
	PostProcessMergedBeanDefinition(definition *RootBeanDefinition, class reflect.Type, beanName string) error

	/**
	Notifies that the definition of the bean has been reset
	*/
	ResetBeanDefinition(beanName string)
}

type DestructionAwareBeanPostProcessor interface {
	PostProcessBeforeDestruction(bean interface{}, beanName string) error

	RequiresDestruction(bean interface{}) bool
}

/**
Object factory used by scopes to create objects on demand
*/
type ObjectFactory func() (interface{}, error)

/**
Custom scope of beans, registered with RegisterScope
*/
type Scope interface {

	/**
	Returns the object from the scope, creating it with the factory if not present
	*/
	Get(name string, objectFactory ObjectFactory) (interface{}, error)

	/**
	Removes the object from the scope
	*/
	Remove(name string) (interface{}, bool)

	/**
	Registers a callback to run on destruction of the object in the scope
	*/
	RegisterDestructionCallback(name string, callback func())
}

/**
Lazy handle over beans of some type
*/
type ObjectProvider interface {

	/**
	Returns the bean or fails if absent or not unique
	*/
	Object(args ...interface{}) (interface{}, error)

	/**
	Returns the bean or nil if absent
	*/
	IfAvailable() (interface{}, error)

	/**
	Returns the bean or nil if absent or not unique
	*/
	IfUnique() (interface{}, error)

	/**
	Iterates matching beans in registration order, creating them one by one as iteration proceeds
	*/
	Stream(yield func(obj interface{}) bool) error

	/**
	Iterates matching beans ordered by the dependency comparator
	*/
	OrderedStream(yield func(obj interface{}) bool) error
}

/**
Resolves placeholders in string values
*/
type StringValueResolver interface {
	ResolveStringValue(value string) (string, error)
}

/**
Converts values to the required type
*/
type TypeConverter interface {
	ConvertIfNecessary(value interface{}, requiredType reflect.Type) (reflect.Value, error)
}

/**
Reimplements methods overridden by ReplaceOverride
*/
type MethodReplacer interface {
	Reimplement(obj interface{}, method string, args []reflect.Value) ([]reflect.Value, error)
}

/**
Strategy that decides whether a bean definition qualifies for an injection point
*/
type AutowireCandidateResolver interface {
	IsAutowireCandidate(candidate *BeanDefinitionHolder, descriptor *DependencyDescriptor) bool

	IsRequired(descriptor *DependencyDescriptor) bool

	HasQualifier(descriptor *DependencyDescriptor) bool

	/**
	Returns a value suggested by the injection point itself, for example a placeholder expression
	*/
	GetSuggestedValue(descriptor *DependencyDescriptor) (interface{}, bool)
}

/**
Comparator of dependency candidates, ordering multi-element injection points
*/
type DependencyComparator interface {
	Compare(a, b interface{}) int

	Priority(obj interface{}) (int, bool)
}

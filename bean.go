/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	ScopeDefault   = ""
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

/**
Destroy method name that asks the factory to infer the method, Close or Shutdown
*/
const InferMethod = "(inferred)"

type AutowireMode int

const (
	AutowireNo AutowireMode = iota
	AutowireByName
	AutowireByType
	AutowireConstructor
)

func (t AutowireMode) String() string {
	switch t {
	case AutowireNo:
		return "no"
	case AutowireByName:
		return "byName"
	case AutowireByType:
		return "byType"
	case AutowireConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

type DependencyCheck int

const (
	DependencyCheckNone DependencyCheck = iota
	DependencyCheckObjects
	DependencyCheckSimple
	DependencyCheckAll
)

func (t DependencyCheck) String() string {
	switch t {
	case DependencyCheckNone:
		return "none"
	case DependencyCheckObjects:
		return "objects"
	case DependencyCheckSimple:
		return "simple"
	case DependencyCheckAll:
		return "all"
	default:
		return "unknown"
	}
}

type Role int

const (
	RoleApplication Role = iota
	RoleSupport
	RoleInfrastructure
)

/**
Tells which pre-merge form the definition has
*/
type DefinitionSource int

const (
	// GenericDefinition may or may not have a parent
	GenericDefinition DefinitionSource = iota
	// ChildDefinition always inherits from the parent
	ChildDefinition
	// RootDefinition never has a parent
	RootDefinition
)

func (t DefinitionSource) String() string {
	switch t {
	case GenericDefinition:
		return "generic"
	case ChildDefinition:
		return "child"
	case RootDefinition:
		return "root"
	default:
		return "unknown"
	}
}

/**
Bean definition is the declarative, mutable template of bean instances.
Zero value is a singleton, eager, not autowired definition.
*/

type BeanDefinition struct {

	/**
	Pre-merge form of the definition
	*/
	Source DefinitionSource

	/**
	Name of the parent definition, the definition inherits settings from it
	*/
	ParentName string

	/**
	Class of the bean, usually pointer to the structure, wins over ClassName
	*/
	Class reflect.Type

	/**
	Class name resolved lazily through the class loader
	*/
	ClassName string

	/**
	Scope name, empty means singleton
	*/
	Scope string

	/**
	Abstract definitions serve only as parents
	*/
	Abstract bool

	/**
	Lazy initialization, nil means not set
	*/
	LazyInit *bool

	AutowireMode AutowireMode

	DependencyCheck DependencyCheck

	/**
	Names of beans this bean depends on being initialized
	*/
	DependsOn []string

	/**
	Excludes the bean from autowiring by type
	*/
	ExcludeFromAutowiring bool

	/**
	Primary autowire candidate among several of the same type
	*/
	Primary bool

	/**
	Priority among several candidates of the same type, lower value wins
	*/
	Priority *int

	/**
	Qualifiers keyed by qualifier type name
	*/
	Qualifiers map[string]*Qualifier

	ConstructorArgs ConstructorArgumentValues

	Properties PropertyValues

	MethodOverrides MethodOverrides

	/**
	Factory bean name for instance factory methods, empty for static factory methods of Class
	*/
	FactoryBeanName string

	FactoryMethodName string

	InitMethodName string

	/**
	Absent init method is not an error
	*/
	InitMethodOptional bool

	DestroyMethodName string

	/**
	Absent destroy method is not an error
	*/
	DestroyMethodOptional bool

	/**
	Callback creating the instance
	*/
	Supplier Supplier

	/**
	Disables lenient constructor resolution, equally good candidates fail with ErrAmbiguousConstructor
	*/
	StrictConstructorResolution bool

	/**
	Synthetic definitions are not post-processed
	*/
	Synthetic bool

	Role Role

	Description string

	ResourceDescription string
}

func NewBeanDefinition(class reflect.Type) *BeanDefinition {
	return &BeanDefinition{Class: class}
}

func NewChildBeanDefinition(parentName string) *BeanDefinition {
	return &BeanDefinition{Source: ChildDefinition, ParentName: parentName}
}

func (t *BeanDefinition) SetLazyInit(lazy bool) {
	t.LazyInit = &lazy
}

func (t *BeanDefinition) SetPriority(priority int) {
	t.Priority = &priority
}

func (t *BeanDefinition) IsLazyInit() bool {
	return t.LazyInit != nil && *t.LazyInit
}

func (t *BeanDefinition) IsSingleton() bool {
	return t.Scope == ScopeSingleton || t.Scope == ScopeDefault
}

func (t *BeanDefinition) IsPrototype() bool {
	return t.Scope == ScopePrototype
}

func (t *BeanDefinition) HasClass() bool {
	return t.Class != nil
}

/**
Returns class name of the definition, the one of the class if resolved
*/
func (t *BeanDefinition) BeanClassName() string {
	if t.Class != nil {
		return t.Class.String()
	}
	return t.ClassName
}

func (t *BeanDefinition) AddQualifier(q *Qualifier) {
	if t.Qualifiers == nil {
		t.Qualifiers = make(map[string]*Qualifier)
	}
	t.Qualifiers[q.TypeName] = q
}

func (t *BeanDefinition) Qualifier(typeName string) (*Qualifier, bool) {
	q, ok := t.Qualifiers[typeName]
	return q, ok
}

/**
Self consistency check of the definition, the class if known is used to validate method overrides
*/
func (t *BeanDefinition) Validate() error {
	if t.Source == ChildDefinition && t.ParentName == "" {
		return newBeanError(ErrValidationFailed, "", "child bean definition of class '%s' has no parent name", t.BeanClassName())
	}
	if t.Source == RootDefinition && t.ParentName != "" {
		return newBeanError(ErrValidationFailed, "", "root bean definition of class '%s' can not have parent '%s'", t.BeanClassName(), t.ParentName)
	}
	if t.MethodOverrides.Len() > 0 && t.FactoryMethodName != "" {
		return newBeanError(ErrValidationFailed, "", "can not combine factory method '%s' with method overrides: the factory method must create the concrete bean instance", t.FactoryMethodName)
	}
	if t.Class != nil {
		return t.MethodOverrides.validate(t.Class)
	}
	return nil
}

/**
Deep copy of the definition, value objects inside property values and arguments are shared
*/
func (t *BeanDefinition) Clone() *BeanDefinition {
	c := *t
	c.copyCollectionsFrom(t)
	return &c
}

func (t *BeanDefinition) copyCollectionsFrom(other *BeanDefinition) {
	if other.LazyInit != nil {
		lazy := *other.LazyInit
		t.LazyInit = &lazy
	}
	if other.Priority != nil {
		p := *other.Priority
		t.Priority = &p
	}
	t.DependsOn = append([]string(nil), other.DependsOn...)
	t.Qualifiers = nil
	for _, q := range other.Qualifiers {
		t.AddQualifier(q.clone())
	}
	t.ConstructorArgs = other.ConstructorArgs.Clone()
	t.Properties = other.Properties.Clone()
	t.MethodOverrides = other.MethodOverrides.Clone()
}

/**
Applies the child definition on top of this one. Scalars of the child win when set,
arguments, properties and method overrides accumulate.
*/
func (t *BeanDefinition) overrideFrom(child *BeanDefinition) {
	if child.Class != nil {
		t.Class = child.Class
		t.ClassName = ""
	}
	if child.ClassName != "" {
		t.ClassName = child.ClassName
		if child.Class == nil {
			t.Class = nil
		}
	}
	if child.Scope != "" {
		t.Scope = child.Scope
	}
	t.Abstract = child.Abstract
	if child.FactoryBeanName != "" {
		t.FactoryBeanName = child.FactoryBeanName
	}
	if child.FactoryMethodName != "" {
		t.FactoryMethodName = child.FactoryMethodName
	}
	t.Role = child.Role
	if child.LazyInit != nil {
		lazy := *child.LazyInit
		t.LazyInit = &lazy
	}
	t.AutowireMode = child.AutowireMode
	t.DependencyCheck = child.DependencyCheck
	t.DependsOn = append([]string(nil), child.DependsOn...)
	t.ExcludeFromAutowiring = child.ExcludeFromAutowiring
	t.Primary = child.Primary
	if child.Priority != nil {
		p := *child.Priority
		t.Priority = &p
	}
	for _, q := range child.Qualifiers {
		t.AddQualifier(q.clone())
	}
	if child.Supplier != nil {
		t.Supplier = child.Supplier
	}
	t.StrictConstructorResolution = child.StrictConstructorResolution
	t.ConstructorArgs.AddAll(&child.ConstructorArgs)
	t.Properties.AddAll(&child.Properties)
	t.MethodOverrides.AddAll(&child.MethodOverrides)
	if child.InitMethodName != "" {
		t.InitMethodName = child.InitMethodName
		t.InitMethodOptional = child.InitMethodOptional
	}
	if child.DestroyMethodName != "" {
		t.DestroyMethodName = child.DestroyMethodName
		t.DestroyMethodOptional = child.DestroyMethodOptional
	}
	t.Synthetic = child.Synthetic
	if child.ResourceDescription != "" {
		t.ResourceDescription = child.ResourceDescription
	}
	if child.Description != "" {
		t.Description = child.Description
	}
}

func (t *BeanDefinition) String() string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("class [%s]; source=%s; scope=%s; abstract=%v; lazyInit=", t.BeanClassName(), t.Source, t.Scope, t.Abstract))
	if t.LazyInit != nil {
		out.WriteString(fmt.Sprint(*t.LazyInit))
	} else {
		out.WriteString("null")
	}
	out.WriteString(fmt.Sprintf("; autowireMode=%s; dependencyCheck=%s; autowireCandidate=%v; primary=%v", t.AutowireMode, t.DependencyCheck, !t.ExcludeFromAutowiring, t.Primary))
	out.WriteString(fmt.Sprintf("; factoryBeanName=%s; factoryMethodName=%s; initMethodName=%s; destroyMethodName=%s", t.FactoryBeanName, t.FactoryMethodName, t.InitMethodName, t.DestroyMethodName))
	if t.ParentName != "" {
		out.WriteString("; parent=")
		out.WriteString(t.ParentName)
	}
	if t.ResourceDescription != "" {
		out.WriteString("; defined in ")
		out.WriteString(t.ResourceDescription)
	}
	return out.String()
}

/**
Holder of the definition with its name and aliases, also used for inner beans
*/

type BeanDefinitionHolder struct {
	Name       string
	Aliases    []string
	Definition *BeanDefinition
}

func (t *BeanDefinitionHolder) MatchesName(candidate string) bool {
	if candidate == "" {
		return false
	}
	if candidate == t.Name {
		return true
	}
	for _, alias := range t.Aliases {
		if candidate == alias {
			return true
		}
	}
	return false
}

func (t *BeanDefinitionHolder) String() string {
	if len(t.Aliases) > 0 {
		return fmt.Sprintf("bean definition with name '%s' and aliases [%s]: %v", t.Name, strings.Join(t.Aliases, ","), t.Definition)
	}
	return fmt.Sprintf("bean definition with name '%s': %v", t.Name, t.Definition)
}

/**
Qualifier of the bean definition, matched against qualifiers of injection points
*/

type Qualifier struct {
	TypeName   string
	Value      string
	Attributes map[string]string
}

/**
Default qualifier type used by `qualifier` tags
*/
const DefaultQualifierType = "qualifier"

func NewQualifier(value string) *Qualifier {
	return &Qualifier{TypeName: DefaultQualifierType, Value: value}
}

func (t *Qualifier) clone() *Qualifier {
	c := *t
	if t.Attributes != nil {
		c.Attributes = make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

/**
Method override replaces a function field of the bean by the container
*/

type MethodOverride interface {

	/**
	Name of the exported function field in the bean structure
	*/
	MethodName() string
}

/**
Lookup override fills the function field with a lookup of the bean by name,
or by the function result type if the bean name is empty
*/

type LookupOverride struct {
	Method   string
	BeanName string
}

func (t *LookupOverride) MethodName() string {
	return t.Method
}

/**
Replace override fills the function field with a call to the MethodReplacer bean
*/

type ReplaceOverride struct {
	Method           string
	ReplacerBeanName string
}

func (t *ReplaceOverride) MethodName() string {
	return t.Method
}

type MethodOverrides struct {
	list []MethodOverride
}

func (t *MethodOverrides) Add(override MethodOverride) {
	for _, mo := range t.list {
		if mo == override {
			return
		}
	}
	t.list = append(t.list, override)
}

func (t *MethodOverrides) AddAll(other *MethodOverrides) {
	for _, mo := range other.list {
		t.Add(mo)
	}
}

func (t *MethodOverrides) Len() int {
	return len(t.list)
}

func (t *MethodOverrides) List() []MethodOverride {
	return t.list
}

func (t *MethodOverrides) Get(method string) (MethodOverride, bool) {
	for j := len(t.list) - 1; j >= 0; j-- {
		if t.list[j].MethodName() == method {
			return t.list[j], true
		}
	}
	return nil, false
}

func (t MethodOverrides) Clone() MethodOverrides {
	return MethodOverrides{list: append([]MethodOverride(nil), t.list...)}
}

func (t *MethodOverrides) validate(class reflect.Type) error {
	for _, mo := range t.list {
		if _, err := overrideField(class, mo.MethodName()); err != nil {
			return err
		}
	}
	return nil
}

func overrideField(class reflect.Type, method string) (reflect.StructField, error) {
	if class.Kind() != reflect.Ptr || class.Elem().Kind() != reflect.Struct {
		return reflect.StructField{}, newBeanError(ErrValidationFailed, "", "invalid method override '%s': class '%v' is not a pointer to structure", method, class)
	}
	field, ok := class.Elem().FieldByName(method)
	if !ok || field.PkgPath != "" || field.Type.Kind() != reflect.Func {
		return reflect.StructField{}, newBeanError(ErrValidationFailed, "", "invalid method override: no exported function field with name '%s' on class '%v'", method, class)
	}
	return field, nil
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans

import (
	"fmt"
	"reflect"
	"sort"
)

/**
Reference to another bean by name, resolved at creation time
*/

type RuntimeBeanReference struct {
	BeanName string

	/**
	Resolves the reference by type if the name is empty
	*/
	Type reflect.Type

	/**
	Looks the reference up in the parent factory
	*/
	ToParent bool
}

func Ref(beanName string) *RuntimeBeanReference {
	return &RuntimeBeanReference{BeanName: beanName}
}

func (t *RuntimeBeanReference) String() string {
	if t.BeanName == "" {
		return fmt.Sprintf("<%v>", t.Type)
	}
	return fmt.Sprintf("<%s>", t.BeanName)
}

/**
Reference to the name of another bean, resolved to the name string itself after the existence check
*/

type RuntimeBeanNameReference struct {
	BeanName string
}

/**
String value with optional target type, converted on resolution
*/

type TypedStringValue struct {
	Value string

	TargetType reflect.Type

	/**
	Dynamic values are converted for each instance and never cached
	*/
	Dynamic bool
}

/**
Mergeable values merge with the value of the parent definition
*/
type Mergeable interface {
	MergeEnabled() bool
	Merge(parent interface{}) (interface{}, error)
}

/**
List of values, could contain references and inner beans
*/

type ManagedList struct {
	Elements    []interface{}
	ElementType reflect.Type
	MergeParent bool
}

func (t *ManagedList) MergeEnabled() bool {
	return t.MergeParent
}

func (t *ManagedList) Merge(parent interface{}) (interface{}, error) {
	if !t.MergeParent {
		return nil, newBeanError(ErrValidationFailed, "", "not allowed to merge when the 'merge' property is false")
	}
	if parent == nil {
		return t, nil
	}
	p, ok := parent.(*ManagedList)
	if !ok {
		return nil, newBeanError(ErrValidationFailed, "", "can not merge with object of type '%T'", parent)
	}
	merged := &ManagedList{ElementType: t.ElementType, MergeParent: t.MergeParent}
	merged.Elements = append(merged.Elements, p.Elements...)
	merged.Elements = append(merged.Elements, t.Elements...)
	return merged, nil
}

/**
Map of values keyed by string, values could contain references and inner beans
*/

type ManagedMap struct {
	Entries     map[string]interface{}
	ValueType   reflect.Type
	MergeParent bool
}

func (t *ManagedMap) MergeEnabled() bool {
	return t.MergeParent
}

func (t *ManagedMap) Merge(parent interface{}) (interface{}, error) {
	if !t.MergeParent {
		return nil, newBeanError(ErrValidationFailed, "", "not allowed to merge when the 'merge' property is false")
	}
	if parent == nil {
		return t, nil
	}
	p, ok := parent.(*ManagedMap)
	if !ok {
		return nil, newBeanError(ErrValidationFailed, "", "can not merge with object of type '%T'", parent)
	}
	merged := &ManagedMap{Entries: make(map[string]interface{}, len(p.Entries)+len(t.Entries)), ValueType: t.ValueType, MergeParent: t.MergeParent}
	for k, v := range p.Entries {
		merged.Entries[k] = v
	}
	for k, v := range t.Entries {
		merged.Entries[k] = v
	}
	return merged, nil
}

func mergeValue(child, parent interface{}) interface{} {
	if m, ok := child.(Mergeable); ok && m.MergeEnabled() {
		if merged, err := m.Merge(parent); err == nil {
			return merged
		}
	}
	return child
}

/**
Holder of a constructor argument value with optional type and name hints
*/

type ValueHolder struct {
	Value interface{}

	/**
	Type hint that has to match the parameter type
	*/
	Type reflect.Type

	/**
	Name hint that has to match the parameter name
	*/
	Name string

	source *ValueHolder
}

func (t *ValueHolder) copy() *ValueHolder {
	return &ValueHolder{Value: t.Value, Type: t.Type, Name: t.Name, source: t}
}

func (t *ValueHolder) sameContent(other *ValueHolder) bool {
	return t.Type == other.Type && t.Name == other.Name && sameObject(t.Value, other.Value)
}

func (t *ValueHolder) String() string {
	return fmt.Sprintf("%v", t.Value)
}

/**
Constructor argument values, indexed and/or generic
*/

type ConstructorArgumentValues struct {
	indexed map[int]*ValueHolder
	generic []*ValueHolder
}

func (t *ConstructorArgumentValues) AddIndexed(index int, value interface{}) {
	t.AddIndexedHolder(index, &ValueHolder{Value: value})
}

func (t *ConstructorArgumentValues) AddIndexedHolder(index int, holder *ValueHolder) {
	if t.indexed == nil {
		t.indexed = make(map[int]*ValueHolder)
	}
	if existing, ok := t.indexed[index]; ok {
		holder.Value = mergeValue(holder.Value, existing.Value)
	}
	t.indexed[index] = holder
}

func (t *ConstructorArgumentValues) AddGeneric(value interface{}) {
	t.AddGenericHolder(&ValueHolder{Value: value})
}

func (t *ConstructorArgumentValues) AddGenericHolder(holder *ValueHolder) {
	for _, existing := range t.generic {
		if existing == holder || existing.sameContent(holder) {
			return
		}
	}
	if holder.Name != "" {
		for i, existing := range t.generic {
			if existing.Name == holder.Name {
				holder.Value = mergeValue(holder.Value, existing.Value)
				t.generic = append(t.generic[:i], t.generic[i+1:]...)
				break
			}
		}
	}
	t.generic = append(t.generic, holder)
}

/**
Adds all argument values of the other set, indexed values merge by index, generic ones unless already contained
*/
func (t *ConstructorArgumentValues) AddAll(other *ConstructorArgumentValues) {
	for _, index := range other.indexes() {
		t.AddIndexedHolder(index, other.indexed[index].copy())
	}
	for _, holder := range other.generic {
		contains := false
		for _, existing := range t.generic {
			if existing.sameContent(holder) {
				contains = true
				break
			}
		}
		if !contains {
			t.AddGenericHolder(holder.copy())
		}
	}
}

func (t *ConstructorArgumentValues) indexes() []int {
	list := make([]int, 0, len(t.indexed))
	for index := range t.indexed {
		list = append(list, index)
	}
	sort.Ints(list)
	return list
}

func (t *ConstructorArgumentValues) Indexed(index int) (*ValueHolder, bool) {
	h, ok := t.indexed[index]
	return h, ok
}

func (t *ConstructorArgumentValues) IndexedCount() int {
	return len(t.indexed)
}

func (t *ConstructorArgumentValues) Generic() []*ValueHolder {
	return t.generic
}

func (t *ConstructorArgumentValues) Count() int {
	return len(t.indexed) + len(t.generic)
}

func (t *ConstructorArgumentValues) IsEmpty() bool {
	return t.Count() == 0
}

/**
Finds the indexed value for the parameter, then a generic one not used yet
*/
func (t *ConstructorArgumentValues) argumentValue(index int, paramType reflect.Type, paramName string, used map[*ValueHolder]bool) *ValueHolder {
	if h := t.indexedValue(index, paramType, paramName); h != nil {
		return h
	}
	return t.genericValue(paramType, paramName, used)
}

func (t *ConstructorArgumentValues) indexedValue(index int, paramType reflect.Type, paramName string) *ValueHolder {
	h, ok := t.indexed[index]
	if !ok {
		return nil
	}
	if h.Type != nil && (paramType == nil || h.Type != paramType) {
		return nil
	}
	if h.Name != "" && paramName != "" && h.Name != paramName {
		return nil
	}
	return h
}

func (t *ConstructorArgumentValues) genericValue(paramType reflect.Type, paramName string, used map[*ValueHolder]bool) *ValueHolder {
	for _, h := range t.generic {
		if used[h] {
			continue
		}
		if h.Name != "" && (paramName == "" || h.Name != paramName) {
			continue
		}
		if h.Type != nil && (paramType == nil || h.Type != paramType) {
			continue
		}
		if paramType != nil && h.Type == nil && h.Name == "" && !valueMatchesType(h.Value, paramType) {
			continue
		}
		return h
	}
	return nil
}

func (t ConstructorArgumentValues) Clone() ConstructorArgumentValues {
	var c ConstructorArgumentValues
	for index, h := range t.indexed {
		if c.indexed == nil {
			c.indexed = make(map[int]*ValueHolder, len(t.indexed))
		}
		c.indexed[index] = h.copy()
	}
	for _, h := range t.generic {
		c.generic = append(c.generic, h.copy())
	}
	return c
}

/**
Resolved values match parameter types they are assignable to,
other values wait for the positional fallback
*/
func valueMatchesType(value interface{}, paramType reflect.Type) bool {
	if value == nil {
		return isNillable(paramType)
	}
	return reflect.TypeOf(value).AssignableTo(paramType)
}

/**
Property value of the bean, the name could be a nested path 'a.b'
*/

type PropertyValue struct {
	Name string

	Value interface{}

	/**
	Ignores the property if the bean has no such property
	*/
	Optional bool

	converted      bool
	convertedValue reflect.Value
}

func (t *PropertyValue) IsConverted() bool {
	return t.converted
}

func (t *PropertyValue) setConverted(v reflect.Value) {
	t.converted = true
	t.convertedValue = v
}

func (t *PropertyValue) copy() *PropertyValue {
	c := *t
	return &c
}

func (t *PropertyValue) String() string {
	return fmt.Sprintf("bean property '%s'", t.Name)
}

/**
Ordered property values, one per name
*/

type PropertyValues struct {
	list      []*PropertyValue
	converted bool
}

func NewPropertyValues() *PropertyValues {
	return &PropertyValues{}
}

/**
Adds the value, replacing or merging with the existing one of the same name
*/
func (t *PropertyValues) Add(name string, value interface{}) *PropertyValues {
	t.AddPropertyValue(&PropertyValue{Name: name, Value: value})
	return t
}

func (t *PropertyValues) AddPropertyValue(pv *PropertyValue) {
	for i, existing := range t.list {
		if existing.Name == pv.Name {
			merged := mergeValue(pv.Value, existing.Value)
			if merged != pv.Value {
				pv = &PropertyValue{Name: pv.Name, Value: merged, Optional: pv.Optional}
			}
			t.list[i] = pv
			t.converted = false
			return
		}
	}
	t.list = append(t.list, pv)
	t.converted = false
}

func (t *PropertyValues) AddAll(other *PropertyValues) {
	if other == nil {
		return
	}
	for _, pv := range other.list {
		t.AddPropertyValue(pv.copy())
	}
}

func (t *PropertyValues) Get(name string) (*PropertyValue, bool) {
	if t == nil {
		return nil, false
	}
	for _, pv := range t.list {
		if pv.Name == name {
			return pv, true
		}
	}
	return nil, false
}

func (t *PropertyValues) Contains(name string) bool {
	_, ok := t.Get(name)
	return ok
}

func (t *PropertyValues) Remove(name string) {
	for i, pv := range t.list {
		if pv.Name == name {
			t.list = append(t.list[:i], t.list[i+1:]...)
			return
		}
	}
}

func (t *PropertyValues) List() []*PropertyValue {
	if t == nil {
		return nil
	}
	return t.list
}

func (t *PropertyValues) Len() int {
	if t == nil {
		return 0
	}
	return len(t.list)
}

func (t *PropertyValues) IsEmpty() bool {
	return t.Len() == 0
}

/**
Marks all values as converted, the next application of the same set skips conversion
*/
func (t *PropertyValues) setConverted() {
	t.converted = true
}

func (t *PropertyValues) IsConverted() bool {
	return t.converted
}

func (t PropertyValues) Clone() PropertyValues {
	c := PropertyValues{converted: t.converted}
	for _, pv := range t.list {
		c.list = append(c.list, pv.copy())
	}
	return c
}

func (t *PropertyValues) String() string {
	if t.Len() == 0 {
		return "PropertyValues: length=0"
	}
	names := make([]string, 0, len(t.list))
	for _, pv := range t.list {
		names = append(names, pv.Name)
	}
	return fmt.Sprintf("PropertyValues: length=%d; %v", len(t.list), names)
}

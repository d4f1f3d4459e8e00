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
	"sync"
	"unsafe"
)

/**
Injection point declared by struct tags of a field.

	Service  *Service            `inject`
	Storage  Storage             `inject:"bean=mainStorage,optional"`
	Cache    Cache               `inject:"optional" qualifier:"local"`
	Handlers []Handler           `inject`
	Lazy     func() (*Service, error) `inject:"lazy"`
	Port     int                 `value:"server.port,default=8080"`
	Started  time.Time           `value:"${app.started},layout=2006-01-02"`
*/

type tagInjection struct {

	/**
	Struct type declaring the field
	*/
	class reflect.Type

	field reflect.StructField

	/**
	Descriptor shared by every instance of the class, copied on resolution
	*/
	desc *DependencyDescriptor
}

func (t *tagInjection) String() string {
	return fmt.Sprintf("%v->%s", t.class, t.field.Name)
}

/**
Post-processor that injects fields tagged by 'inject' and 'value' through the factory dependency resolver.
Unexported fields are supported.
*/

type TagInjectionPostProcessor struct {
	BeanPostProcessorAdapter

	factoryMu sync.RWMutex
	factory   AutowireCapableBeanFactory

	/**
	Injection points by class, class -> []*tagInjection
	*/
	cache sync.Map
}

func NewTagInjectionPostProcessor(factory AutowireCapableBeanFactory) *TagInjectionPostProcessor {
	return &TagInjectionPostProcessor{factory: factory}
}

func (t *TagInjectionPostProcessor) SetBeanFactory(factory BeanFactory) {
	t.factoryMu.Lock()
	defer t.factoryMu.Unlock()
	if acf, ok := factory.(AutowireCapableBeanFactory); ok {
		t.factory = acf
	}
}

func (t *TagInjectionPostProcessor) beanFactory() (AutowireCapableBeanFactory, error) {
	t.factoryMu.RLock()
	defer t.factoryMu.RUnlock()
	if t.factory == nil {
		return nil, errors.New("TagInjectionPostProcessor is not bound to an autowire capable bean factory")
	}
	return t.factory, nil
}

func (t *TagInjectionPostProcessor) PostProcessMergedBeanDefinition(definition *RootBeanDefinition, class reflect.Type, beanName string) error {
	_, err := t.injectionPoints(class)
	return err
}

func (t *TagInjectionPostProcessor) ResetBeanDefinition(beanName string) {
}

func (t *TagInjectionPostProcessor) PostProcessProperties(pvs *PropertyValues, bean interface{}, beanName string) (*PropertyValues, error) {
	if err := t.inject(bean, beanName); err != nil {
		return nil, newBeanError(ErrBeanCreation, beanName, "injection of tagged fields failed").withCause(err)
	}
	return pvs, nil
}

/**
Injects tagged fields of the existing object, that is not managed by the factory
*/
func (t *TagInjectionPostProcessor) ProcessInjection(bean interface{}) error {
	return t.inject(bean, "")
}

func (t *TagInjectionPostProcessor) inject(bean interface{}, beanName string) error {
	points, err := t.injectionPoints(reflect.TypeOf(bean))
	if err != nil || len(points) == 0 {
		return err
	}
	factory, err := t.beanFactory()
	if err != nil {
		return err
	}
	value := reflect.ValueOf(bean).Elem()
	for _, point := range points {
		obj, names, err := factory.ResolveDependency(point.desc.copy(), beanName)
		if err != nil {
			return errors.Wrapf(err, "field '%s' in class '%v'", point.field.Name, point.class)
		}
		if beanName != "" {
			if cbf, ok := factory.(ConfigurableBeanFactory); ok {
				for _, name := range names {
					cbf.RegisterDependentBean(name, beanName)
				}
			}
		}
		if obj == nil {
			continue
		}
		v, ok := asType(reflect.ValueOf(obj), point.field.Type)
		if !ok {
			return errors.Errorf("field '%s' in class '%v' of type '%v' can not be injected with '%T'", point.field.Name, point.class, point.field.Type, obj)
		}
		setField(value.FieldByIndex(point.field.Index), v)
	}
	return nil
}

/**
Sets the field, unexported fields are accessed through the field address
*/
func setField(field reflect.Value, v reflect.Value) {
	if field.CanSet() {
		field.Set(v)
		return
	}
	reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem().Set(v)
}

func (t *TagInjectionPostProcessor) injectionPoints(classPtr reflect.Type) ([]*tagInjection, error) {
	if classPtr == nil || classPtr.Kind() != reflect.Ptr || classPtr.Elem().Kind() != reflect.Struct {
		return nil, nil
	}
	if cached, ok := t.cache.Load(classPtr); ok {
		return cached.([]*tagInjection), nil
	}
	points, err := investigate(classPtr)
	if err != nil {
		return nil, err
	}
	actual, _ := t.cache.LoadOrStore(classPtr, points)
	if len(points) > 0 {
		logger().Debug("tagged injection points", zap.Stringer("class", classPtr), zap.Int("count", len(points)))
	}
	return actual.([]*tagInjection), nil
}

/**
Investigates the struct by reflection and builds injection points of tagged fields
*/
func investigate(classPtr reflect.Type) ([]*tagInjection, error) {
	var list []*tagInjection
	class := classPtr.Elem()
	for j := 0; j < class.NumField(); j++ {
		field := class.Field(j)

		if valueTag, ok := field.Tag.Lookup("value"); ok {
			if field.Anonymous {
				return nil, errors.Errorf("injection to anonymous field '%s' in '%v' is not allowed", field.Name, classPtr)
			}
			desc, err := valueDescriptor(class, field, valueTag)
			if err != nil {
				return nil, errors.Wrapf(err, "field '%s' with type '%v' on position %d in %v with 'value' tag", field.Name, field.Type, j, classPtr)
			}
			list = append(list, &tagInjection{class: class, field: field, desc: desc})
			continue
		}

		injectTag, hasInjectTag := field.Tag.Lookup("inject")
		if field.Tag == "inject" || hasInjectTag {
			if field.Anonymous {
				return nil, errors.Errorf("injection to anonymous field '%s' in '%v' is not allowed", field.Name, classPtr)
			}
			desc, err := injectDescriptor(class, field, injectTag)
			if err != nil {
				return nil, errors.Wrapf(err, "field '%s' with type '%v' on position %d in %v with 'inject' tag", field.Name, field.Type, j, classPtr)
			}
			list = append(list, &tagInjection{class: class, field: field, desc: desc})
		}
	}
	return list, nil
}

func injectDescriptor(class reflect.Type, field reflect.StructField, injectTag string) (*DependencyDescriptor, error) {
	var beanName string
	var optional, lazy bool
	for _, pair := range strings.Split(injectTag, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		switch strings.TrimSpace(kv[0]) {
		case "":
		case "bean":
			if len(kv) > 1 {
				beanName = strings.TrimSpace(kv[1])
			}
		case "optional":
			optional = true
		case "lazy":
			lazy = true
		default:
			return nil, errors.Errorf("unknown attribute '%s'", kv[0])
		}
	}

	if lazy && !isLazyShape(field.Type) {
		return nil, errors.New("lazy injection requires function type without parameters returning the bean and optional error")
	}

	switch field.Type.Kind() {
	case reflect.Map:
		if field.Type.Key().Kind() != reflect.String {
			return nil, errors.New("map must have string key to be injected")
		}
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Slice, reflect.Array, reflect.Struct:
	default:
		return nil, errors.New("not a pointer, interface, function, slice, array, map, optional or provider field type")
	}
	if field.Type.Kind() == reflect.Struct && !isOptionalShape(field.Type) && !isProviderShape(field.Type) {
		return nil, errors.New("struct field type must be Optional or Provider")
	}

	desc := NewFieldDescriptor(class, field, !optional)
	desc.BeanName = beanName
	if q, ok := field.Tag.Lookup("qualifier"); ok && q != "" {
		desc.AddQualifier(NewQualifier(q))
	}
	return desc, nil
}

/**
Value tag is either a placeholder expression '${key:default}' or a property name with attributes 'key,default=x,layout=y'
*/
func valueDescriptor(class reflect.Type, field reflect.StructField, valueTag string) (*DependencyDescriptor, error) {
	var expr, defaultValue, layout string
	hasDefault := false
	for i, pair := range strings.Split(valueTag, ",") {
		p := strings.TrimSpace(pair)
		if i == 0 {
			expr = p
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		switch strings.TrimSpace(kv[0]) {
		case "default":
			hasDefault = true
			if len(kv) > 1 {
				defaultValue = strings.TrimSpace(kv[1])
			}
		case "layout":
			if len(kv) > 1 {
				layout = strings.TrimSpace(kv[1])
			}
		}
	}
	if expr == "" {
		return nil, errors.New("empty property name")
	}
	if !strings.Contains(expr, placeholderPrefix) {
		if hasDefault {
			expr = placeholderPrefix + expr + placeholderSeparator + defaultValue + placeholderSuffix
		} else {
			expr = placeholderPrefix + expr + placeholderSuffix
		}
	}
	desc := NewFieldDescriptor(class, field, true)
	desc.Value = expr
	desc.Layout = layout
	return desc, nil
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"reflect"
	"sync"
	"testing"
)

/**
Journal of lifecycle events shared by beans of one test
*/
type journal struct {
	sync.Mutex
	events []string
}

func (t *journal) add(event string) {
	t.Lock()
	defer t.Unlock()
	t.events = append(t.events, event)
}

func (t *journal) list() []string {
	t.Lock()
	defer t.Unlock()
	return append([]string(nil), t.events...)
}

var StorageClass = reflect.TypeOf((*Storage)(nil)).Elem()

type Storage interface {
	Load(key string) string
	Store(key, value string)
}

var StorageImplClass = reflect.TypeOf((*storageImpl)(nil)) // *storageImpl
type storageImpl struct {
	Journal *journal
	data    sync.Map
}

func (t *storageImpl) Load(key string) string {
	if v, ok := t.data.Load(key); ok {
		return v.(string)
	}
	return ""
}

func (t *storageImpl) Store(key, value string) {
	t.data.Store(key, value)
}

func (t *storageImpl) Destroy() error {
	t.Journal.add("storage destroyed")
	return nil
}

var ConfigServiceImplClass = reflect.TypeOf((*configServiceImpl)(nil)) // *configServiceImpl
type configServiceImpl struct {
	Storage Storage
	Journal *journal
	ready   bool
}

func (t *configServiceImpl) AfterSingletonsInstantiated() error {
	t.ready = true
	t.Journal.add("config ready")
	return nil
}

func (t *configServiceImpl) Close() error {
	t.Journal.add("config closed")
	return nil
}

func newContext(t *testing.T, j *journal) beans.ConfigurableListableBeanFactory {
	f := beans.New()
	require.NoError(t, f.RegisterResolvableDependency(reflect.TypeOf(j), j))

	storage := beans.NewBeanDefinition(StorageImplClass)
	storage.AutowireMode = beans.AutowireByType
	require.NoError(t, f.RegisterBeanDefinition("storage", storage))

	config := beans.NewBeanDefinition(ConfigServiceImplClass)
	config.AutowireMode = beans.AutowireByType
	require.NoError(t, f.RegisterBeanDefinition("config", config))
	return f
}

func TestPreInstantiateSingletons(t *testing.T) {

	j := &journal{}
	f := newContext(t, j)

	lazy := beans.NewBeanDefinition(FirstBeanClass)
	lazy.SetLazyInit(true)
	require.NoError(t, f.RegisterBeanDefinition("lazy", lazy))

	require.NoError(t, f.PreInstantiateSingletons())

	require.True(t, f.ContainsSingleton("storage"))
	require.True(t, f.ContainsSingleton("config"))
	require.False(t, f.ContainsSingleton("lazy"))
	require.Equal(t, []string{"config ready"}, j.list())

	obj, err := f.GetBean("config")
	require.NoError(t, err)
	config := obj.(*configServiceImpl)
	require.True(t, config.ready)
	require.Same(t, j, config.Journal)

	config.Storage.Store("k", "v")
	storage, err := f.GetBeanByType(StorageClass)
	require.NoError(t, err)
	require.Equal(t, "v", storage.(Storage).Load("k"))
}

func TestDestroySingletons(t *testing.T) {

	j := &journal{}
	f := newContext(t, j)
	require.NoError(t, f.PreInstantiateSingletons())

	require.NoError(t, f.DestroySingletons())
	require.Equal(t, []string{"config ready", "config closed", "storage destroyed"}, j.list())
	require.Equal(t, 0, f.GetSingletonCount())

	// definitions survive, singletons are created again
	obj, err := f.GetBean("storage")
	require.NoError(t, err)
	require.NotNil(t, obj)
}

func TestDestroyDependentsFirst(t *testing.T) {

	j := &journal{}
	f := beans.New()
	require.NoError(t, f.RegisterResolvableDependency(reflect.TypeOf(j), j))

	storage := beans.NewBeanDefinition(StorageImplClass)
	storage.AutowireMode = beans.AutowireByType
	require.NoError(t, f.RegisterBeanDefinition("storage", storage))

	config := beans.NewBeanDefinition(ConfigServiceImplClass)
	config.Properties.Add("journal", j)
	require.NoError(t, f.RegisterBeanDefinition("config", config))

	// config is created first, without any reference to storage
	_, err := f.GetBean("config")
	require.NoError(t, err)
	_, err = f.GetBean("storage")
	require.NoError(t, err)

	f.RegisterDependentBean("storage", "config")
	require.NoError(t, f.DestroySingletons())
	require.Equal(t, []string{"config closed", "storage destroyed"}, j.list())
}

func TestDependsOn(t *testing.T) {

	j := &journal{}
	f := newContext(t, j)

	def := beans.NewBeanDefinition(FirstBeanClass)
	def.DependsOn = []string{"storage"}
	require.NoError(t, f.RegisterBeanDefinition("first", def))

	_, err := f.GetBean("first")
	require.NoError(t, err)
	require.True(t, f.ContainsSingleton("storage"))
	require.Equal(t, []string{"first"}, f.GetDependentBeans("storage"))

	missing := beans.NewBeanDefinition(FirstBeanClass)
	missing.DependsOn = []string{"unknown"}
	require.NoError(t, f.RegisterBeanDefinition("missing", missing))

	_, err = f.GetBean("missing")
	require.ErrorIs(t, err, beans.ErrNoSuchDefinition)
	require.False(t, f.ContainsSingleton("missing"))
}

func TestDependsOnCycle(t *testing.T) {

	f := beans.New()
	a := beans.NewBeanDefinition(FirstBeanClass)
	a.DependsOn = []string{"b"}
	b := beans.NewBeanDefinition(FirstBeanClass)
	b.DependsOn = []string{"a"}
	require.NoError(t, f.RegisterBeanDefinition("a", a))
	require.NoError(t, f.RegisterBeanDefinition("b", b))

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.Contains(t, err.Error(), "circular depends-on")
}

/**
Scope keeping one instance per name until removed
*/
type mapScope struct {
	sync.Mutex
	objects   map[string]interface{}
	callbacks map[string]func()
}

func newMapScope() *mapScope {
	return &mapScope{
		objects:   make(map[string]interface{}),
		callbacks: make(map[string]func()),
	}
}

func (t *mapScope) Get(name string, objectFactory beans.ObjectFactory) (interface{}, error) {
	t.Lock()
	if obj, ok := t.objects[name]; ok {
		t.Unlock()
		return obj, nil
	}
	t.Unlock()
	obj, err := objectFactory()
	if err != nil {
		return nil, err
	}
	t.Lock()
	defer t.Unlock()
	t.objects[name] = obj
	return obj, nil
}

func (t *mapScope) Remove(name string) (interface{}, bool) {
	t.Lock()
	defer t.Unlock()
	obj, ok := t.objects[name]
	delete(t.objects, name)
	delete(t.callbacks, name)
	return obj, ok
}

func (t *mapScope) RegisterDestructionCallback(name string, callback func()) {
	t.Lock()
	defer t.Unlock()
	t.callbacks[name] = callback
}

func (t *mapScope) close() {
	t.Lock()
	callbacks := t.callbacks
	t.callbacks = make(map[string]func())
	t.objects = make(map[string]interface{})
	t.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func TestCustomScope(t *testing.T) {

	j := &journal{}
	f := beans.New()
	scope := newMapScope()
	require.NoError(t, f.RegisterScope("session", scope))
	require.Error(t, f.RegisterScope(beans.ScopeSingleton, scope))

	def := beans.NewBeanDefinition(StorageImplClass)
	def.Scope = "session"
	def.Properties.Add("journal", j)
	require.NoError(t, f.RegisterBeanDefinition("storage", def))

	a, err := f.GetBean("storage")
	require.NoError(t, err)
	b, err := f.GetBean("storage")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.False(t, f.ContainsSingleton("storage"))

	scope.close()
	require.Equal(t, []string{"storage destroyed"}, j.list())

	c, err := f.GetBean("storage")
	require.NoError(t, err)
	require.NotSame(t, a, c)

	require.NoError(t, f.DestroyScopedBean("storage"))
	require.Equal(t, []string{"storage destroyed", "storage destroyed"}, j.list())

	unknown := beans.NewBeanDefinition(StorageImplClass)
	unknown.Scope = "request"
	require.NoError(t, f.RegisterBeanDefinition("unknown", unknown))
	_, err = f.GetBean("unknown")
	require.ErrorIs(t, err, beans.ErrNoSuchScope)
}

var AnnotatedBeanClass = reflect.TypeOf((*annotatedBean)(nil)) // *annotatedBean
type annotatedBean struct {
	_ struct{} `annotation:"controller,public"`
}

func TestAnnotations(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("annotated", beans.NewBeanDefinition(AnnotatedBeanClass)))
	require.NoError(t, f.RegisterBeanDefinition("first", beans.NewBeanDefinition(FirstBeanClass)))

	f.ClassLoader().(*beans.TypeRegistry).Annotate(FirstBeanClass, "public")

	require.Equal(t, []string{"annotated"}, f.GetBeanNamesForAnnotation("controller"))
	require.Equal(t, []string{"annotated", "first"}, f.GetBeanNamesForAnnotation("public"))

	m, err := f.GetBeansWithAnnotation("controller")
	require.NoError(t, err)
	require.Equal(t, 1, len(m))
	require.IsType(t, &annotatedBean{}, m["annotated"])
}

func TestFrozenConfiguration(t *testing.T) {

	f := beans.New()
	require.NoError(t, f.RegisterBeanDefinition("a", element(ElementXClass, "a")))
	f.FreezeConfiguration()
	require.True(t, f.IsConfigurationFrozen())

	require.Equal(t, []string{"a"}, f.GetBeanNamesForType(ElementXClass, true, true))

	// registration clears the cache of names by type
	require.NoError(t, f.RegisterBeanDefinition("b", element(ElementXClass, "b")))
	require.Equal(t, []string{"a", "b"}, f.GetBeanNamesForType(ElementXClass, true, true))
	require.Equal(t, 2, f.GetBeanDefinitionCount())
}

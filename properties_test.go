/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package beans_test

import (
	"github.com/codeallergy/beans"
	"github.com/stretchr/testify/require"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

var serverYAML = `
server:
  host: localhost
  port: 8080
  timeout: 5s
  ratio: 0.75
  secure: true
  hosts:
    - alpha
    - beta
`

var serverDotEnv = `
# application settings
app.name=demo
app.greeting='hello ${app.name}'
app.mode="-rw-r--r--"
`

func TestPropertiesLoad(t *testing.T) {

	p := beans.NewProperties()
	require.NoError(t, p.LoadYAML(strings.NewReader(serverYAML)))
	require.NoError(t, p.LoadDotEnv(strings.NewReader(serverDotEnv)))

	require.Equal(t, 9, p.Len())
	require.Equal(t, "localhost", p.GetString("server.host", ""))
	require.Equal(t, "alpha;beta", p.GetString("server.hosts", ""))
	require.Equal(t, "hello ${app.name}", p.GetString("app.greeting", ""))
	require.Equal(t, "none", p.GetString("server.missing", "none"))

	require.Equal(t, 8080, p.GetInt("server.port", 0))
	require.Equal(t, 5*time.Second, p.GetDuration("server.timeout", 0))
	require.Equal(t, float32(0.75), p.GetFloat("server.ratio", 0))
	require.Equal(t, 0.75, p.GetDouble("server.ratio", 0))
	require.True(t, p.GetBool("server.secure", false))
	require.Equal(t, os.FileMode(0644), p.GetFileMode("app.mode", 0))

	require.NoError(t, p.LoadYAML(strings.NewReader("")))

	require.Error(t, p.LoadYAML(strings.NewReader("server: [unclosed")))
}

func TestPropertiesMap(t *testing.T) {

	p := beans.NewProperties()
	p.LoadMap(map[string]interface{}{
		"db": map[string]interface{}{
			"url":  "jdbc",
			"pool": 10,
			"tags": []interface{}{"a", 1, true},
		},
		"empty": nil,
	})

	require.Equal(t, []string{"db.pool", "db.tags", "db.url", "empty"}, p.Keys())
	require.Equal(t, "a;1;true", p.GetString("db.tags", ""))
	require.True(t, p.Contains("empty"))

	require.True(t, p.Remove("empty"))
	require.False(t, p.Remove("empty"))
	require.False(t, p.Contains("empty"))

	p.Set("db.url", "postgres")
	require.Equal(t, "postgres", p.Map()["db.url"])

	p.Clear()
	require.Equal(t, 0, p.Len())
	_, ok := p.Get("db.url")
	require.False(t, ok)
}

func TestPropertiesErrorHandler(t *testing.T) {

	p := beans.NewProperties()
	require.NoError(t, p.Parse("port=eighty\nsecure=maybe\ntimeout=soon\n"))

	var failed []string
	p.SetErrorHandler(func(key string, err error) {
		require.Error(t, err)
		failed = append(failed, key)
	})

	require.Equal(t, 80, p.GetInt("port", 80))
	require.False(t, p.GetBool("secure", false))
	require.Equal(t, time.Minute, p.GetDuration("timeout", time.Minute))
	require.Equal(t, []string{"port", "secure", "timeout"}, failed)
}

func TestPropertiesDump(t *testing.T) {

	p := beans.NewProperties()
	p.Set("app.name", "demo")
	p.Set("app.port", "8080")

	content, err := p.Dump()
	require.NoError(t, err)
	require.Contains(t, content, `app.name="demo"`)
	require.Contains(t, content, `app.port=8080`)

	restored := beans.NewProperties()
	require.NoError(t, restored.Parse(content))
	require.Equal(t, p.Map(), restored.Map())
}

func TestPropertiesExtend(t *testing.T) {

	parent := beans.NewProperties()
	parent.Set("app.name", "parent")
	parent.Set("app.region", "east")

	child := beans.NewProperties()
	child.Set("app.name", "child")
	child.Extend(parent)

	require.Greater(t, child.Priority(), parent.Priority())
	require.Equal(t, 2, len(child.PropertyResolvers()))

	require.Equal(t, "child", child.GetString("app.name", ""))
	require.Equal(t, "east", child.GetString("app.region", ""))
	require.Equal(t, "parent", parent.GetString("app.name", ""))

	require.False(t, child.Contains("app.region"))
	_, ok := parent.Get("app.missing")
	require.False(t, ok)
}

type staticResolver struct {
	priority int
	values   map[string]string
}

func (t *staticResolver) Priority() int {
	return t.priority
}

func (t *staticResolver) GetProperty(key string) (string, bool) {
	value, ok := t.values[key]
	return value, ok
}

func TestPropertyResolverPriority(t *testing.T) {

	p := beans.NewProperties()
	p.Set("app.name", "own")
	p.Register(&staticResolver{priority: 1000, values: map[string]string{"app.name": "override"}})
	p.Register(&staticResolver{priority: 1, values: map[string]string{"app.name": "low", "app.tier": "gold"}})

	require.Equal(t, "override", p.GetString("app.name", ""))
	require.Equal(t, "gold", p.GetString("app.tier", ""))
	require.Equal(t, 3, len(p.PropertyResolvers()))
}

func TestPlaceholders(t *testing.T) {

	p := beans.NewProperties()
	require.NoError(t, p.LoadDotEnv(strings.NewReader(serverDotEnv)))
	p.Set("env", "prod")
	p.Set("prod.url", "https://${app.name}.example.com")
	p.Set("loop.a", "${loop.b}")
	p.Set("loop.b", "${loop.a}")

	s, err := p.ResolveStringValue("${app.greeting}!")
	require.NoError(t, err)
	require.Equal(t, "hello demo!", s)

	s, err = p.ResolveStringValue("${${env}.url}")
	require.NoError(t, err)
	require.Equal(t, "https://demo.example.com", s)

	s, err = p.ResolveStringValue("${app.port:8080} and ${app.name:none}")
	require.NoError(t, err)
	require.Equal(t, "8080 and demo", s)

	s, err = p.ResolveStringValue("no placeholders")
	require.NoError(t, err)
	require.Equal(t, "no placeholders", s)

	_, err = p.ResolveStringValue("${loop.a}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "circular placeholder reference")

	_, err = p.ResolveStringValue("${unknown}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "could not resolve placeholder 'unknown'")

	p.SetIgnoreUnresolvable(true)
	s, err = p.ResolveStringValue("${unknown}-${app.name}")
	require.NoError(t, err)
	require.Equal(t, "${unknown}-demo", s)
}

var ServerConfigClass = reflect.TypeOf((*serverConfig)(nil)) // *serverConfig
type serverConfig struct {
	Host     string        `value:"server.host"`
	Port     int           `value:"server.port,default=9090"`
	Backlog  int           `value:"server.backlog,default=128"`
	Timeout  time.Duration `value:"${server.timeout}"`
	Started  time.Time     `value:"app.started,layout=2006-01-02"`
	Hosts    []string      `value:"server.hosts"`
	endpoint string        `value:"https://${server.host}:${server.port}"`
}

func newConfiguredFactory(t *testing.T, props beans.Properties) beans.ConfigurableListableBeanFactory {
	f := beans.New()
	f.AddEmbeddedValueResolver(props)
	require.NoError(t, f.AddBeanPostProcessor(beans.NewTagInjectionPostProcessor(f)))
	require.NoError(t, f.RegisterSingleton("properties", props))
	return f
}

func TestValueInjection(t *testing.T) {

	props := beans.NewProperties()
	require.NoError(t, props.LoadYAML(strings.NewReader(serverYAML)))
	props.Set("app.started", "2023-03-15")

	f := newConfiguredFactory(t, props)
	require.NoError(t, f.RegisterBeanDefinition("config", beans.NewBeanDefinition(ServerConfigClass)))

	obj, err := f.GetBean("config")
	require.NoError(t, err)
	config := obj.(*serverConfig)

	require.Equal(t, "localhost", config.Host)
	require.Equal(t, 8080, config.Port)
	require.Equal(t, 128, config.Backlog)
	require.Equal(t, 5*time.Second, config.Timeout)
	require.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), config.Started)
	require.Equal(t, []string{"alpha", "beta"}, config.Hosts)
	require.Equal(t, "https://localhost:8080", config.endpoint)
}

func TestValueInjectionFailures(t *testing.T) {

	props := beans.NewProperties()
	props.Set("server.host", "localhost")
	props.Set("server.port", "eighty")
	props.Set("server.timeout", "5s")
	props.Set("app.started", "2023-03-15")
	props.Set("server.hosts", "alpha")

	f := newConfiguredFactory(t, props)
	require.NoError(t, f.RegisterBeanDefinition("config", beans.NewBeanDefinition(ServerConfigClass)))

	_, err := f.GetBean("config")
	require.ErrorIs(t, err, beans.ErrBeanCreation)
	require.ErrorIs(t, err, beans.ErrTypeMismatch)
	require.Contains(t, err.Error(), "Port")

	props.Set("server.port", "8443")
	props.Remove("app.started")

	_, err = f.GetBean("config")
	require.ErrorIs(t, err, beans.ErrUnsatisfiedDependency)
	require.Contains(t, err.Error(), "could not resolve placeholder 'app.started'")

	props.Set("app.started", "2023-03-15")
	obj, err := f.GetBean("config")
	require.NoError(t, err)
	require.Equal(t, "https://localhost:8443", obj.(*serverConfig).endpoint)
}

func TestPropertyValuePlaceholders(t *testing.T) {

	props := beans.NewProperties()
	props.Set("element.name", "configured")

	f := newConfiguredFactory(t, props)

	def := beans.NewBeanDefinition(FirstBeanClass)
	def.Properties.Add("name", "${element.name}")
	require.NoError(t, f.RegisterBeanDefinition("first", def))

	fallback := beans.NewBeanDefinition(FirstBeanClass)
	fallback.Properties.Add("name", "${element.other:fallback}")
	require.NoError(t, f.RegisterBeanDefinition("fallback", fallback))

	obj, err := f.GetBean("first")
	require.NoError(t, err)
	require.Equal(t, "configured", obj.(*firstBean).Name)

	obj, err = f.GetBean("fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", obj.(*firstBean).Name)

	s, err := f.ResolveEmbeddedValue("${element.name}/${element.name}")
	require.NoError(t, err)
	require.Equal(t, "configured/configured", s)
}

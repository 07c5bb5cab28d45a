package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingModule struct {
	name     string
	priority int
	order    *[]string
	err      error
}

func (m *recordingModule) Name() string  { return m.name }
func (m *recordingModule) Priority() int { return m.priority }
func (m *recordingModule) Init(ctx *ModuleContext) error {
	*m.order = append(*m.order, m.name)
	return m.err
}

func withRegistry(t *testing.T, modules ...Module) {
	t.Helper()
	saved := moduleRegistry
	moduleRegistry = make(map[string]Module)
	t.Cleanup(func() { moduleRegistry = saved })
	for _, m := range modules {
		Register(m)
	}
}

func TestInitModules_Order(t *testing.T) {
	var order []string
	withRegistry(t,
		&recordingModule{name: "redemption", priority: 30, order: &order},
		&recordingModule{name: "coupon", priority: 10, order: &order},
		&recordingModule{name: "subscription", priority: 20, order: &order},
	)

	require.NoError(t, InitModules(&ModuleContext{}))
	assert.Equal(t, []string{"coupon", "subscription", "redemption"}, order)
}

func TestInitModules_StopsOnError(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	withRegistry(t,
		&recordingModule{name: "a", priority: 1, order: &order, err: boom},
		&recordingModule{name: "b", priority: 2, order: &order},
	)

	err := InitModules(&ModuleContext{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, order)
}

func TestResolve(t *testing.T) {
	ctx := &ModuleContext{}
	ctx.Provide("greeting", "hello")

	got, err := Resolve[string](ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = Resolve[int](ctx, "greeting")
	assert.Error(t, err)

	_, err = Resolve[string](ctx, "missing")
	assert.Error(t, err)
}

package persist

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/catalog"
)

type button struct {
	Label string `json:"label"`
}

type service struct {
	name string
}

var (
	clickKind = callback.TypeID{Scope: "ui", Name: "ClickHandler"}
	keyKind   = callback.TypeID{Scope: "ui", Name: "KeyHandler"}
)

// platform is a catalog with buttons (stored by value), services (stored
// by name) and a handful of methods over them.
type platform struct {
	*catalog.Catalog
	services *catalog.ObjectTable

	onClick, onKey, hidden, serve, reset *callback.Method
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	c := catalog.New()
	c.AddScope("ui")
	_, err := c.RegisterCallbackType("ui", "ClickHandler")
	require.NoError(t, err)
	_, err = c.RegisterCallbackType("ui", "KeyHandler")
	require.NoError(t, err)

	_, err = c.RegisterType("ui", "Button", reflect.TypeFor[*button](), catalog.JSONCodec[button]{})
	require.NoError(t, err)

	services := catalog.NewObjectTable()
	_, err = c.RegisterType("ui", "Service", reflect.TypeFor[*service](), services)
	require.NoError(t, err)

	label := catalog.Instance(func(_ context.Context, b *button, _ ...any) (any, error) {
		return b.Label, nil
	})
	methods := []*callback.Method{
		{ID: callback.MethodID{Scope: "ui", Type: "Button", Name: "OnClick"}, Kind: clickKind, Public: true, Fn: label},
		{ID: callback.MethodID{Scope: "ui", Type: "Button", Name: "OnKey"}, Kind: keyKind, Public: true, Fn: label},
		{ID: callback.MethodID{Scope: "ui", Type: "Button", Name: "onHidden"}, Kind: clickKind, Public: false, Fn: label},
		{ID: callback.MethodID{Scope: "ui", Type: "Service", Name: "Serve"}, Kind: clickKind, Public: true,
			Fn: catalog.Instance(func(_ context.Context, s *service, _ ...any) (any, error) { return s.name, nil })},
		{ID: callback.MethodID{Scope: "ui", Type: "Buttons", Name: "Reset"}, Kind: clickKind, Public: true, Static: true,
			Fn: catalog.Static(func(context.Context, ...any) (any, error) { return "reset", nil })},
	}
	for _, m := range methods {
		require.NoError(t, c.RegisterMethod(m))
	}

	p := &platform{Catalog: c, services: services}
	p.onClick = c.Method(methods[0].ID)
	p.onKey = c.Method(methods[1].ID)
	p.hidden = c.Method(methods[2].ID)
	p.serve = c.Method(methods[3].ID)
	p.reset = c.Method(methods[4].ID)
	return p
}

func (p *platform) click(t *testing.T, b *button) *callback.Handle {
	t.Helper()
	h, err := callback.Construct(b, p.onClick)
	require.NoError(t, err)
	return h
}

func (p *platform) service(t *testing.T, name string) (*service, *callback.Handle) {
	t.Helper()
	s := &service{name: name}
	require.NoError(t, p.services.Bind(name, s))
	h, err := callback.Construct(s, p.serve)
	require.NoError(t, err)
	return s, h
}

// labels renders a chain of button or service callbacks.
func labels(h *callback.Handle) []string {
	out := []string{}
	for _, cb := range h.Enumerate() {
		switch r := cb.Receiver.(type) {
		case *button:
			out = append(out, r.Label+"."+cb.Method.ID.Name)
		case *service:
			out = append(out, r.name+"."+cb.Method.ID.Name)
		default:
			out = append(out, cb.Method.ID.Name)
		}
	}
	return out
}

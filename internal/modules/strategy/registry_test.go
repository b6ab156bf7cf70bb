package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trivault/trivault/internal/domain"
)

type stubCapability struct {
	name  string
	asset string
}

func (c *stubCapability) Accept(amount int64) error    { return nil }
func (c *stubCapability) Release(amount int64) error   { return nil }
func (c *stubCapability) CurrentValue() (int64, error) { return 0, nil }
func (c *stubCapability) Name() string                 { return c.name }

func (c *stubCapability) UnderlyingAsset() string {
	if c.asset == "" {
		return "USDQ"
	}
	return c.asset
}

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestNewRegistry_RequiresAllSlots(t *testing.T) {
	a, b := &stubCapability{name: "a"}, &stubCapability{name: "b"}

	_, err := NewRegistry("USDQ", a, b, nil, testLog())
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)

	_, err = NewRegistry("USDQ", nil, a, b, testLog())
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestNewRegistry_RejectsAssetMismatch(t *testing.T) {
	a, b := &stubCapability{name: "a"}, &stubCapability{name: "b"}
	wrong := &stubCapability{name: "w", asset: "EURQ"}

	_, err := NewRegistry("USDQ", a, b, wrong, testLog())
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestRegistry_Resolve(t *testing.T) {
	opts, lp, staking := &stubCapability{name: "o"}, &stubCapability{name: "l"}, &stubCapability{name: "s"}
	r, err := NewRegistry("USDQ", opts, lp, staking, testLog())
	require.NoError(t, err)

	idx, c, err := r.Resolve("options")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Same(t, opts, c)

	idx, c, err = r.Resolve("lp")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Same(t, lp, c)

	idx, c, err = r.Resolve("staking")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Same(t, staking, c)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r, err := NewRegistry("USDQ", &stubCapability{}, &stubCapability{}, &stubCapability{}, testLog())
	require.NoError(t, err)

	_, _, err = r.Resolve("futures")
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestRegistry_RebindSkipsNilSlots(t *testing.T) {
	opts, lp, staking := &stubCapability{name: "o"}, &stubCapability{name: "l"}, &stubCapability{name: "s"}
	r, err := NewRegistry("USDQ", opts, lp, staking, testLog())
	require.NoError(t, err)

	replacement := &stubCapability{name: "l2"}
	require.NoError(t, r.Rebind(nil, replacement, nil))

	all := r.All()
	assert.Same(t, opts, all[0])
	assert.Same(t, replacement, all[1])
	assert.Same(t, staking, all[2])
}

func TestRegistry_RebindRejectsAssetMismatch(t *testing.T) {
	opts, lp, staking := &stubCapability{name: "o"}, &stubCapability{name: "l"}, &stubCapability{name: "s"}
	r, err := NewRegistry("USDQ", opts, lp, staking, testLog())
	require.NoError(t, err)

	wrong := &stubCapability{name: "w", asset: "EURQ"}
	err = r.Rebind(wrong, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)

	all := r.All()
	assert.Same(t, opts, all[0])
}

package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSupportedKinds(t *testing.T) {
	for _, k := range []Kind{
		KindCron, KindDirectory, KindFile, KindGroup, KindNetworkInterface,
		KindLink, KindMount, KindPackage, KindService, KindUser,
	} {
		spec, err := Lookup(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, spec.Kind)
		assert.NotEmpty(t, spec.Attributes, k)
	}
	assert.Len(t, Kinds(), 10)
}

func TestLookupRejectsActionResources(t *testing.T) {
	for _, k := range []Kind{"bash", "erl_call", "execute", "ruby", "cookbook_file", "remote_file", "template"} {
		_, err := Lookup(k)
		require.Error(t, err, k)
		assert.True(t, errors.Is(err, ErrUnsupportedKind), k)
		assert.False(t, Supported(k))
	}
}

func TestRequiredArgs(t *testing.T) {
	mount, err := Lookup(KindMount)
	require.NoError(t, err)
	assert.Equal(t, []string{ArgDevice}, mount.RequiredArgs)

	iface, err := Lookup(KindNetworkInterface)
	require.NoError(t, err)
	assert.Equal(t, []string{ArgDevice}, iface.RequiredArgs)

	file, err := Lookup(KindFile)
	require.NoError(t, err)
	assert.Empty(t, file.RequiredArgs)
	assert.True(t, file.HasAttribute("mode"))
	assert.False(t, file.HasAttribute("device"))
}

func TestRefCopiesArgs(t *testing.T) {
	args := map[string]string{"device": "/dev/sdb1"}
	ref := NewRef(KindMount, "/data", args)
	args["device"] = "/dev/sdc1"

	dev, ok := ref.Arg("device")
	require.True(t, ok)
	assert.Equal(t, "/dev/sdb1", dev)

	got := ref.Args()
	got["device"] = "changed"
	dev, _ = ref.Arg("device")
	assert.Equal(t, "/dev/sdb1", dev)
}

func TestRefKey(t *testing.T) {
	assert.Equal(t, "file[/etc/foo]", NewRef(KindFile, "/etc/foo", nil).Key())
	ref := NewRef(KindMount, "/data", map[string]string{"device": "/dev/sdb1", "a": "b"})
	assert.Equal(t, "mount[/data]a=b,device=/dev/sdb1", ref.Key())
	assert.True(t, ref.Equal(NewRef(KindMount, "/data", map[string]string{"a": "b", "device": "/dev/sdb1"})))
	assert.False(t, ref.Equal(NewRef(KindMount, "/data", nil)))
}

func TestRefJSONRoundTripKeepsArgs(t *testing.T) {
	ref := NewRef(KindNetworkInterface, "10.0.0.2", map[string]string{"device": "eth0"})
	data, err := json.Marshal(ref)
	require.NoError(t, err)

	var back Ref
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ref.Equal(back))
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, None()},
		{"string", "create", String("create")},
		{"int", 5, Int(5)},
		{"uint32", uint32(1000), Int(1000)},
		{"integral float", float64(420), Int(420)},
		{"fractional float", 1.5, String("1.5")},
		{"bool", true, String("true")},
		{"file mode", os.FileMode(0o644), Int(420)},
		{"json number", json.Number("7"), Int(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ValueOf(tt.in)), "got %s", ValueOf(tt.in))
		})
	}
}

func TestAsIntRange(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"max int64 as uint64", uint64(math.MaxInt64), math.MaxInt64, true},
		{"uint64 above max", uint64(math.MaxInt64) + 1, 0, false},
		{"max uint64", uint64(math.MaxUint64), 0, false},
		{"min int64 float", float64(math.MinInt64), math.MinInt64, true},
		{"float at 2^63", math.Exp2(63), 0, false},
		{"huge float", 1e20, 0, false},
		{"negative huge float", -1e20, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"fraction", 1.5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueOfOutOfRangeFallsBackToString(t *testing.T) {
	assert.True(t, String("18446744073709551615").Equal(ValueOf(uint64(math.MaxUint64))))
	assert.True(t, String("100000000000000000000").Equal(ValueOf(1e20)))
	assert.True(t, Int(4294967295).Equal(ValueOf(uint32(math.MaxUint32))))
}

func TestValueEqualityHasNoCoercion(t *testing.T) {
	assert.False(t, Int(5).Equal(String("5")))
	assert.False(t, None().Equal(String("")))
	assert.True(t, None().Equal(None()))
	assert.True(t, String("0644").Equal(String("0644")))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, `"delete"`, String("delete").String())
	assert.Equal(t, "5", Int(5).String())
	assert.Equal(t, "none", None().String())
}

func TestValueJSON(t *testing.T) {
	in := State{"mode": String("0644"), "backup": Int(5), "owner": None()}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out State
	require.NoError(t, json.Unmarshal(data, &out))
	for k, v := range in {
		assert.True(t, v.Equal(out.Get(k)), k)
	}
}

func TestStateGetMissing(t *testing.T) {
	s := State{"name": String("/etc/foo")}
	assert.True(t, s.Get("mode").IsNone())
	assert.Equal(t, []string{"name"}, s.Names())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("no such user")
	err := fmt.Errorf("inspect: %w", &Error{
		Code:      ErrLookupFailure,
		Ref:       NewRef(KindFile, "/etc/foo", nil),
		Attribute: "owner",
		Err:       cause,
	})

	assert.True(t, errors.Is(err, ErrLookupFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrInspectionFailure))
	assert.Equal(t, ErrLookupFailure, CodeOf(err))
	assert.Contains(t, err.Error(), "LookupFailure: file[/etc/foo] owner: no such user")
	assert.Equal(t, ErrNoExpectations, CodeOf(ErrNoExpectations))
	assert.Equal(t, Code(""), CodeOf(cause))
}

package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/idemverify/pkg/resource"
)

func TestDiff(t *testing.T) {
	user := resource.NewRef(resource.KindUser, "deploy", nil)
	before, err := Aggregate(append(
		Match(resource.State{"mode": resource.String("0644"), "owner": resource.String("nobody")},
			Expect(etcFoo).With("mode", "0644").With("owner", "root").With("group", "root")),
		Match(resource.State{"shell": resource.String("/bin/bash")}, Expect(user).With("shell", "/bin/bash"))...,
	))
	require.NoError(t, err)

	after, err := Aggregate(Match(
		resource.State{"mode": resource.String("0600"), "owner": resource.String("root"), "size": resource.Int(3)},
		Expect(etcFoo).With("mode", "0644").With("owner", "root").With("group", "root").With("size", 3),
	))
	require.NoError(t, err)

	changes := Diff(before, after)
	require.Len(t, changes, 4)

	assert.Equal(t, Regressed, changes[0].Type)
	assert.Equal(t, "file[/etc/foo] mode", changes[0].Name())
	assert.Equal(t, resource.String("0600"), changes[0].After.Actual)

	assert.Equal(t, Fixed, changes[1].Type)
	assert.Equal(t, "owner", changes[1].Attribute)

	assert.Equal(t, Added, changes[2].Type)
	assert.Equal(t, "size", changes[2].Attribute)
	assert.Nil(t, changes[2].Before)

	assert.Equal(t, Removed, changes[3].Type)
	assert.Equal(t, "user[deploy] shell", changes[3].Name())
	assert.Nil(t, changes[3].After)
}

func TestDiffIdentical(t *testing.T) {
	r, err := Aggregate(Match(resource.State{}, Expect(etcFoo).With("mode", "0644")))
	require.NoError(t, err)
	assert.Empty(t, Diff(r, r))
}

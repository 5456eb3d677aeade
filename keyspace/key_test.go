// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keyspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyHashStable(t *testing.T) {
	k := Key("object-42")
	require.Equal(t, k.Hash(), k.Hash())
	require.NotEqual(t, Key("object-43").Hash(), k.Hash())
}

func TestKeyAsMapKeyRoundtrips(t *testing.T) {
	k := Key("some-object")
	require.Equal(t, "some-object", k.AsMapKey())
	require.Equal(t, k.String(), k.AsMapKey())
}

func TestKeyAsMapKeyDistinguishesContent(t *testing.T) {
	require.NotEqual(t, Key("a").AsMapKey(), Key("b").AsMapKey())
}

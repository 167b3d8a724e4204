package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	v := Object{
		"op":     String("TableScan"),
		"table":  String("ATABLE"),
		"fields": Ints(0, 2),
	}
	same := Object{
		"fields": Ints(0, 2),
		"table":  String("ATABLE"),
		"op":     String("TableScan"),
	}

	fp1, err := Fingerprint(DomainTree, v)
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainTree, same)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "key order must not affect the fingerprint")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintDomainSeparation(t *testing.T) {
	v := Object{"op": String("TableScan")}

	tree := MustFingerprint(DomainTree, v)
	fragment := MustFingerprint(DomainFragment, v)

	assert.NotEqual(t, tree, fragment)
}

func TestFingerprintChangesWithInput(t *testing.T) {
	a := MustFingerprint(DomainTree, Object{"alias": String("$1")})
	b := MustFingerprint(DomainTree, Object{"alias": String("$2")})

	assert.NotEqual(t, a, b)
}

func TestHashWithDomainSeparator(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

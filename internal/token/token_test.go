package token

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestNew(t *testing.T) {
	a, err := New()
	assert.NoError(t, err)
	b, err := New()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)

	prev := Reader
	defer func() { Reader = prev }()
	Reader = bytes.NewReader(make([]byte, Size))
	z, err := New()
	assert.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", z)

	Reader = bytes.NewReader(make([]byte, Size-1))
	_, err = New()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	Reader = failingReader{}
	_, err = New()
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	testCases := []struct {
		name   string
		a, b   string
		expect bool
	}{
		{name: "same", a: "abc", b: "abc", expect: true},
		{name: "different", a: "abc", b: "abd", expect: false},
		{name: "length", a: "abc", b: "abcd", expect: false},
		{name: "empty stored", a: "", b: "abc", expect: false},
		{name: "both empty", a: "", b: "", expect: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Equal(tc.a, tc.b))
		})
	}
}

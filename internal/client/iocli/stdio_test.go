package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio())
}

func TestStdio_Output(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s\n", 1, "abc")
	_, err := stdio.Write([]byte("raw"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

func TestStdio_ReadInput(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader("  alice@example.com \n123456"), &out)

	email, err := stdio.ReadInput("Email: ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	// последняя строка без перевода строки
	code, err := stdio.ReadPassword("Code: ")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	assert.Equal(t, "Email: Code: ", out.String())

	_, err = stdio.ReadInput("More: ")
	assert.ErrorIs(t, err, io.EOF)
}

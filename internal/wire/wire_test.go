package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	b := Init(buf, 4, 0)
	b.SetUint64(0, 0xdeadbeefcafef00d)
	b.SetInt32(8, -42)
	b.SetFloat64(16, 3.14159)
	b.SetByte(24, 0xAB)

	assert.Equal(t, uint64(0xdeadbeefcafef00d), b.GetUint64(0))
	assert.Equal(t, uint32(0xffffffd6), b.GetUint32(8)) // -42 as uint32
	assert.InDelta(t, 3.14159, b.GetFloat64(16), 1e-9)
	assert.Equal(t, byte(0xAB), b.GetByte(24))
}

func TestTextRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	b := Init(buf, 2, 2)
	require.NoError(t, b.SetText(0, "hello docudactyl"))
	require.NoError(t, b.SetText(1, ""))

	got, ok := b.GetText(0)
	assert.True(t, ok)
	assert.Equal(t, "hello docudactyl", got)

	got, ok = b.GetText(1)
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestTextListRoundTrip(t *testing.T) {
	buf := make([]byte, 512)
	b := Init(buf, 1, 1)
	items := []string{"alpha", "beta", "", "gamma delta"}
	require.NoError(t, b.SetTextList(0, items))

	got, ok := b.GetTextList(0)
	require.True(t, ok)
	assert.Equal(t, items, got)
}

func TestCompositeListRoundTrip(t *testing.T) {
	buf := make([]byte, 1024)
	b := Init(buf, 1, 1)

	cl, err := b.AllocCompositeList(0, 3, 2, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		cl.SetUint32(i, 0, uint32(i*10))
		cl.SetFloat64(i, 8, float64(i)+0.5)
		require.NoError(t, cl.SetText(i, 0, "elem"))
	}

	read, ok := b.GetCompositeList(0, 2, 1)
	require.True(t, ok)
	require.Equal(t, 3, read.Count())
	for i := 0; i < 3; i++ {
		assert.Equal(t, uint32(i*10), read.GetUint32(i, 0))
		assert.InDelta(t, float64(i)+0.5, read.GetFloat64(i, 8), 1e-9)
		text, ok := read.GetText(i, 0)
		assert.True(t, ok)
		assert.Equal(t, "elem", text)
	}
}

func TestWriteReadMessage(t *testing.T) {
	buf := make([]byte, 256)
	b := Init(buf, 2, 2)
	b.SetUint64(0, 12345)
	b.SetFloat64(8, 98.6)
	require.NoError(t, b.SetText(0, "round trip"))
	require.NoError(t, b.SetTextList(1, []string{"a", "b", "c"}))

	var out bytes.Buffer
	require.NoError(t, b.WriteMessage(&out))

	readBack, err := ReadMessage(&out, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, uint64(12345), readBack.GetUint64(0))
	assert.InDelta(t, 98.6, readBack.GetFloat64(8), 1e-9)

	text, ok := readBack.GetText(0)
	assert.True(t, ok)
	assert.Equal(t, "round trip", text)

	list, ok := readBack.GetTextList(1)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, list)
}

func TestNullPointerFieldsReadAsAbsent(t *testing.T) {
	buf := make([]byte, 64)
	b := Init(buf, 1, 2)

	_, ok := b.GetText(0)
	assert.False(t, ok)

	_, ok = b.GetTextList(1)
	assert.False(t, ok)
}

func TestInitPanicsOnUndersizedBuffer(t *testing.T) {
	assert.Panics(t, func() {
		Init(make([]byte, 4), 2, 2)
	})
}

func TestReserveErrorsOnExhaustedBuffer(t *testing.T) {
	buf := make([]byte, 24) // root struct only, no room for field data
	b := Init(buf, 2, 1)
	err := b.SetText(0, "this string needs more room than is left")
	assert.Error(t, err)
}

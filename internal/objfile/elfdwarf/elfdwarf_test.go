package elfdwarf

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymEntryLayoutKnownClasses(t *testing.T) {
	entsize, nameOff, err := symEntryLayout(elf.ELFCLASS32)
	require.NoError(t, err)
	assert.Equal(t, 16, entsize)
	assert.Equal(t, 0, nameOff)

	entsize, nameOff, err = symEntryLayout(elf.ELFCLASS64)
	require.NoError(t, err)
	assert.Equal(t, 24, entsize)
	assert.Equal(t, 0, nameOff)
}

func TestSymEntryLayoutRejectsUnknownClass(t *testing.T) {
	_, _, err := symEntryLayout(elf.ELFCLASSNONE)
	assert.Error(t, err, "expected an error for an unrecognised ELF class")
}

func TestCStringReadsNulTerminatedEntry(t *testing.T) {
	data := []byte{0, 'f', 'o', 'o', 0, 'b', 'a', 'r', 0}
	got, err := cString(data, 1)
	require.NoError(t, err)
	assert.Equal(t, "foo", got)

	got, err = cString(data, 5)
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
}

func TestCStringRejectsOutOfRangeOffset(t *testing.T) {
	_, err := cString([]byte{0}, 99)
	assert.Error(t, err, "expected an error for an out-of-range string offset")
}

func TestCStringWithoutTrailingNulReturnsRemainder(t *testing.T) {
	got, err := cString([]byte{'a', 'b', 'c'}, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

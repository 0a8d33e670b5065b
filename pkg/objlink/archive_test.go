package objlink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padHeader(name string, size int) []byte {
	h := make([]byte, 60)
	copy(h, []byte(name))
	for i := len(name); i < 16; i++ {
		h[i] = ' '
	}
	copy(h[16:], []byte("0           "))
	copy(h[28:], []byte("0     "))
	copy(h[34:], []byte("0     "))
	copy(h[40:], []byte("100644  "))
	sizeStr := []byte{'0', '0', '0', '0', '0', '0', '0', '0', '0', '0'}
	s := []byte(itoa(size))
	copy(sizeStr[len(sizeStr)-len(s):], s)
	copy(h[48:], sizeStr)
	h[58] = '`'
	h[59] = '\n'
	return h
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func buildArchive(members []arMember) []byte {
	var buf bytes.Buffer
	buf.WriteString(arMagic)

	var longNames bytes.Buffer
	type entry struct {
		name string
		data []byte
	}
	var entries []entry
	for _, m := range members {
		name := m.Name
		if len(m.Name) > 15 {
			entries = append(entries, entry{name: "/" + itoa(longNames.Len()), data: m.Data})
			longNames.WriteString(m.Name + "/\n")
		} else {
			entries = append(entries, entry{name: m.Name + "/", data: m.Data})
		}
	}

	if longNames.Len() > 0 {
		buf.Write(padHeader("//", longNames.Len()))
		buf.Write(longNames.Bytes())
		if longNames.Len()%2 == 1 {
			buf.WriteByte('\n')
		}
	}

	for _, e := range entries {
		buf.Write(padHeader(e.name, len(e.data)))
		buf.Write(e.data)
		if len(e.data)%2 == 1 {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}

func TestReadArchive_ShortAndLongNames(t *testing.T) {
	data := buildArchive([]arMember{
		{Name: "a.o", Data: []byte("AA")},
		{Name: "a-very-long-member-name-that-needs-the-table.o", Data: []byte("B")},
	})

	members, err := readArchive(data)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "a.o", members[0].Name)
	assert.Equal(t, []byte("AA"), members[0].Data)
	assert.Equal(t, "a-very-long-member-name-that-needs-the-table.o", members[1].Name)
	assert.Equal(t, []byte("B"), members[1].Data)
}

func TestReadArchive_RejectsBadMagic(t *testing.T) {
	_, err := readArchive([]byte("not an archive"))
	assert.Error(t, err)
}
